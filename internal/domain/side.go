// Package domain holds the shared vocabulary of the trading pipeline:
// sides, symbols, executions, signals, positions and trade records. It has
// no dependency on any other internal package, mirroring the role
// pkg/types/types.go plays for the teacher bot.
package domain

import "fmt"

// Side is the direction of an order, a position, or a strategy signal.
type Side string

const (
	SideBuy      Side = "BUY"
	SideSell     Side = "SELL"
	SideNothing  Side = "NOTHING"
	SideContinue Side = "HOLDING"
)

// CounterSide returns the opposite trading side. It panics for anything
// other than SideBuy/SideSell, mirroring trade/side.py's counter_side,
// which raises for NOTHING/CONTINUE — those are signal-only sides and
// never legally appear on a Position.
func CounterSide(s Side) Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		panic(fmt.Sprintf("domain: counter side undefined for %q", s))
	}
}
