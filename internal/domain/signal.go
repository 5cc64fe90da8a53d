package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal is a strategy's verdict about what side to be on at a given price
// and time. Signals are produced by a strategy and never mutated, per
// spec.md §3. Grounded on trade/sign.py.
type Signal struct {
	Side            Side
	Price           decimal.Decimal
	DecisionAt      time.Time
	OriginAt        time.Time
	Reason          string
	Extras          map[string]any
}
