// Package strategy holds the trading-decision layer: a pure Strategy
// contract consumed execution-by-execution, and a Distributor that turns a
// strategy's successive signals into NormalizedPositions submitted to the
// broker. Grounded on trade/strategy/__init__.py's BaseStrategy and
// trade/strategies/stub.py's StrategiesStub.
package strategy

import (
	"bitflyer-trader/internal/domain"
)

// Strategy is a pure function from one observed execution to a signal: no
// side effects, no positions, no broker access. Whatever algorithm a
// concrete Strategy uses to pick a side (quoting model, momentum filter,
// random choice) is out of this repo's scope — only the contract and one
// stub implementation live here, per spec.md's strategy Non-goal.
type Strategy interface {
	MakeDecision(execution *domain.Execution) domain.Signal
}
