package strategy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"bitflyer-trader/internal/domain"
	"bitflyer-trader/internal/execution/stream"
)

// Submitter is the subset of internal/broker.Broker's API the distributor
// needs: publish a desired NormalizedPositions snapshot for reconciliation.
type Submitter interface {
	Submit(domain.NormalizedPositions)
}

// Distributor turns a single Strategy's successive signals into
// NormalizedPositions submissions, matching StrategiesStub's single-
// strategy restriction (spec.md names exactly one synthesis path: a
// strategy's non-NOTHING/CONTINUE signal that differs in side from the
// previous signal, where an intervening NOTHING/CONTINUE counts as a
// change, becomes a full-size position in that direction).
// Grounded on positions_distributor in trade/strategies/stub.py.
type Distributor struct {
	strategy Strategy
	symbol   domain.Symbol
	size     decimal.Decimal
	logger   *slog.Logger

	switchedToRealtime bool
	prevSignalSide     domain.Side
	havePrevSignal     bool
}

// NewDistributor builds a Distributor over a single strategy, always
// sizing its submitted position at size in the signalled symbol.
func NewDistributor(strategy Strategy, symbol domain.Symbol, size decimal.Decimal, logger *slog.Logger) *Distributor {
	return &Distributor{
		strategy: strategy,
		symbol:   symbol,
		size:     size,
		logger:   logger.With("component", "strategy_distributor"),
	}
}

// Run pulls executions from source until it is exhausted or ctx is done,
// feeding each to the strategy and submitting a new NormalizedPositions
// snapshot to submitter whenever the strategy's signal side changes (and
// only once the warm-up boundary marker has been observed, so no position
// is opened from stale historical replay).
func (d *Distributor) Run(ctx context.Context, source stream.Stream, submitter Submitter) error {
	for {
		e, err := source.Next(ctx)
		if errors.Is(err, stream.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return err
		}
		d.process(e, submitter)
	}
}

func (d *Distributor) process(e *domain.Execution, submitter Submitter) {
	if e.IsSwitchedToRealtime() {
		d.switchedToRealtime = true
		return
	}

	signal := d.strategy.MakeDecision(e)
	if signal.Side == domain.SideNothing || signal.Side == domain.SideContinue {
		// The original unconditionally reassigns self._prev_signal here
		// too: a NOTHING/CONTINUE resets the comparison basis, so an
		// actionable signal arriving right after one always resubmits
		// regardless of which side it shares with the last submission.
		d.prevSignalSide = signal.Side
		d.havePrevSignal = true
		return
	}

	if !d.switchedToRealtime {
		return
	}

	if d.havePrevSignal && d.prevSignalSide == signal.Side {
		d.logger.Debug("imitating same side, skipping resubmission", "side", signal.Side)
		return
	}

	d.logger.Info("submitting new position from signal", "side", signal.Side, "price", signal.Price)
	submitter.Submit(domain.NormalizedPositions{
		d.symbol: domain.Position{
			Symbol: e.Symbol,
			Side:   signal.Side,
			Price:  signal.Price,
			Size:   d.size,
		},
	})
	d.prevSignalSide = signal.Side
	d.havePrevSignal = true
}
