// Command replay runs the strategy layer offline against previously
// recorded execution chunk files, with no broker, no exchange client and
// no websocket connection — useful for sanity-checking a Strategy's
// signals against real history before pointing cmd/trader at a live
// account. Adapted from cmd/trader/main.go's wiring, minus everything
// that talks to bitFlyer.
package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"bitflyer-trader/internal/domain"
	"bitflyer-trader/internal/execution/stream"
	"bitflyer-trader/internal/feed"
	"bitflyer-trader/internal/strategy"
)

func main() {
	dataDir := pflag.String("data-dir", "./data", "directory of recorded execution chunk files")
	from := pflag.String("from", "", "RFC3339 timestamp to start replay from (default: earliest chunk)")
	ohlcWindow := pflag.Duration("ohlc-window", time.Minute, "OHLC bucket width fed to the strategy")
	seed := pflag.Int64("seed", 1, "deterministic seed for the stub strategy's random side choice")
	pflag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var fromTime time.Time
	if *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			logger.Error("invalid --from timestamp", "error", err)
			os.Exit(1)
		}
		fromTime = t
	}

	source, err := feed.NewRowStoreSource(*dataDir, fromTime)
	if err != nil {
		logger.Error("failed to open chunk files", "error", err, "data_dir", *dataDir)
		os.Exit(1)
	}
	defer source.Close()

	ohlc := stream.NewOHLC(source, *ohlcWindow)
	strat := strategy.NewStub(*ohlcWindow, rand.New(rand.NewSource(*seed)))
	replayed := &replaySubmitter{logger: logger}
	dist := strategy.NewDistributor(strat, domain.SymbolFXBTCJPY, decimal.NewFromFloat(0.01), logger)

	ctx := context.Background()
	if err := dist.Run(ctx, ohlc, replayed); err != nil && !errors.Is(err, stream.ErrEndOfStream) {
		logger.Error("replay stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("replay finished", "positions_submitted", replayed.count)
}

// replaySubmitter logs every position a live broker would have been told
// to reconcile toward, instead of actually submitting anything.
type replaySubmitter struct {
	logger *slog.Logger
	count  int
}

func (r *replaySubmitter) Submit(positions domain.NormalizedPositions) {
	r.count++
	for symbol, pos := range positions {
		r.logger.Info("would submit position",
			"symbol", symbol, "side", pos.Side, "price", pos.Price, "size", pos.Size)
	}
}
