// Command trader runs the live bitFlyer trading pipeline end to end: a
// realtime execution feed warmed up by historical replay, a strategy
// distilling that stream into position signals, and a declarative broker
// reconciling the exchange to match. Adapted from cmd/bot/main.go's
// config/logger/signal-handling/graceful-shutdown shape.
package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bitflyer-trader/internal/broker"
	"bitflyer-trader/internal/config"
	"bitflyer-trader/internal/domain"
	"bitflyer-trader/internal/exchange"
	"bitflyer-trader/internal/execution/stream"
	"bitflyer-trader/internal/execution/warmup"
	"bitflyer-trader/internal/feed"
	"bitflyer-trader/internal/strategy"
	"bitflyer-trader/internal/writer"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("TRADER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(*cfg)

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	symbol := domain.Symbol(cfg.Exchange.Symbol)
	client := exchange.NewClient(*cfg, logger)

	b := broker.New(cfg.Broker, symbol, cfg.Exchange.ProductCode, client, logger)

	w, err := writer.Open(cfg.Writer.DataDir, domain.ExchangeBitFlyer, cfg.Writer.RecordsRotation, cfg.Writer.RecordsInsertion, logger)
	if err != nil {
		logger.Error("failed to open execution writer", "error", err)
		os.Exit(1)
	}

	wq := warmup.New(logger, cfg.Pipeline.WarmupWindow)
	clientID := "trader-strategy"
	wq.Spawn(clientID)

	execFeed := exchange.NewExecutionFeed(cfg.API.WSURL, logger)
	realtime, err := feed.NewRealtimeSource(execFeed, symbol)
	if err != nil {
		logger.Error("failed to create realtime source", "error", err)
		os.Exit(1)
	}

	historical, err := feed.NewRowStoreSource(cfg.Writer.DataDir, time.Now().Add(-cfg.Pipeline.WarmupWindow))
	if err != nil {
		logger.Error("failed to open historical chunk files", "error", err)
		os.Exit(1)
	}

	pipeline := buildPipeline(historical, wq, clientID)
	dist := strategy.NewDistributor(strategy.NewStub(cfg.Pipeline.OHLCWindow, rand.New(rand.NewSource(time.Now().UnixNano()))),
		symbol, decimal.NewFromFloat(0.01), logger)

	var wg errgroup.Group
	wg.Go(func() error { return execFeed.Run(ctx) })
	wg.Go(func() error { return b.Run(ctx) })
	wg.Go(func() error { return runIngest(ctx, wq, realtime, w, logger) })
	wg.Go(func() error { return dist.Run(ctx, pipeline, b) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	if err := wg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("pipeline exited with error", "error", err)
	}

	if path, err := w.Close(); err != nil {
		logger.Error("failed to finalize execution writer", "error", err)
	} else {
		logger.Info("finalized execution chunk", "path", path)
	}
}

// runIngest pulls from the realtime feed directly (the source of truth),
// fans every execution into the warm-up queue (so late subscribers replay
// it) and into the rotating writer, mirroring the source pipeline's single
// ingestion point feeding multiple consumers.
func runIngest(ctx context.Context, wq *warmup.Queue, src *feed.RealtimeSource, w *writer.Writer, logger *slog.Logger) error {
	for {
		e, err := src.Next(ctx)
		if errors.Is(err, stream.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return err
		}
		wq.Put(e)
		if err := w.Write(e); err != nil {
			logger.Error("failed to write execution", "error", err)
		}
	}
}

// buildPipeline composes the historical replay (bounded) with the warm-up
// queue's own realtime handoff (unbounded), matching the source pipeline's
// chained-stream composition: history first, then the queue's synthesized
// SwitchedToRealtime marker, then everything the live feed delivers to the
// strategy's own subscriber id.
func buildPipeline(historical stream.Stream, wq *warmup.Queue, clientID string) stream.Stream {
	queueSource := stream.Func(func(ctx context.Context) (*domain.Execution, error) {
		return wq.Get(ctx, clientID)
	})
	return stream.NewChained(historical, queueSource)
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
