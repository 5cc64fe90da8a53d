// Package feed adapts bitFlyer's realtime websocket and historical sqlite
// chunk files into stream.Stream, the two external sources spec.md §6
// names. Grounded on trade/execution/stream/realtime.py's channel/message
// convention (realtime) and list_sqlite_connections (historical).
package feed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bitflyer-trader/internal/domain"
	"bitflyer-trader/internal/exchange"
	"bitflyer-trader/internal/execution/stream"
)

// executionSource is the subset of *exchange.ExecutionFeed this package
// depends on, narrowed to an interface so RealtimeSource can be exercised
// against a fake feed in tests.
type executionSource interface {
	Executions() <-chan exchange.ChannelBatch
	Subscribe(channel string) error
}

// RealtimeSource adapts a single lightning_executions_<SYMBOL> channel of
// an exchange.ExecutionFeed into a stream.Stream, unpacking each
// channel's batched message into individual executions.
type RealtimeSource struct {
	symbol  domain.Symbol
	channel string
	feed    executionSource

	pending []exchange.ExecutionMessage
}

// NewRealtimeSource subscribes feed to the channel for symbol and returns
// a Stream over it. The feed must already be running (feed.Run started in
// a separate goroutine) for Next to ever make progress.
func NewRealtimeSource(feed executionSource, symbol domain.Symbol) (*RealtimeSource, error) {
	channel := "lightning_executions_" + string(symbol)
	if err := feed.Subscribe(channel); err != nil {
		return nil, fmt.Errorf("feed: subscribe %s: %w", channel, err)
	}
	return &RealtimeSource{symbol: symbol, channel: channel, feed: feed}, nil
}

// Next returns the next execution observed on this source's channel. It
// returns stream.ErrEndOfStream only if the feed's batch channel is
// closed; otherwise the caller drives termination via ctx.
func (s *RealtimeSource) Next(ctx context.Context) (*domain.Execution, error) {
	for len(s.pending) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case batch, ok := <-s.feed.Executions():
			if !ok {
				return nil, stream.ErrEndOfStream
			}
			if batch.Channel != s.channel {
				continue
			}
			s.pending = batch.Batch
		}
	}

	msg := s.pending[0]
	s.pending = s.pending[1:]
	return toDomainExecution(s.symbol, msg), nil
}

func toDomainExecution(symbol domain.Symbol, msg exchange.ExecutionMessage) *domain.Execution {
	id := msg.ID
	return &domain.Execution{
		Symbol:                     symbol,
		ID:                         &id,
		Timestamp:                  msg.ExecDate,
		Side:                       domain.Side(msg.Side),
		Price:                      decimal.NewFromFloat(msg.Price),
		Size:                       decimal.NewFromFloat(msg.Size),
		BuyChildOrderAcceptanceID:  msg.BuyChildOrderAcceptanceID,
		SellChildOrderAcceptanceID: msg.SellChildOrderAcceptanceID,
	}
}
