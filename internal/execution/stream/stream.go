// Package stream implements the composable execution-stream adapters of
// spec.md §4.1: ChainedStream, DropWhileStream, NewPricesStream,
// OHLCStream and SynchronizedStream. Each adapter is a lazy,
// single-consumer sequence with its only suspension point at pulling from
// its upstream — realised here as a blocking Next(ctx) call rather than a
// channel, since there is exactly one consumer and composition is by
// direct reference, matching spec.md's "composition is by construction"
// model.
package stream

import (
	"context"
	"errors"
	"fmt"

	"bitflyer-trader/internal/domain"
)

// ErrEndOfStream is returned by Next when the stream is exhausted. It is
// the Go analogue of Python's StopAsyncIteration.
var ErrEndOfStream = errors.New("stream: end of stream")

// ErrOrderViolation is returned by ChainedStream.Next when the first
// element of the next upstream precedes the last element emitted by the
// previous one.
var ErrOrderViolation = errors.New("stream: order violation across chained upstreams")

// Stream is the single-method pull interface every adapter implements.
type Stream interface {
	// Next returns the next execution, or ErrEndOfStream once exhausted.
	Next(ctx context.Context) (*domain.Execution, error)
}

// Func adapts a plain function to the Stream interface, useful for tests
// and for wrapping a historical/realtime source behind the same contract.
type Func func(ctx context.Context) (*domain.Execution, error)

func (f Func) Next(ctx context.Context) (*domain.Execution, error) { return f(ctx) }

// FromSlice returns a Stream that yields each element of es in order, then
// ErrEndOfStream. Used heavily by tests and by in-memory historical
// replay.
func FromSlice(es []*domain.Execution) Stream {
	i := 0
	return Func(func(ctx context.Context) (*domain.Execution, error) {
		if i >= len(es) {
			return nil, ErrEndOfStream
		}
		e := es[i]
		i++
		return e, nil
	})
}

func wrapErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrEndOfStream) {
		return err
	}
	return fmt.Errorf("stream: %s: %w", op, err)
}
