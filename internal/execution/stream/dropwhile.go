package stream

import (
	"context"

	"bitflyer-trader/internal/domain"
)

// DropWhile discards elements while predicate holds; from the first
// element where it fails, emits that element and all subsequent elements
// unconditionally. predicate is called at most once per element. Grounded
// on DropWhileStream in trade/execution/stream/adapter/filter.py.
type DropWhile struct {
	upstream  Stream
	predicate func(*domain.Execution) bool
	done      bool
}

// NewDropWhile builds a DropWhileStream over upstream.
func NewDropWhile(upstream Stream, predicate func(*domain.Execution) bool) *DropWhile {
	return &DropWhile{upstream: upstream, predicate: predicate}
}

func (d *DropWhile) Next(ctx context.Context) (*domain.Execution, error) {
	if d.done {
		e, err := d.upstream.Next(ctx)
		return e, wrapErr("drop-while", err)
	}
	for {
		e, err := d.upstream.Next(ctx)
		if err != nil {
			return nil, wrapErr("drop-while", err)
		}
		if d.predicate(e) {
			continue
		}
		d.done = true
		return e, nil
	}
}
