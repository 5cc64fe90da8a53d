package stream

import (
	"context"

	"bitflyer-trader/internal/domain"
)

// Chained produces the concatenation of a fixed ordered list of upstreams.
// After a boundary, the first element of the next upstream must have a
// timestamp not before the last element emitted from the previous
// upstream; otherwise Next returns ErrOrderViolation. Grounded on
// trade/execution/stream/chain.py's ChainedStream.
type Chained struct {
	upstreams []Stream
	idx       int
	lastAt    *domain.Execution // last execution emitted, from any upstream, if any
	crossed   bool              // set when idx advances, cleared once the next element is emitted
}

// NewChained builds a ChainedStream over upstreams in the given order.
func NewChained(upstreams ...Stream) *Chained {
	return &Chained{upstreams: upstreams}
}

func (c *Chained) Next(ctx context.Context) (*domain.Execution, error) {
	for c.idx < len(c.upstreams) {
		e, err := c.upstreams[c.idx].Next(ctx)
		if err == ErrEndOfStream {
			c.idx++
			c.crossed = true
			continue
		}
		if err != nil {
			return nil, wrapErr("chain", err)
		}
		if c.crossed && c.lastAt != nil && e.Timestamp.Before(c.lastAt.Timestamp) {
			return nil, ErrOrderViolation
		}
		c.crossed = false
		c.lastAt = e
		return e, nil
	}
	return nil, ErrEndOfStream
}
