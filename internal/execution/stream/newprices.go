package stream

import (
	"context"
	"time"

	"bitflyer-trader/internal/domain"
)

// NewPrices partitions the stream into disjoint buckets of duration W
// aligned at the epoch (bucket index = floor(timestamp_ns / W_ns)). Within
// a bucket it emits an element iff it is the bucket's first element, or
// strictly a new high, or strictly a new low for that bucket; ties at the
// exact running high/low are not re-emitted (spec.md Design Note (b)).
// Grounded on NewPricesStream in
// trade/execution/stream/adapter/filter.py.
type NewPrices struct {
	upstream Stream
	window   time.Duration

	haveBucket bool
	bucketID   int64
	high       *domain.Execution
	low        *domain.Execution
}

// NewNewPrices builds a NewPricesStream over upstream with bucket width window.
func NewNewPrices(upstream Stream, window time.Duration) *NewPrices {
	return &NewPrices{upstream: upstream, window: window}
}

func bucketIndex(ts time.Time, window time.Duration) int64 {
	return ts.UnixNano() / int64(window)
}

func (n *NewPrices) Next(ctx context.Context) (*domain.Execution, error) {
	for {
		e, err := n.upstream.Next(ctx)
		if err != nil {
			return nil, wrapErr("new-prices", err)
		}

		units := bucketIndex(e.Timestamp, n.window)
		if !n.haveBucket || units != n.bucketID {
			n.haveBucket = true
			n.bucketID = units
			n.high = e
			n.low = e
			return e, nil
		}

		if n.high.Price.LessThan(e.Price) {
			n.high = e
			return e, nil
		}
		if e.Price.LessThan(n.low.Price) {
			n.low = e
			return e, nil
		}
		// Tie at the running high or low, or an interior price: no emission.
	}
}
