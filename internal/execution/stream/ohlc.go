package stream

import (
	"context"
	"time"

	"bitflyer-trader/internal/domain"
)

// OHLC accumulates executions of the current bucket (duration W, aligned
// at the epoch). When a new bucket arrives it emits exactly four elements
// for the just-closed bucket, in order: open, then (high, low) ordered by
// timestamp (low first if low.timestamp < high.timestamp, else high
// first), then close. The still-open final bucket is never emitted; if the
// stream ends mid-bucket, that bucket is silently dropped. Each emitted
// element carries TimeunitIfOHLCFrom set to W. Grounded on OHLCStream in
// trade/execution/stream/adapter/filter.py.
type OHLC struct {
	upstream Stream
	window   time.Duration

	haveBucket bool
	bucketID   int64
	bucket     []*domain.Execution

	pending []*domain.Execution
	done    bool
}

// NewOHLC builds an OHLCStream over upstream with bucket width window.
func NewOHLC(upstream Stream, window time.Duration) *OHLC {
	return &OHLC{upstream: upstream, window: window}
}

func (o *OHLC) Next(ctx context.Context) (*domain.Execution, error) {
	for {
		if len(o.pending) > 0 {
			e := o.pending[0]
			o.pending = o.pending[1:]
			return e, nil
		}
		if o.done {
			return nil, ErrEndOfStream
		}

		e, err := o.upstream.Next(ctx)
		if err == ErrEndOfStream {
			o.done = true
			// Final open bucket is dropped, per spec.
			o.bucket = nil
			continue
		}
		if err != nil {
			return nil, wrapErr("ohlc", err)
		}

		units := bucketIndex(e.Timestamp, o.window)
		if o.haveBucket && units != o.bucketID {
			o.pending = o.closeBucket()
			o.haveBucket = true
			o.bucketID = units
			o.bucket = []*domain.Execution{e}
			continue
		}

		o.haveBucket = true
		o.bucketID = units
		o.bucket = append(o.bucket, e)
	}
}

func (o *OHLC) closeBucket() []*domain.Execution {
	bucket := o.bucket
	o.bucket = nil
	if len(bucket) == 0 {
		return nil
	}

	window := o.window
	open := bucket[0]
	high := bucket[0]
	low := bucket[0]
	for _, e := range bucket[1:] {
		if high.Price.LessThan(e.Price) {
			high = e
		}
		if e.Price.LessThan(low.Price) {
			low = e
		}
	}
	closeExec := bucket[len(bucket)-1]

	out := []*domain.Execution{withTimeunit(open, window)}
	if high.Timestamp.After(low.Timestamp) {
		out = append(out, withTimeunit(low, window), withTimeunit(high, window))
	} else {
		out = append(out, withTimeunit(high, window), withTimeunit(low, window))
	}
	out = append(out, withTimeunit(closeExec, window))
	return out
}

func withTimeunit(e *domain.Execution, window time.Duration) *domain.Execution {
	w := window
	cp := *e
	cp.TimeunitIfOHLCFrom = &w
	return &cp
}
