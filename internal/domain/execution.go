package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Execution is a single observed trade on an exchange. It is immutable
// once constructed: published by exactly one source and consumed by zero
// or more subscribers. Grounded on trade/execution/model.py's Execution.
type Execution struct {
	Symbol    Symbol
	ID        *int64 // nil for synthetic entries (e.g. a SwitchedToRealtime marker's companion slot)
	Timestamp time.Time
	Side      Side
	Price     decimal.Decimal
	Size      decimal.Decimal

	BuyChildOrderAcceptanceID  string
	SellChildOrderAcceptanceID string

	// TimeunitIfOHLCFrom records the bucket width that produced this
	// execution when it was synthesised by OHLCStream, so a downstream
	// consumer can tell a derived open/high/low/close element apart from
	// a raw execution. Nil for raw stream elements.
	TimeunitIfOHLCFrom *time.Duration

	// Synchronized is the nearest-prior companion execution from a
	// secondary stream, set via Wrap by stream.Synchronized. Nil if no such
	// companion existed when this execution was wrapped.
	Synchronized *SynchronizedExecution

	// Attrs is a forward-compatible bag for fields not otherwise named,
	// mirroring the source's **attrs kwarg.
	Attrs map[string]any
}

// SynchronizedExecution mirrors a subset of Execution's fields: the
// companion carries its own identity plus the deviation/time-delta
// relative to the primary execution it was attached to.
type SynchronizedExecution struct {
	Symbol    Symbol
	ID        *int64
	Timestamp time.Time
	Side      Side
	Price     decimal.Decimal
	Size      decimal.Decimal

	BuyChildOrderAcceptanceID  string
	SellChildOrderAcceptanceID string

	// PriceDeviation = (primary.Price - companion.Price) / primary.Price,
	// TimeDelta = companion.Timestamp - primary.Timestamp (<= 0 by the
	// synchroniser's own invariant: companion.Timestamp <= primary.Timestamp).
	PriceDeviation decimal.Decimal
	TimeDelta      time.Duration
}

// FromExecution builds a SynchronizedExecution shell from a bare execution,
// with deviation/delta left zero — used by SynchronizedStream to seed its
// internal "previous secondary" tracking variable, mirroring
// SynchronizedExecution.from_execution.
func FromExecution(e *Execution) *SynchronizedExecution {
	return &SynchronizedExecution{
		Symbol:                     e.Symbol,
		ID:                         e.ID,
		Timestamp:                  e.Timestamp,
		Side:                       e.Side,
		Price:                      e.Price,
		Size:                       e.Size,
		BuyChildOrderAcceptanceID:  e.BuyChildOrderAcceptanceID,
		SellChildOrderAcceptanceID: e.SellChildOrderAcceptanceID,
	}
}

// Wrap attaches a synchronized companion to execution, computing the price
// deviation and time delta, mirroring Execution.wrap in
// trade/execution/model.py. timeunitIfOHLCFrom may be nil.
func Wrap(execution *Execution, timeunitIfOHLCFrom *time.Duration, companion *SynchronizedExecution) *Execution {
	out := *execution
	out.TimeunitIfOHLCFrom = timeunitIfOHLCFrom
	if companion != nil {
		sync := *companion
		if !execution.Price.IsZero() {
			sync.PriceDeviation = execution.Price.Sub(companion.Price).Div(execution.Price)
		}
		sync.TimeDelta = companion.Timestamp.Sub(execution.Timestamp)
		out.Synchronized = &sync
	}
	return &out
}

// IsSwitchedToRealtime reports whether this execution is actually the
// warm-up/realtime boundary marker rather than a real trade. Markers carry
// no ID, no side beyond NOTHING, and a zero price/size — see
// NewSwitchedToRealtime.
func (e *Execution) IsSwitchedToRealtime() bool {
	return e.Attrs != nil && e.Attrs["switched_to_realtime"] == true
}

// NewSwitchedToRealtime constructs the distinct marker variant described in
// spec.md §3: it carries only (symbol, timestamp) and is recognised via
// IsSwitchedToRealtime by anything downstream that cares.
func NewSwitchedToRealtime(symbol Symbol, timestamp time.Time) *Execution {
	return &Execution{
		Symbol:    symbol,
		Timestamp: timestamp,
		Side:      SideNothing,
		Price:     decimal.Zero,
		Size:      decimal.Zero,
		Attrs:     map[string]any{"switched_to_realtime": true},
	}
}

func (e *Execution) String() string {
	id := "nil"
	if e.ID != nil {
		id = fmt.Sprintf("%d", *e.ID)
	}
	return fmt.Sprintf("Execution(symbol=%s id=%s ts=%s side=%s price=%s size=%s)",
		e.Symbol, id, e.Timestamp.Format(time.RFC3339Nano), e.Side, e.Price, e.Size)
}
