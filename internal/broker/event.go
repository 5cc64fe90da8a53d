package broker

import (
	"context"
	"sync"
)

// Event is a manual-reset event: Set wakes every current and future Waiter
// until Clear runs. It is the Go rendering of asyncio.Event, used by the
// broker to signal "the in-flight reconciliation is out of date" from the
// observer to the restarter.
type Event struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

// NewEvent creates a cleared event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Set marks the event, releasing every current and future Wait call until
// the next Clear.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		e.set = true
		close(e.ch)
	}
}

// Clear resets the event so future Wait calls block again.
func (e *Event) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		e.set = false
		e.ch = make(chan struct{})
	}
}

// IsSet reports the current state without blocking.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Wait blocks until Set is called (or ctx is done).
func (e *Event) Wait(ctx context.Context) error {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
