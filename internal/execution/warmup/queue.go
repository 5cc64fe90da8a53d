// Package warmup implements the time-window warm-up queue of spec.md §4.2:
// a multi-subscriber fan-out queue that first replays a sliding time
// window of execution history, then switches each subscriber to the live
// feed via a one-shot synthesized marker. Grounded on
// TimeWindowExecutionQueue in trade/execution/queue.py.
package warmup

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bitflyer-trader/internal/domain"
)

// ErrUnknownClient is returned by Get/Dispose for a client id with no
// spawned subscriber queue.
var ErrUnknownClient = errors.New("warmup: unknown client id")

// subscriberChanSize bounds each subscriber's backlog; Put's broadcast is
// non-blocking and drops with a warning if a subscriber's channel is full,
// mirroring the teacher's drain-or-drop idiom in risk/manager.go.
const subscriberChanSize = 4096

type subscriber struct {
	ch                  chan *domain.Execution
	switchedToRealtime  bool
}

// Queue is the time-window warm-up queue. It owns a central deque of the
// last Window worth of executions and a per-client subscriber channel.
type Queue struct {
	logger *slog.Logger
	window time.Duration

	mu          sync.Mutex
	deque       *list.List // of *domain.Execution, non-decreasing timestamp
	subscribers map[string]*subscriber
}

// New builds a warm-up queue with the given replay window.
func New(logger *slog.Logger, window time.Duration) *Queue {
	return &Queue{
		logger:      logger.With("component", "warmup_queue"),
		window:      window,
		deque:       list.New(),
		subscribers: make(map[string]*subscriber),
	}
}

// Put inserts e into the central deque in timestamp order (searching from
// the right, stable for equal timestamps), prunes from the left anything
// now older than Window relative to the newest element, then broadcasts e
// to every spawned subscriber, non-blocking.
func (q *Queue) Put(e *domain.Execution) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.insert(e)
	q.prune()

	for id, sub := range q.subscribers {
		select {
		case sub.ch <- e:
		default:
			q.logger.Warn("warmup subscriber channel full, dropping execution", "client_id", id)
		}
	}
}

// insert performs the right-to-left search described in spec.md §4.2:
// step left while the left neighbour's timestamp is strictly greater;
// insert immediately to the right of an equal-timestamp element (stable
// for arrival order); prepend if nothing is greater.
func (q *Queue) insert(e *domain.Execution) {
	if q.deque.Len() == 0 {
		q.deque.PushBack(e)
		return
	}

	elem := q.deque.Back()
	for elem != nil {
		cur := elem.Value.(*domain.Execution)
		if cur.Timestamp.After(e.Timestamp) {
			elem = elem.Prev()
			continue
		}
		// cur.timestamp <= e.timestamp: insert right after cur.
		q.deque.InsertAfter(e, elem)
		return
	}
	// Walked past the front: every element is newer than e.
	q.deque.PushFront(e)
}

// prune drops elements from the left while newest.timestamp -
// leftmost.timestamp > Window, per spec.md §4.2's strict-inequality rule
// (Design Note (c): an element exactly Window old is retained).
func (q *Queue) prune() {
	if q.deque.Len() == 0 {
		return
	}
	newest := q.deque.Back().Value.(*domain.Execution)
	for q.deque.Len() > 0 {
		front := q.deque.Front()
		leftmost := front.Value.(*domain.Execution)
		if newest.Timestamp.Sub(leftmost.Timestamp) > q.window {
			q.deque.Remove(front)
			continue
		}
		break
	}
}

// Spawn creates a subscriber queue seeded with the current deque contents
// (oldest first), and records that the client has not yet received the
// realtime marker. Spawning an already-existing id overwrites it.
func (q *Queue) Spawn(clientID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub := &subscriber{ch: make(chan *domain.Execution, subscriberChanSize)}
	for e := q.deque.Front(); e != nil; e = e.Next() {
		sub.ch <- e.Value.(*domain.Execution)
	}
	q.subscribers[clientID] = sub
}

// Get returns the client's next execution, suspending if none is
// immediately available. If the subscriber's queue is empty and it has not
// yet transitioned, a SwitchedToRealtime marker is synthesized, enqueued,
// and the client is marked transitioned before the (now non-empty) queue
// is awaited.
func (q *Queue) Get(ctx context.Context, clientID string) (*domain.Execution, error) {
	q.mu.Lock()
	sub, ok := q.subscribers[clientID]
	if !ok {
		q.mu.Unlock()
		return nil, ErrUnknownClient
	}

	if len(sub.ch) == 0 && !sub.switchedToRealtime {
		symbol := domain.Symbol("")
		if e, ok := q.peekAnySymbol(); ok {
			symbol = e.Symbol
		}
		marker := domain.NewSwitchedToRealtime(symbol, time.Now().UTC())
		sub.ch <- marker
		sub.switchedToRealtime = true
	}
	q.mu.Unlock()

	select {
	case e := <-sub.ch:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) peekAnySymbol() (*domain.Execution, bool) {
	if q.deque.Len() == 0 {
		return nil, false
	}
	return q.deque.Back().Value.(*domain.Execution), true
}

// Dispose removes the subscriber; a subsequent Get with that id fails with
// ErrUnknownClient.
func (q *Queue) Dispose(clientID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.subscribers[clientID]; !ok {
		return ErrUnknownClient
	}
	delete(q.subscribers, clientID)
	return nil
}

// SpawnedQueueCount and ExecutionCount are introspection helpers mirroring
// spawned_queue_count/execution_count in trade/execution/queue.py.
func (q *Queue) SpawnedQueueCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.subscribers)
}

func (q *Queue) ExecutionCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.deque.Len()
}
