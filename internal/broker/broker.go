// Package broker implements the idempotent, declarative broker control
// loop (spec.md §4.5 / SPEC_FULL.md §4.5): Observer/Trader/Restarter
// goroutines cooperating over two queues, a manual-reset event, and a
// weight-1 semaphore, continuously reconciling bitFlyer's open orders and
// positions against the newest desired NormalizedPositions snapshot.
//
// Grounded on trade/broker/declarative/bitflyer/__init__.py's
// BitflyerBroker (observer/trader/start_new_trader), with the goroutine
// fan-out shape borrowed from 0xtitan6-polymarket-mm's
// internal/engine/engine.go.
package broker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"bitflyer-trader/internal/config"
	"bitflyer-trader/internal/domain"
	"bitflyer-trader/internal/exchange"
	"bitflyer-trader/internal/queue"
)

// State is the broker's reconciliation state.
type State int

const (
	StateIdle State = iota
	StateProvisioning
)

func (s State) String() string {
	if s == StateProvisioning {
		return "Provisioning"
	}
	return "Idle"
}

// exchangeClient is the subset of exchange.Client the broker needs,
// declared here so tests can substitute a fake without a live HTTP server.
type exchangeClient interface {
	GetChildOrders(ctx context.Context, productCode string, state exchange.ChildOrderState, acceptanceID string) ([]exchange.ChildOrder, error)
	CancelChildOrder(ctx context.Context, req exchange.CancelChildOrderRequest) error
	SendChildOrder(ctx context.Context, req exchange.SendChildOrderRequest) (*exchange.SendChildOrderResponse, error)
	GetPositions(ctx context.Context, productCode string) ([]exchange.Position, error)
}

// ErrUnexpectedResponse is fatal for the trader attempt in progress: a 200
// response to sendchildorder with no acceptance id on it.
var ErrUnexpectedResponse = exchange.ErrUnexpectedResponse

// Broker drives the exchange to match the newest desired position snapshot
// submitted via Submit, idempotently and without tearing open orders.
type Broker struct {
	cfg         config.BrokerConfig
	symbol      domain.Symbol
	productCode string
	client      exchangeClient
	logger      *slog.Logger

	candidateQueue *queue.FIFO[domain.NormalizedPositions]
	newestQueue    *queue.Clearable[domain.NormalizedPositions]
	toBeCancelled  *Event
	sem            *semaphore.Weighted

	stateMu sync.Mutex
	state   State
}

// New creates a broker for the given symbol/product. client is usually an
// *exchange.Client; tests pass a fake satisfying exchangeClient.
func New(cfg config.BrokerConfig, symbol domain.Symbol, productCode string, client exchangeClient, logger *slog.Logger) *Broker {
	return &Broker{
		cfg:            cfg,
		symbol:         symbol,
		productCode:    productCode,
		client:         client,
		logger:         logger.With("component", "broker"),
		candidateQueue: queue.NewFIFO[domain.NormalizedPositions](),
		newestQueue:    queue.NewClearable[domain.NormalizedPositions](),
		toBeCancelled:  NewEvent(),
		sem:            semaphore.NewWeighted(1),
		state:          StateIdle,
	}
}

// Submit enqueues a desired-position snapshot for the observer to pick up.
// Never blocks.
func (b *Broker) Submit(d domain.NormalizedPositions) {
	b.candidateQueue.Put(d)
}

func (b *Broker) getState() State {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.state
}

func (b *Broker) setState(s State) {
	b.stateMu.Lock()
	b.state = s
	b.stateMu.Unlock()
	b.logger.Info("state transition", "state", s)
}

// Run starts the observer, the initial trader, and the restarter, and
// blocks until ctx is cancelled. The initial trader is spawned directly
// here (mirroring the one `create_task(broker.trader())` call at startup
// in the original); the restarter only ever replaces it, it never starts
// the first one.
func (b *Broker) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	traderCtx, traderCancel := context.WithCancel(ctx)
	traderDone := make(chan struct{})
	current := &traderHandle{cancel: traderCancel, done: traderDone}

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.traderLoop(traderCtx, traderDone)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.observer(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.restarter(ctx, current, &wg)
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

type traderHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// observer forever reads desired snapshots off the candidate queue,
// transitions Idle->Provisioning or flags the in-flight trader as
// out-of-date, and forwards the snapshot to the trader's newest queue.
func (b *Broker) observer(ctx context.Context) {
	for {
		d, err := b.candidateQueue.Get(ctx)
		if err != nil {
			return
		}

		if b.getState() == StateIdle {
			b.logger.Info("observer got snapshot", "positions", d)
			b.setState(StateProvisioning)
		} else {
			b.logger.Info("observer got snapshot while provisioning, flagging out-of-date", "positions", d)
			b.toBeCancelled.Set()
		}

		b.newestQueue.Put(d)
	}
}

// restarter forever waits for toBeCancelled, then under the exclusive
// semaphore cancels the current trader and spawns a replacement.
func (b *Broker) restarter(ctx context.Context, current *traderHandle, wg *sync.WaitGroup) {
	for {
		if err := b.toBeCancelled.Wait(ctx); err != nil {
			return
		}

		if err := b.sem.Acquire(ctx, 1); err != nil {
			return
		}

		b.logger.Info("restarter: cancelling current trader")
		current.cancel()
		<-current.done

		traderCtx, traderCancel := context.WithCancel(ctx)
		done := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.traderLoop(traderCtx, done)
		}()

		current.cancel = traderCancel
		current.done = done

		b.toBeCancelled.Clear()
		b.sem.Release(1)
		b.logger.Info("restarter: started replacement trader")
	}
}

// traderLoop reads one snapshot off the newest queue at a time, clears any
// backlog, and runs the three reconciliation phases under a fresh request
// id. On success it loops back to Idle; on any error it transitions to
// Idle and exits (mirroring trader()'s bare `raise err`, which terminates
// the asyncio task).
func (b *Broker) traderLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		d, err := b.newestQueue.Get(ctx)
		if err != nil {
			return
		}
		b.newestQueue.Clear()

		reqID := generateRequestID()
		b.logger.Info("trader: got snapshot", "request_id", reqID, "positions", d)

		if err := b.reconcile(ctx, reqID, d); err != nil {
			b.setState(StateIdle)
			if errors.Is(err, context.Canceled) {
				b.logger.Info("trader: cancelled mid-reconciliation", "request_id", reqID)
				return
			}
			b.logger.Error("trader: reconciliation failed, task exiting", "request_id", reqID, "error", err)
			return
		}

		b.setState(StateIdle)
	}
}

// reconcile runs clearing, making-orders, and ordering under request id
// reqID, per spec.md §4.5.
func (b *Broker) reconcile(ctx context.Context, reqID string, desired domain.NormalizedPositions) error {
	if err := b.clearingOrders(ctx, reqID); err != nil {
		return fmt.Errorf("@%s clearing orders: %w", reqID, err)
	}

	orders, err := b.makingOrders(ctx, reqID, desired)
	if err != nil {
		return fmt.Errorf("@%s making orders: %w", reqID, err)
	}
	if allZero(orders) {
		b.logger.Info("trader: delta is zero, nothing to order", "request_id", reqID)
		return nil
	}

	if err := b.ordering(ctx, reqID, orders); err != nil {
		return fmt.Errorf("@%s ordering: %w", reqID, err)
	}
	return nil
}

func allZero(orders []bitflyerOrder) bool {
	for _, o := range orders {
		if !o.isZero() {
			return false
		}
	}
	return true
}

func generateRequestID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
