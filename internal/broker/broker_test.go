package broker

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitflyer-trader/internal/config"
	"bitflyer-trader/internal/domain"
	"bitflyer-trader/internal/exchange"
)

// fakeClient is an in-memory stand-in for *exchange.Client: it tracks
// active LIMIT orders, positions, and every sendchildorder call, and
// optionally pauses its first GetPositions call so tests can exercise the
// restarter's cancel-and-replace path deterministically.
type fakeClient struct {
	mu sync.Mutex

	activeLimit []exchange.ChildOrder
	positions   []exchange.Position
	sent        []exchange.SendChildOrderRequest
	accepted    map[string]exchange.ChildOrder
	nextAccept  int

	pauseFirstPositions bool
	positionsCalls      int
	paused              chan struct{}
	resume              chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		accepted: make(map[string]exchange.ChildOrder),
		paused:   make(chan struct{}),
		resume:   make(chan struct{}),
	}
}

func (f *fakeClient) GetChildOrders(ctx context.Context, productCode string, state exchange.ChildOrderState, acceptanceID string) ([]exchange.ChildOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if acceptanceID != "" {
		if state == exchange.ChildOrderStateActive {
			if o, ok := f.accepted[acceptanceID]; ok {
				return []exchange.ChildOrder{o}, nil
			}
		}
		return nil, nil
	}

	if state == exchange.ChildOrderStateActive {
		out := make([]exchange.ChildOrder, len(f.activeLimit))
		copy(out, f.activeLimit)
		return out, nil
	}
	return nil, nil
}

func (f *fakeClient) CancelChildOrder(ctx context.Context, req exchange.CancelChildOrderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.activeLimit[:0]
	for _, o := range f.activeLimit {
		if o.ChildOrderID != req.ChildOrderID {
			kept = append(kept, o)
		}
	}
	f.activeLimit = kept
	return nil
}

func (f *fakeClient) SendChildOrder(ctx context.Context, req exchange.SendChildOrderRequest) (*exchange.SendChildOrderResponse, error) {
	f.mu.Lock()
	f.nextAccept++
	id := "JRF" + string(rune('0'+f.nextAccept))
	f.sent = append(f.sent, req)
	f.accepted[id] = exchange.ChildOrder{
		ChildOrderAcceptanceID: id,
		ProductCode:            req.ProductCode,
		ChildOrderType:         exchange.ChildOrderType(req.ChildOrderType),
		ChildOrderState:        exchange.ChildOrderStateActive,
	}
	f.mu.Unlock()
	return &exchange.SendChildOrderResponse{ChildOrderAcceptanceID: id}, nil
}

func (f *fakeClient) GetPositions(ctx context.Context, productCode string) ([]exchange.Position, error) {
	f.mu.Lock()
	shouldPause := f.pauseFirstPositions && f.positionsCalls == 0
	f.positionsCalls++
	f.mu.Unlock()

	if shouldPause {
		select {
		case f.paused <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		select {
		case <-f.resume:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]exchange.Position, len(f.positions))
	copy(out, f.positions)
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testBrokerConfig() config.BrokerConfig {
	return config.BrokerConfig{
		TimeWaitRetrying:    5 * time.Millisecond,
		TimeWait429Suspends: 5 * time.Millisecond,
		MinuteToExpire:      43200,
		TimeInForce:         "GTC",
	}
}

func desiredSnapshot(price, size int64) domain.NormalizedPositions {
	return domain.NormalizedPositions{
		domain.SymbolFXBTCJPY: {
			Symbol: domain.SymbolFXBTCJPY,
			Side:   domain.SideBuy,
			Price:  decimal.NewFromInt(price),
			Size:   decimal.NewFromInt(size),
		},
	}
}

// TestBrokerCommonPath exercises seed scenario S4: no outstanding orders,
// no existing positions, one desired snapshot reconciles to exactly one
// sendchildorder call and a final Idle state.
func TestBrokerCommonPath(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	b := New(testBrokerConfig(), domain.SymbolFXBTCJPY, "FX_BTC_JPY", client, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx)
		close(done)
	}()

	b.Submit(desiredSnapshot(1, 1))

	deadline := time.After(2 * time.Second)
	for {
		client.mu.Lock()
		sentCount := len(client.sent)
		client.mu.Unlock()
		if sentCount == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for sendchildorder")
		case <-time.After(5 * time.Millisecond):
		}
	}

	client.mu.Lock()
	req := client.sent[0]
	client.mu.Unlock()
	if req.Size != 1 || req.Price != 1 {
		t.Errorf("sent order = %+v, want size=1 price=1", req)
	}

	waitForState(t, b, StateIdle)
	cancel()
	<-done
}

// TestBrokerOODPreemption exercises seed scenario S5: three snapshots
// delivered while the first is still reconciling converge on exactly one
// sendchildorder call reflecting only the newest snapshot.
func TestBrokerOODPreemption(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	client.pauseFirstPositions = true
	b := New(testBrokerConfig(), domain.SymbolFXBTCJPY, "FX_BTC_JPY", client, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx)
		close(done)
	}()

	b.Submit(desiredSnapshot(1, 1))

	select {
	case <-client.paused:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first reconciliation to reach GetPositions")
	}

	b.Submit(desiredSnapshot(2, 2))
	b.Submit(desiredSnapshot(3, 3))

	time.Sleep(20 * time.Millisecond) // let the observer flag toBeCancelled before we resume
	close(client.resume)

	deadline := time.After(2 * time.Second)
	for {
		client.mu.Lock()
		sentCount := len(client.sent)
		client.mu.Unlock()
		if sentCount >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for sendchildorder")
		case <-time.After(5 * time.Millisecond):
		}
	}

	waitForState(t, b, StateIdle)

	client.mu.Lock()
	sent := append([]exchange.SendChildOrderRequest{}, client.sent...)
	client.mu.Unlock()

	if len(sent) != 1 {
		t.Fatalf("sent %d orders, want exactly 1: %+v", len(sent), sent)
	}
	if sent[0].Size != 3 || sent[0].Price != 3 {
		t.Errorf("final order = %+v, want size=3 price=3", sent[0])
	}

	cancel()
	<-done
}

func waitForState(t *testing.T, b *Broker, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if b.getState() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("broker state never reached %s", want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
