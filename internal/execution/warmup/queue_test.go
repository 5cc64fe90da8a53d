package warmup

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitflyer-trader/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func mkExec(id int64, ts time.Time) *domain.Execution {
	return &domain.Execution{
		Symbol:    domain.SymbolFXBTCJPY,
		ID:        &id,
		Timestamp: ts,
		Side:      domain.SideBuy,
		Price:     decimal.NewFromInt(100),
		Size:      decimal.NewFromFloat(0.01),
	}
}

func base() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

func TestQueuePrunesOlderThanWindowStrictly(t *testing.T) {
	t.Parallel()
	q := New(testLogger(), 10*time.Second)

	q.Put(mkExec(1, base()))
	q.Put(mkExec(2, base().Add(10*time.Second))) // exactly Window old: must be retained
	if got := q.ExecutionCount(); got != 2 {
		t.Fatalf("ExecutionCount = %d, want 2 (exactly-Window element retained)", got)
	}

	q.Put(mkExec(3, base().Add(10*time.Second+time.Nanosecond))) // now #1 is > Window old
	if got := q.ExecutionCount(); got != 2 {
		t.Errorf("ExecutionCount = %d, want 2 (oldest pruned once strictly over window)", got)
	}
}

func TestQueueInsertIsStableForEqualTimestamps(t *testing.T) {
	t.Parallel()
	q := New(testLogger(), time.Minute)

	ts := base()
	q.Put(mkExec(1, ts))
	q.Put(mkExec(2, ts)) // same timestamp, arrives second

	q.Spawn("client")
	ctx := context.Background()
	e1, err := q.Get(ctx, "client")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	e2, err := q.Get(ctx, "client")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *e1.ID != 1 || *e2.ID != 2 {
		t.Errorf("got ids %d, %d, want 1, 2 (stable insert order for equal timestamps)", *e1.ID, *e2.ID)
	}
}

func TestSpawnSeedsSubscriberWithCurrentDequeContents(t *testing.T) {
	t.Parallel()
	q := New(testLogger(), time.Minute)

	q.Put(mkExec(1, base()))
	q.Put(mkExec(2, base().Add(time.Second)))
	q.Spawn("late-joiner")

	ctx := context.Background()
	e1, err := q.Get(ctx, "late-joiner")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *e1.ID != 1 {
		t.Errorf("got id %d, want 1 (oldest first)", *e1.ID)
	}
}

func TestGetSynthesizesSwitchedToRealtimeMarkerOnceCaughtUp(t *testing.T) {
	t.Parallel()
	q := New(testLogger(), time.Minute)
	q.Put(mkExec(1, base()))
	q.Spawn("client")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	e1, err := q.Get(ctx, "client")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *e1.ID != 1 {
		t.Fatalf("got id %d, want 1", *e1.ID)
	}

	marker, err := q.Get(ctx, "client")
	if err != nil {
		t.Fatalf("Get (marker): %v", err)
	}
	if !marker.IsSwitchedToRealtime() {
		t.Error("expected a SwitchedToRealtime marker once the subscriber caught up")
	}

	// subsequently-Put executions must still arrive after the marker.
	q.Put(mkExec(2, base().Add(time.Second)))
	e2, err := q.Get(ctx, "client")
	if err != nil {
		t.Fatalf("Get (post-marker): %v", err)
	}
	if *e2.ID != 2 {
		t.Errorf("got id %d, want 2", *e2.ID)
	}
}

func TestGetOnUnknownClientReturnsErrUnknownClient(t *testing.T) {
	t.Parallel()
	q := New(testLogger(), time.Minute)

	if _, err := q.Get(context.Background(), "ghost"); !errors.Is(err, ErrUnknownClient) {
		t.Errorf("Get = %v, want ErrUnknownClient", err)
	}
}

func TestDisposeRemovesSubscriber(t *testing.T) {
	t.Parallel()
	q := New(testLogger(), time.Minute)
	q.Spawn("client")
	if got := q.SpawnedQueueCount(); got != 1 {
		t.Fatalf("SpawnedQueueCount = %d, want 1", got)
	}

	if err := q.Dispose("client"); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if got := q.SpawnedQueueCount(); got != 0 {
		t.Errorf("SpawnedQueueCount = %d, want 0", got)
	}
	if err := q.Dispose("client"); !errors.Is(err, ErrUnknownClient) {
		t.Errorf("second Dispose = %v, want ErrUnknownClient", err)
	}
}
