package queue

import (
	"context"
	"testing"
	"time"
)

func TestClearablePutCoalescesToNewestItem(t *testing.T) {
	t.Parallel()
	q := NewClearable[int]()
	q.Put(1)
	q.Put(2)
	q.Put(3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 3 {
		t.Errorf("got %d, want 3 (only the newest Put should survive)", got)
	}
}

func TestClearableGetBlocksUntilPut(t *testing.T) {
	t.Parallel()
	q := NewClearable[string]()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	var got string
	var err error
	go func() {
		got, err = q.Get(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Get returned before any Put")
	default:
	}

	q.Put("hello")
	<-done
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want hello", got)
	}
}

func TestClearableClearDiscardsPendingItem(t *testing.T) {
	t.Parallel()
	q := NewClearable[int]()
	q.Put(42)
	q.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := q.Get(ctx); err == nil {
		t.Error("Get should time out after Clear discarded the pending item")
	}
}

func TestClearableGetRespectsContextCancellation(t *testing.T) {
	t.Parallel()
	q := NewClearable[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Get(ctx); err == nil {
		t.Error("Get with a cancelled context should return an error")
	}
}

func TestFIFOPreservesArrivalOrder(t *testing.T) {
	t.Parallel()
	q := NewFIFO[int]()
	q.Put(1)
	q.Put(2)
	q.Put(3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, want := range []int{1, 2, 3} {
		got, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

func TestFIFOClearDiscardsAllPending(t *testing.T) {
	t.Parallel()
	q := NewFIFO[int]()
	q.Put(1)
	q.Put(2)
	q.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := q.Get(ctx); err == nil {
		t.Error("Get should time out after Clear discarded all pending items")
	}
}

func TestFIFOGetBlocksUntilPut(t *testing.T) {
	t.Parallel()
	q := NewFIFO[int]()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	var got int
	var err error
	go func() {
		got, err = q.Get(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put(7)
	<-done
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}
