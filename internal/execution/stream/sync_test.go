package stream

import (
	"context"
	"testing"

	"bitflyer-trader/internal/domain"
)

func TestSynchronizedAttachesNearestPriorSecondary(t *testing.T) {
	t.Parallel()
	primary := FromSlice([]*domain.Execution{
		exec(1, at(0), 100),
		exec(2, at(5), 101),
		exec(3, at(10), 102),
	})
	secondary := FromSlice([]*domain.Execution{
		exec(101, at(0), 200),
		exec(102, at(6), 201), // prior to primary#3 (t=10), not to primary#2 (t=5)
	})

	s := NewSynchronized(primary, secondary)
	ctx := context.Background()

	e1, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next(1): %v", err)
	}
	if e1.Synchronized == nil || *e1.Synchronized.ID != 101 {
		t.Fatalf("e1.Synchronized = %+v, want companion id=101", e1.Synchronized)
	}

	e2, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next(2): %v", err)
	}
	if e2.Synchronized == nil || *e2.Synchronized.ID != 101 {
		t.Fatalf("e2.Synchronized = %+v, want still companion id=101 (102 is after t=5)", e2.Synchronized)
	}

	e3, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next(3): %v", err)
	}
	if e3.Synchronized == nil || *e3.Synchronized.ID != 102 {
		t.Fatalf("e3.Synchronized = %+v, want companion id=102 (advanced at t=10)", e3.Synchronized)
	}

	if _, err := s.Next(ctx); err != ErrEndOfStream {
		t.Errorf("final Next = %v, want ErrEndOfStream", err)
	}
}

func TestSynchronizedKeepsPriorCompanionWhileNextSecondaryIsInTheFuture(t *testing.T) {
	t.Parallel()
	primary := FromSlice([]*domain.Execution{
		exec(1, at(0), 100),
		exec(2, at(1), 101),
	})
	secondary := FromSlice([]*domain.Execution{
		exec(101, at(0), 200),
		exec(102, at(100), 201), // far in the future relative to primary
	})

	s := NewSynchronized(primary, secondary)
	ctx := context.Background()

	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("Next(1): %v", err)
	}
	// secondary has advanced to 101; 102 has been read but is after
	// primary#2, so it is not consumed. prevSecondary(101).Timestamp is not
	// after primary#2's, so the stream keeps emitting against companion 101.
	e2, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next(2): %v", err)
	}
	if e2.Synchronized == nil || *e2.Synchronized.ID != 101 {
		t.Fatalf("e2.Synchronized = %+v, want companion id=101", e2.Synchronized)
	}
}
