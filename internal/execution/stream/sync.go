package stream

import (
	"context"

	"bitflyer-trader/internal/domain"
)

// Synchronized aligns a secondary stream's nearest-prior event to each
// primary event. Implements the protocol in spec.md §4.1 exactly,
// including the tail-handling edge case (continuing to emit remaining
// primary elements against the last-seen secondary once the secondary is
// exhausted, as long as it is not itself in the future relative to the
// primary). Grounded on SynchronizedStream in
// trade/execution/stream/adapter/sync.py.
type Synchronized struct {
	primary   Stream
	secondary Stream

	primed       bool
	primaryDone  bool
	secondaryExhausted bool

	primaryCur   *domain.Execution
	secondaryCur *domain.Execution // current secondary element, not yet consumed as a companion
	prevSecondary *domain.SynchronizedExecution
}

// NewSynchronized builds a SynchronizedStream over primary and secondary.
func NewSynchronized(primary, secondary Stream) *Synchronized {
	return &Synchronized{primary: primary, secondary: secondary}
}

func (s *Synchronized) Next(ctx context.Context) (*domain.Execution, error) {
	if s.primaryDone {
		return nil, ErrEndOfStream
	}

	if !s.primed {
		p, err := s.primary.Next(ctx)
		if err != nil {
			s.primaryDone = true
			return nil, wrapErr("synchronized", err)
		}
		s.primaryCur = p

		sec, err := s.secondary.Next(ctx)
		if err == ErrEndOfStream {
			s.secondaryExhausted = true
		} else if err != nil {
			return nil, wrapErr("synchronized", err)
		} else {
			s.secondaryCur = sec
		}
		s.primed = true

		if err := s.advanceSecondary(ctx); err != nil {
			return nil, err
		}
	}

	p := s.primaryCur
	out := domain.Wrap(p, nil, s.prevSecondary)

	next, err := s.primary.Next(ctx)
	if err == ErrEndOfStream {
		s.primaryDone = true
	} else if err != nil {
		return nil, wrapErr("synchronized", err)
	} else {
		s.primaryCur = next
		if err := s.advanceSecondary(ctx); err != nil {
			return nil, err
		}
		if s.secondaryExhausted {
			// Continue emitting remaining primary elements against the
			// last-seen prev_s as long as it is not itself in the future
			// relative to the primary, per step 4 of the protocol.
			if s.prevSecondary == nil || s.prevSecondary.Timestamp.After(s.primaryCur.Timestamp) {
				s.primaryDone = true
			}
		}
	}

	return out, nil
}

// advanceSecondary advances the secondary cursor while its timestamp is
// not after the current primary's, remembering the last advanced element
// as prevSecondary.
func (s *Synchronized) advanceSecondary(ctx context.Context) error {
	for !s.secondaryExhausted && s.secondaryCur != nil && !s.secondaryCur.Timestamp.After(s.primaryCur.Timestamp) {
		s.prevSecondary = domain.FromExecution(s.secondaryCur)
		next, err := s.secondary.Next(ctx)
		if err == ErrEndOfStream {
			s.secondaryExhausted = true
			s.secondaryCur = nil
			return nil
		}
		if err != nil {
			return wrapErr("synchronized", err)
		}
		s.secondaryCur = next
	}
	return nil
}
