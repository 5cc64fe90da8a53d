package strategy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitflyer-trader/internal/domain"
)

func stubExec(ts time.Time, price int64) *domain.Execution {
	return &domain.Execution{
		Symbol:    domain.SymbolFXBTCJPY,
		Timestamp: ts,
		Side:      domain.SideBuy,
		Price:     decimal.NewFromInt(price),
		Size:      decimal.NewFromFloat(0.01),
	}
}

func TestStubIgnoresNonPrimarySymbol(t *testing.T) {
	t.Parallel()
	s := NewStub(time.Minute, rand.New(rand.NewSource(1)))
	e := stubExec(time.Now(), 100)
	e.Symbol = domain.SymbolBTCJPY

	got := s.MakeDecision(e)
	if got.Side != domain.SideNothing {
		t.Errorf("side = %s, want NOTHING", got.Side)
	}
}

func TestStubRequiresOnePriorExecutionBeforeSignalling(t *testing.T) {
	t.Parallel()
	s := NewStub(time.Minute, rand.New(rand.NewSource(1)))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := s.MakeDecision(stubExec(base, 100))
	if first.Side != domain.SideNothing {
		t.Errorf("first decision side = %s, want NOTHING (no prior execution yet)", first.Side)
	}

	second := s.MakeDecision(stubExec(base.Add(time.Second), 101))
	if second.Side != domain.SideBuy && second.Side != domain.SideSell {
		t.Errorf("second decision side = %s, want BUY or SELL", second.Side)
	}
}

func TestStubHoldsWithinSameTimeUnit(t *testing.T) {
	t.Parallel()
	s := NewStub(time.Hour, rand.New(rand.NewSource(1)))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.MakeDecision(stubExec(base, 100))
	first := s.MakeDecision(stubExec(base.Add(time.Second), 101))
	if first.Side != domain.SideBuy && first.Side != domain.SideSell {
		t.Fatalf("first real decision = %s, want BUY/SELL", first.Side)
	}

	// still within the same hour-long bucket: must hold
	second := s.MakeDecision(stubExec(base.Add(2*time.Second), 102))
	if second.Side != domain.SideContinue {
		t.Errorf("second decision side = %s, want CONTINUE (same time unit)", second.Side)
	}
}
