package strategy

import (
	"math/rand"
	"time"

	"bitflyer-trader/internal/domain"
)

// Stub is a minimal reference Strategy: it only ever fires on
// domain.SymbolFXBTCJPY, requires one prior execution before it will ever
// signal (so the earliest signal comes on the second call), holds (CONTINUE) for the remainder of the current time bucket
// once it has signalled within it, and otherwise picks BUY or SELL at
// random. It exists to exercise the Distributor and the broker end to end,
// not as a real trading model. Grounded on RandomDotenStrategy in
// trade/strategy/stub.py.
type Stub struct {
	timeWindow time.Duration
	rng        *rand.Rand

	prev     *domain.Execution
	prev2Ago *domain.Execution

	timeUnits int64
}

// NewStub builds a Stub strategy with the given decision time-bucket
// width. rng may be nil, in which case a time-seeded source is used.
func NewStub(timeWindow time.Duration, rng *rand.Rand) *Stub {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Stub{timeWindow: timeWindow, rng: rng}
}

func (s *Stub) MakeDecision(execution *domain.Execution) domain.Signal {
	if execution.Symbol != domain.SymbolFXBTCJPY {
		return domain.Signal{
			Side: domain.SideNothing, Price: execution.Price,
			DecisionAt: execution.Timestamp, OriginAt: execution.Timestamp,
			Reason: "ignoring, not a primary symbol",
		}
	}

	s.prev2Ago, s.prev = s.prev, execution

	if s.prev2Ago == nil {
		return domain.Signal{
			Side: domain.SideNothing, Price: execution.Price,
			DecisionAt: execution.Timestamp, OriginAt: execution.Timestamp,
			Reason: "insufficient: first execution",
		}
	}
	if s.prev == nil {
		return domain.Signal{
			Side: domain.SideNothing, Price: execution.Price,
			DecisionAt: execution.Timestamp, OriginAt: execution.Timestamp,
			Reason: "insufficient: second execution",
		}
	}

	units := execution.Timestamp.UnixNano() / int64(s.timeWindow)
	if s.timeUnits != 0 && s.timeUnits == units {
		s.timeUnits = units
		return domain.Signal{
			Side: domain.SideContinue, Price: execution.Price,
			DecisionAt: execution.Timestamp, OriginAt: s.prev.Timestamp,
			Reason: "same time unit",
		}
	}

	side := domain.SideBuy
	if s.rng.Intn(2) == 1 {
		side = domain.SideSell
	}
	s.timeUnits = units
	return domain.Signal{
		Side: side, Price: execution.Price,
		DecisionAt: execution.Timestamp, OriginAt: s.prev.Timestamp,
		Reason: "chosen randomly",
	}
}
