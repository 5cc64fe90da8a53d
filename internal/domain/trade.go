package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a per-closed-round-trip P&L record. It is a pure data struct:
// this module documents its shape (per spec.md's Non-goal on bookkeeping)
// and attaches no profit-calculation engine. Grounded on trade/model.py's
// Trade dataclass; see DESIGN.md's Open Question 2.
type Trade struct {
	OriginAt   time.Time
	DecisionAt time.Time
	Position   Side // Long/Short in the source; represented here as BUY/SELL

	Entry decimal.Decimal
	Exit  decimal.Decimal

	Profit      decimal.Decimal
	ProfitSigma decimal.Decimal

	ROCThisTrade decimal.Decimal
	ROCTotal     decimal.Decimal
	DrawDown     decimal.Decimal
	ProfitFactor decimal.Decimal

	ProbabilityOfWin decimal.Decimal

	HoldInNanoseconds int64
	HoldInMinutes     decimal.Decimal

	Reversal bool
}

// ColumnsPlayback returns the fixed column header order used when a
// sequence of trades is rendered for offline analysis, mirroring
// Trade.columns_playback.
func ColumnsPlayback() []string {
	return []string{
		"origin_at", "decision_at", "position", "entry", "exit",
		"profit", "profit_sigma", "roc_this_trade", "roc_total",
		"draw_down", "profit_factor", "probability_of_win",
		"hold_in_nanoseconds", "hold_in_minutes", "reversal",
	}
}

// FieldsPlayback renders one row matching ColumnsPlayback's order,
// mirroring Trade.fields_playback.
func (t Trade) FieldsPlayback() []string {
	return []string{
		t.OriginAt.Format(time.RFC3339Nano),
		t.DecisionAt.Format(time.RFC3339Nano),
		string(t.Position),
		t.Entry.String(),
		t.Exit.String(),
		t.Profit.String(),
		t.ProfitSigma.String(),
		t.ROCThisTrade.String(),
		t.ROCTotal.String(),
		t.DrawDown.String(),
		t.ProfitFactor.String(),
		t.ProbabilityOfWin.String(),
		formatInt64(t.HoldInNanoseconds),
		t.HoldInMinutes.String(),
		formatBool(t.Reversal),
	}
}

func formatInt64(v int64) string {
	return decimal.NewFromInt(v).String()
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
