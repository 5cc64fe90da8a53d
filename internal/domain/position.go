package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrAmbiguousSide is returned by Positions.Normalize when the same symbol
// appears with both BUY and SELL in the same bag of raw positions.
var ErrAmbiguousSide = errors.New("domain: symbol present on both sides")

// Position is an open exposure in a symbol: side must be BUY or SELL
// (never NOTHING/CONTINUE) and size must be non-negative; a zero-size
// position is legal and means flat. Grounded on
// trade/broker/declarative/model.py's Position dataclass.
type Position struct {
	Symbol Symbol
	Side   Side
	Price  decimal.Decimal
	Size   decimal.Decimal
}

func (p Position) String() string {
	return fmt.Sprintf("Position(%s %s price=%s size=%s)", p.Symbol, p.Side, p.Price, p.Size)
}

// Sub computes a - b: the additional order to place on a's side to move
// from b (current) to a (desired), normalised to a's price. Both operands
// must share a symbol and have side BUY or SELL. Implements the two
// branches of spec.md §4.4 exactly, mirroring Position.__sub__.
func (a Position) Sub(b Position) (Position, error) {
	if a.Symbol != b.Symbol {
		return Position{}, fmt.Errorf("domain: position subtraction across symbols %s - %s", a.Symbol, b.Symbol)
	}
	if a.Side != SideBuy && a.Side != SideSell {
		return Position{}, fmt.Errorf("domain: position side must be BUY or SELL, got %q", a.Side)
	}
	if b.Side != SideBuy && b.Side != SideSell {
		return Position{}, fmt.Errorf("domain: position side must be BUY or SELL, got %q", b.Side)
	}

	if a.Side == b.Side {
		// size_insufficient = a.size - (b.price/a.price)*b.size
		ratio := b.Price.Div(a.Price)
		size := a.Size.Sub(ratio.Mul(b.Size))
		if size.Sign() >= 0 {
			return Position{Symbol: a.Symbol, Side: a.Side, Price: a.Price, Size: size}, nil
		}
		return Position{Symbol: a.Symbol, Side: CounterSide(a.Side), Price: a.Price, Size: size.Neg()}, nil
	}

	// Different sides: result = a.size + (b.price/a.price)*b.size, on a's side.
	ratio := b.Price.Div(a.Price)
	size := a.Size.Add(ratio.Mul(b.Size))
	return Position{Symbol: a.Symbol, Side: a.Side, Price: a.Price, Size: size}, nil
}

// Positions is an unnormalised bag of raw positions, e.g. the output of
// several strategies voting on the same symbol before VWAP aggregation.
type Positions []Position

// product is the grouping key used by Normalize: positions sharing a
// (Symbol, Side) pair are volume-weighted together.
type product struct {
	Symbol Symbol
	Side   Side
}

type total struct {
	Size   decimal.Decimal
	Amount decimal.Decimal // sum(size * price)
}

func (t total) add(p Position) total {
	return total{
		Size:   t.Size.Add(p.Size),
		Amount: t.Amount.Add(p.Size.Mul(p.Price)),
	}
}

// NormalizedPositions maps each symbol to its single VWAP-aggregated
// Position. At most one entry per symbol, per spec.md §3.
type NormalizedPositions map[Symbol]Position

// Normalize groups raw positions by (symbol, side), fails with
// ErrAmbiguousSide if the same symbol appears on both sides, and computes
// a volume-weighted average price per group. Mirrors
// Positions.normalize(method='vwap') in trade/broker/declarative/model.py.
func (ps Positions) Normalize() (NormalizedPositions, error) {
	totals := make(map[product]total)
	seenSide := make(map[Symbol]Side)

	for _, p := range ps {
		if existing, ok := seenSide[p.Symbol]; ok && existing != p.Side {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousSide, p.Symbol)
		}
		seenSide[p.Symbol] = p.Side

		key := product{Symbol: p.Symbol, Side: p.Side}
		totals[key] = totals[key].add(p)
	}

	out := make(NormalizedPositions, len(totals))
	for key, t := range totals {
		var price decimal.Decimal
		if t.Size.IsZero() {
			price = decimal.Zero
		} else {
			price = t.Amount.Div(t.Size)
		}
		out[key.Symbol] = Position{
			Symbol: key.Symbol,
			Side:   key.Side,
			Price:  price,
			Size:   t.Size,
		}
	}
	return out, nil
}

func (n NormalizedPositions) String() string {
	s := "NormalizedPositions{"
	first := true
	for sym, p := range n {
		if !first {
			s += ", "
		}
		first = false
		s += fmt.Sprintf("%s: %s", sym, p)
	}
	return s + "}"
}
