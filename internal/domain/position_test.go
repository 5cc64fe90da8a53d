package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func approxEqual(t *testing.T, got decimal.Decimal, want float64, tolerance float64) {
	t.Helper()
	gf, _ := got.Float64()
	if math.Abs(gf-want) > tolerance {
		t.Errorf("got %s (%v), want ~%v (tolerance %v)", got.String(), gf, want, tolerance)
	}
}

// decimalApproxEqual compares at full decimal precision (unlike
// approxEqual, which round-trips through float64 and so cannot tell
// apart anything past ~15 significant digits). Used for seed scenarios
// whose expected value, per spec.md, is specified to dozens of
// fractional digits.
func decimalApproxEqual(t *testing.T, got decimal.Decimal, want string, tolerance string) {
	t.Helper()
	w := dec(want)
	tol := dec(tolerance)
	if got.Sub(w).Abs().GreaterThan(tol) {
		t.Errorf("got %s, want %s (tolerance %s)", got.String(), w.String(), tol.String())
	}
}

func TestPositionSubSameSideSufficientSizeStaysOnSameSide(t *testing.T) {
	t.Parallel()
	a := Position{Symbol: SymbolFXBTCJPY, Side: SideSell, Price: dec("993083.0"), Size: dec("0.01")}
	b := Position{Symbol: SymbolFXBTCJPY, Side: SideSell, Price: dec("992600.0"), Size: dec("0.009")}

	got, err := a.Sub(b)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if got.Symbol != SymbolFXBTCJPY || got.Side != SideSell {
		t.Errorf("got symbol/side = %s/%s, want %s/%s", got.Symbol, got.Side, SymbolFXBTCJPY, SideSell)
	}
	if !got.Price.Equal(a.Price) {
		t.Errorf("got price = %s, want %s (a's price)", got.Price, a.Price)
	}
	// a's size (0.01) minus b's size (0.009) converted to a's price is a
	// small positive remainder on a's side. Exact value per spec.md's S6
	// seed scenario; shopspring's default 16-digit DivisionPrecision would
	// diverge from this starting at the 19th fractional digit, which is
	// why the domain package configures a much higher precision in init().
	decimalApproxEqual(t, got.Size, "0.001004377277629362299022337508", "0.0000000000000000000000001")
}

func TestPositionSubSameSideOvershootFlipsToCounterSide(t *testing.T) {
	t.Parallel()
	a := Position{Symbol: SymbolFXBTCJPY, Side: SideSell, Price: dec("1000"), Size: dec("0.001")}
	b := Position{Symbol: SymbolFXBTCJPY, Side: SideSell, Price: dec("1000"), Size: dec("0.01")}

	got, err := a.Sub(b)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if got.Side != SideBuy {
		t.Errorf("got side = %s, want BUY (b overshoots a on the same side)", got.Side)
	}
	approxEqual(t, got.Size, 0.009, 1e-12)
}

func TestPositionSubOppositeSidesAdds(t *testing.T) {
	t.Parallel()
	a := Position{Symbol: SymbolFXBTCJPY, Side: SideBuy, Price: dec("1000"), Size: dec("0.01")}
	b := Position{Symbol: SymbolFXBTCJPY, Side: SideSell, Price: dec("1000"), Size: dec("0.005")}

	got, err := a.Sub(b)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if got.Side != SideBuy {
		t.Errorf("got side = %s, want BUY (a's side)", got.Side)
	}
	approxEqual(t, got.Size, 0.015, 1e-12)
}

func TestPositionSubRejectsMismatchedSymbols(t *testing.T) {
	t.Parallel()
	a := Position{Symbol: SymbolFXBTCJPY, Side: SideBuy, Price: dec("1000"), Size: dec("0.01")}
	b := Position{Symbol: SymbolBTCJPY, Side: SideBuy, Price: dec("1000"), Size: dec("0.01")}

	if _, err := a.Sub(b); err == nil {
		t.Error("Sub across symbols should error")
	}
}

func TestPositionsNormalizeVWAP(t *testing.T) {
	t.Parallel()
	ps := Positions{
		{Symbol: SymbolFXBTCJPY, Side: SideBuy, Price: dec("100"), Size: dec("1")},
		{Symbol: SymbolFXBTCJPY, Side: SideBuy, Price: dec("200"), Size: dec("1")},
	}

	out, err := ps.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	got, ok := out[SymbolFXBTCJPY]
	if !ok {
		t.Fatalf("no entry for %s", SymbolFXBTCJPY)
	}
	if !got.Size.Equal(dec("2")) {
		t.Errorf("got size = %s, want 2", got.Size)
	}
	if !got.Price.Equal(dec("150")) {
		t.Errorf("got vwap price = %s, want 150", got.Price)
	}
}

func TestPositionsNormalizeRejectsAmbiguousSide(t *testing.T) {
	t.Parallel()
	ps := Positions{
		{Symbol: SymbolFXBTCJPY, Side: SideBuy, Price: dec("100"), Size: dec("1")},
		{Symbol: SymbolFXBTCJPY, Side: SideSell, Price: dec("100"), Size: dec("1")},
	}

	if _, err := ps.Normalize(); err == nil {
		t.Error("Normalize should reject a symbol present on both sides")
	}
}
