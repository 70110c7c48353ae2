// Package price implements the numeric primitives of the Betfair price
// ladder: Price (ladder-snapped), Size (2dp monetary amount), Handicap
// (optional signed decimal), and a total-order float wrapper usable as a
// map key.
package price

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// band describes one segment of the Betfair price ladder: prices in
// (lowerExclusive, upperInclusive] increment by step.
type band struct {
	lowerExclusive decimal.Decimal
	upperInclusive decimal.Decimal
	step           decimal.Decimal
}

var ladderBands = buildLadderBands()

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("price: bad ladder constant %q: %v", s, err))
	}
	return v
}

func buildLadderBands() []band {
	type raw struct{ lower, upper, step string }
	table := []raw{
		{"1.00", "2.00", "0.01"},
		{"2.00", "3.00", "0.02"},
		{"3.00", "4.00", "0.05"},
		{"4.00", "6.00", "0.10"},
		{"6.00", "10.0", "0.20"},
		{"10.0", "20.0", "0.50"},
		{"20.0", "30.0", "1.0"},
		{"30.0", "50.0", "2.0"},
		{"50.0", "100.0", "5.0"},
		{"100.0", "1000.0", "10.0"},
	}
	bands := make([]band, 0, len(table))
	for _, r := range table {
		bands = append(bands, band{
			lowerExclusive: d(r.lower),
			upperInclusive: d(r.upper),
			step:           d(r.step),
		})
	}
	return bands
}

// tolerance is the maximum deviation, in ladder step units, a candidate
// price may have from the nearest tick and still be accepted.
const toleranceFraction = "0.0005"

var tolerance = d(toleranceFraction)

// Price is a positive rational value restricted to the Betfair price
// ladder. Zero value is invalid; always construct via New or MustNew.
type Price struct {
	v decimal.Decimal
}

// InvalidPriceError is returned by New when a candidate value does not
// lie on the price ladder (within tolerance of the nearest tick).
type InvalidPriceError struct {
	Value decimal.Decimal
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("price: %s is not on the Betfair price ladder", e.Value.String())
}

// New validates that v lies on the ladder and returns a Price.
func New(v decimal.Decimal) (Price, error) {
	if v.LessThanOrEqual(decimal.Zero) {
		return Price{}, &InvalidPriceError{Value: v}
	}
	b, ok := bandFor(v)
	if !ok {
		return Price{}, &InvalidPriceError{Value: v}
	}
	offset := v.Sub(b.lowerExclusive)
	ticks := offset.Div(b.step)
	nearest := ticks.Round(0)
	diff := ticks.Sub(nearest).Abs()
	if diff.GreaterThan(tolerance) {
		return Price{}, &InvalidPriceError{Value: v}
	}
	snapped := b.lowerExclusive.Add(nearest.Mul(b.step))
	return Price{v: snapped}, nil
}

// NewFromFloat is a convenience wrapper around New for callers holding a
// float64 (e.g. deserialized from a wire field that tolerates imprecision).
func NewFromFloat(f float64) (Price, error) {
	return New(decimal.NewFromFloat(f))
}

// MustNew panics if v is not on the ladder. Intended for constants/tests.
func MustNew(v decimal.Decimal) Price {
	p, err := New(v)
	if err != nil {
		panic(err)
	}
	return p
}

func bandFor(v decimal.Decimal) (band, bool) {
	for _, b := range ladderBands {
		if v.GreaterThan(b.lowerExclusive) && v.LessThanOrEqual(b.upperInclusive) {
			return b, true
		}
	}
	return band{}, false
}

// Decimal returns the underlying decimal value.
func (p Price) Decimal() decimal.Decimal { return p.v }

// String renders the canonical ladder string form.
func (p Price) String() string { return p.v.String() }

// Compare returns -1, 0, or 1 following Price's total order (ordinary
// numeric order — Betfair prices have no NaN/Inf case, unlike the general
// TotalOrderFloat wrapper in totalorder.go).
func (p Price) Compare(other Price) int { return p.v.Cmp(other.v) }

// Equal reports whether two prices represent the same ladder tick.
func (p Price) Equal(other Price) bool { return p.v.Equal(other.v) }

// MarshalJSON renders the price as a bare JSON number using its canonical
// string form, matching the wire format of Betfair price fields.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.v.String()), nil
}

// UnmarshalJSON accepts either a bare JSON number or a quoted string, since
// the exchange is inconsistent about quoting numeric fields.
func (p *Price) UnmarshalJSON(data []byte) error {
	v, err := decimalFromWire(data)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	parsed, err := New(v)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
