package price

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Size is a non-negative decimal rounded half-away-from-zero to two
// fractional digits on construction, matching the exchange's own
// server-side rounding of matched/available amounts.
type Size struct {
	v decimal.Decimal
}

// InvalidSizeError is returned when a candidate value is negative.
type InvalidSizeError struct {
	Value decimal.Decimal
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("size: %s is negative", e.Value.String())
}

// ZeroSize is the Size representing exactly 0.00.
var ZeroSize = Size{v: decimal.Zero}

// NewSize rounds v to 2dp half-away-from-zero and validates non-negativity.
func NewSize(v decimal.Decimal) (Size, error) {
	if v.IsNegative() {
		return Size{}, &InvalidSizeError{Value: v}
	}
	return Size{v: roundHalfAwayFromZero(v, 2)}, nil
}

// NewSizeFromFloat is a convenience wrapper for float64 inputs.
func NewSizeFromFloat(f float64) (Size, error) {
	return NewSize(decimal.NewFromFloat(f))
}

// MustNewSize panics on error. Intended for constants/tests.
func MustNewSize(v decimal.Decimal) Size {
	s, err := NewSize(v)
	if err != nil {
		panic(err)
	}
	return s
}

func roundHalfAwayFromZero(v decimal.Decimal, places int32) decimal.Decimal {
	scale := decimal.New(1, places)
	scaled := v.Mul(scale)
	neg := scaled.IsNegative()
	abs := scaled.Abs()
	floor := abs.Floor()
	frac := abs.Sub(floor)
	half := decimal.NewFromFloat(0.5)
	var rounded decimal.Decimal
	if frac.GreaterThanOrEqual(half) {
		rounded = floor.Add(decimal.NewFromInt(1))
	} else {
		rounded = floor
	}
	if neg {
		rounded = rounded.Neg()
	}
	return rounded.Div(scale)
}

// IsZero reports whether the size is exactly 0.00 — in an available
// ladder, a zero size tuple means "remove the entry" rather than "store
// a zero-valued entry".
func (s Size) IsZero() bool { return s.v.IsZero() }

// Decimal returns the underlying decimal value.
func (s Size) Decimal() decimal.Decimal { return s.v }

// String renders the canonical 2dp string form.
func (s Size) String() string { return s.v.StringFixed(2) }

// Add returns s+other with no upper-bound check. Use CheckedAdd where an
// unreasonable accumulated total should be rejected instead of accepted.
func (s Size) Add(other Size) Size {
	return Size{v: s.v.Add(other.v)}
}

// CheckedAdd returns s+other, or false if the result would exceed
// maxSizeDecimal.
func (s Size) CheckedAdd(other Size) (Size, bool) {
	sum := s.v.Add(other.v)
	if sum.GreaterThan(maxSizeDecimal) {
		return Size{}, false
	}
	return Size{v: sum}, true
}

// maxSizeDecimal bounds checked arithmetic; chosen generously above any
// plausible single-market total-matched figure.
var maxSizeDecimal = decimal.New(1, 15) // 10^15

// MarshalJSON renders the size as a bare JSON number using its 2dp form.
func (s Size) MarshalJSON() ([]byte, error) {
	return []byte(s.v.StringFixed(2)), nil
}

// UnmarshalJSON accepts a bare JSON number or a quoted string — the
// exchange sends fields like sizeCancelled in either form depending on
// message type.
func (s *Size) UnmarshalJSON(data []byte) error {
	v, err := decimalFromWire(data)
	if err != nil {
		return fmt.Errorf("size: %w", err)
	}
	parsed, err := NewSize(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
