package price

import "math"

// TotalOrderFloat wraps a float64 with a total order suitable for use as a
// map/set key: NaNs compare equal to each other and greater than every
// finite value; equality uses the bit representation so -0.0 and +0.0 are
// distinct, matching IEEE-754 bit-for-bit comparison rather than ==.
type TotalOrderFloat struct {
	bits uint64
}

// NewTotalOrderFloat wraps f for total-order comparison/hashing.
func NewTotalOrderFloat(f float64) TotalOrderFloat {
	return TotalOrderFloat{bits: math.Float64bits(f)}
}

// Float64 returns the wrapped value.
func (t TotalOrderFloat) Float64() float64 { return math.Float64frombits(t.bits) }

// Bits returns the raw bit pattern, the comparable/hashable representation
// used as the actual map key.
func (t TotalOrderFloat) Bits() uint64 { return t.bits }

// Compare returns -1, 0, or 1 under the total order: NaN > all finite
// values, NaN == NaN, and otherwise ordinary numeric order.
func (t TotalOrderFloat) Compare(other TotalOrderFloat) int {
	a, b := t.Float64(), other.Float64()
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal uses bit representation for total consistency with hashing: two
// NaNs with different payloads are still Equal (both treated as "the" NaN
// for ordering purposes) since Compare returns 0 for any NaN/NaN pair, but
// Equal additionally requires identical bit patterns for non-NaN values so
// that -0.0 and +0.0 remain distinct keys.
func (t TotalOrderFloat) Equal(other TotalOrderFloat) bool {
	if t.bits == other.bits {
		return true
	}
	return math.IsNaN(t.Float64()) && math.IsNaN(other.Float64())
}
