package price

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Handicap is an optionally-present signed decimal distinguishing runner
// variants on handicap/line markets. The zero value represents "absent" —
// use Present() to distinguish from a genuine 0.
type Handicap struct {
	v       decimal.Decimal
	present bool
}

// NoHandicap is the absent Handicap value.
var NoHandicap = Handicap{}

// NewHandicap wraps a present handicap value.
func NewHandicap(v decimal.Decimal) Handicap {
	return Handicap{v: v, present: true}
}

// Present reports whether a handicap value was supplied.
func (h Handicap) Present() bool { return h.present }

// Decimal returns the underlying value; only meaningful if Present().
func (h Handicap) Decimal() decimal.Decimal { return h.v }

// Key returns a value suitable for use as a map key component alongside a
// SelectionId, since decimal.Decimal is not itself comparable with ==.
func (h Handicap) Key() HandicapKey {
	if !h.present {
		return HandicapKey{present: false}
	}
	return HandicapKey{present: true, value: h.v.String()}
}

// HandicapKey is the comparable projection of a Handicap, usable directly
// as (part of) a Go map key.
type HandicapKey struct {
	present bool
	value   string
}

// MarshalJSON renders an absent handicap as JSON null.
func (h Handicap) MarshalJSON() ([]byte, error) {
	if !h.present {
		return []byte("null"), nil
	}
	return []byte(h.v.String()), nil
}

// UnmarshalJSON treats JSON null (or an omitted/empty value) as absent.
func (h *Handicap) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == "" {
		*h = NoHandicap
		return nil
	}
	v, err := decimalFromWire(data)
	if err != nil {
		return fmt.Errorf("handicap: %w", err)
	}
	*h = NewHandicap(v)
	return nil
}

// String renders the handicap, or "-" if absent.
func (h Handicap) String() string {
	if !h.present {
		return "-"
	}
	return h.v.String()
}
