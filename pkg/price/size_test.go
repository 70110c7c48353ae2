package price

import (
	"encoding/json"
	"testing"
)

func TestNewSizeRoundsHalfAwayFromZero(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.225", "2.23"},
		{"0.005", "0.01"},
		{"100", "100.00"},
		{"0", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := NewSize(d(tt.in))
			if err != nil {
				t.Fatalf("NewSize(%s): %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("NewSize(%s).String() = %q, want %q", tt.in, got.String(), tt.want)
			}
		})
	}
}

func TestNewSizeRejectsNegative(t *testing.T) {
	t.Parallel()
	_, err := NewSize(d("-1.00"))
	if err == nil {
		t.Fatal("expected error for negative size")
	}
}

func TestSizeRoundTrip(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"0.00", "0.01", "123.45", "9999999.99"} {
		sz, err := NewSize(d(s))
		if err != nil {
			t.Fatalf("NewSize(%s): %v", s, err)
		}
		data, err := json.Marshal(sz)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var back Size
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if back.String() != sz.String() {
			t.Errorf("round trip %s -> %s -> %s mismatch", s, string(data), back.String())
		}
	}
}

func TestSizeUnmarshalBothWireForms(t *testing.T) {
	t.Parallel()

	var numeric, stringed, absent Size
	if err := json.Unmarshal([]byte(`0.0`), &numeric); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if err := json.Unmarshal([]byte(`"0.0"`), &stringed); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if !numeric.IsZero() || !stringed.IsZero() {
		t.Errorf("expected both forms to deserialize to zero")
	}

	type withOptionalSize struct {
		SizeCancelled *Size `json:"sizeCancelled,omitempty"`
	}
	var v withOptionalSize
	if err := json.Unmarshal([]byte(`{}`), &v); err != nil {
		t.Fatalf("unmarshal omitted field: %v", err)
	}
	if v.SizeCancelled != nil {
		t.Errorf("expected SizeCancelled to remain nil when omitted, not zero")
	}
	_ = absent
}

func TestNewSizeZeroIsZero(t *testing.T) {
	t.Parallel()
	z, err := NewSize(d("0"))
	if err != nil {
		t.Fatalf("NewSize(0): %v", err)
	}
	if !z.IsZero() {
		t.Error("expected IsZero() true for 0")
	}
}

func TestSizeCheckedAddOverflow(t *testing.T) {
	t.Parallel()
	huge := MustNewSize(maxSizeDecimal)
	one := MustNewSize(d("1"))
	if _, ok := huge.CheckedAdd(one); ok {
		t.Error("expected CheckedAdd to report overflow")
	}
	small := MustNewSize(d("1"))
	sum, ok := small.CheckedAdd(one)
	if !ok {
		t.Fatal("expected CheckedAdd to succeed for small values")
	}
	if sum.String() != "2.00" {
		t.Errorf("sum = %s, want 2.00", sum.String())
	}
}
