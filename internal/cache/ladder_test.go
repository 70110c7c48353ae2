package cache

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dd(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestLadderInsertsAndRemovesOnZeroSize(t *testing.T) {
	t.Parallel()

	l := NewLadder()
	l.Update([][]decimal.Decimal{
		{dd("2.5"), dd("10")},
		{dd("2.56"), dd("5")},
	}, nil)
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}

	l.Update([][]decimal.Decimal{{dd("2.5"), dd("0")}}, nil)
	if l.Len() != 1 {
		t.Fatalf("Len after removal = %d, want 1", l.Len())
	}
	for _, e := range l.Entries() {
		if e.Price.Decimal().Equal(dd("2.5")) {
			t.Error("removed price still present")
		}
	}
}

func TestLadderUpdateReplacesExistingPrice(t *testing.T) {
	t.Parallel()

	l := NewLadder()
	l.Update([][]decimal.Decimal{{dd("10"), dd("100")}}, nil)
	l.Update([][]decimal.Decimal{{dd("10"), dd("50")}}, nil)

	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("Len = %d, want 1", len(entries))
	}
	if entries[0].Size.String() != "50.00" {
		t.Errorf("Size = %s, want 50.00", entries[0].Size.String())
	}
}

func TestLadderSkipsInvalidPriceWithoutAbortingBatch(t *testing.T) {
	t.Parallel()

	l := NewLadder()
	var errs []error
	l.Update([][]decimal.Decimal{
		{dd("0.5"), dd("10")}, // below minimum price, invalid
		{dd("3.0"), dd("10")}, // valid, should still apply
	}, func(err error) { errs = append(errs, err) })

	if len(errs) != 1 {
		t.Errorf("errors = %d, want 1", len(errs))
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1 (the valid entry only)", l.Len())
	}
}

func TestLadderCloneIsIndependent(t *testing.T) {
	t.Parallel()

	l := NewLadder()
	l.Update([][]decimal.Decimal{{dd("10"), dd("100")}}, nil)

	clone := l.Clone()
	clone.Update([][]decimal.Decimal{{dd("10"), dd("0")}}, nil)

	if l.Len() != 1 {
		t.Error("mutating the clone affected the original")
	}
	if clone.Len() != 0 {
		t.Error("clone did not apply its own update")
	}
}

func TestLevelLadderRemovesByLevelNotPrice(t *testing.T) {
	t.Parallel()

	l := NewLevelLadder()
	l.Update([][]decimal.Decimal{{dd("0"), dd("10"), dd("100")}}, nil)
	l.Update([][]decimal.Decimal{{dd("0"), dd("12"), dd("50")}}, nil)

	e, ok := l.EntryAt(0)
	if !ok {
		t.Fatal("expected an entry at level 0")
	}
	if !e.Price.Decimal().Equal(dd("12")) {
		t.Errorf("Price = %s, want 12 (level update overwrites price)", e.Price.String())
	}

	l.Update([][]decimal.Decimal{{dd("0"), dd("12"), dd("0")}}, nil)
	if _, ok := l.EntryAt(0); ok {
		t.Error("expected level 0 to be removed after a zero-size update")
	}
}

func TestLevelLadderCloneIsIndependent(t *testing.T) {
	t.Parallel()

	l := NewLevelLadder()
	l.Update([][]decimal.Decimal{{dd("1"), dd("5"), dd("20")}}, nil)

	clone := l.Clone()
	clone.Update([][]decimal.Decimal{{dd("1"), dd("5"), dd("0")}}, nil)

	if l.Len() != 1 {
		t.Error("mutating the clone affected the original")
	}
	if clone.Len() != 0 {
		t.Error("clone did not apply its own update")
	}
}
