package cache

import (
	"testing"

	"github.com/shopspring/decimal"

	"betfair-streamcache/pkg/price"
	"betfair-streamcache/pkg/types"
)

func decPtr(s string) *decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &v
}

func TestApplyPreservesOffLadderStartingPriceProjections(t *testing.T) {
	t.Parallel()

	r := NewRunnerBookCache(111, price.NoHandicap)
	r.Apply(types.RunnerChange{
		StartingPriceNear: decPtr("3.47"),
		StartingPriceFar:  decPtr("5.37"),
	}, func(err error) {
		t.Fatalf("unexpected validation error for off-ladder SP projection: %v", err)
	})

	if r.StartingPriceNear == nil || r.StartingPriceNear.Float64() != 3.47 {
		t.Errorf("expected StartingPriceNear to retain 3.47, got %v", r.StartingPriceNear)
	}
	if r.StartingPriceFar == nil || r.StartingPriceFar.Float64() != 5.37 {
		t.Errorf("expected StartingPriceFar to retain 5.37, got %v", r.StartingPriceFar)
	}
}

func TestApplyOnLadderLastTradedPriceStillValidated(t *testing.T) {
	t.Parallel()

	r := NewRunnerBookCache(111, price.NoHandicap)
	var onErrCalls int
	r.Apply(types.RunnerChange{
		LastTradedPrice: decPtr("3.47"), // not a valid tick in the 3.00-4.00 (0.05 step) band
	}, func(error) { onErrCalls++ })

	if onErrCalls != 1 {
		t.Errorf("expected ladder validation to reject an off-ladder ltp, got %d errors", onErrCalls)
	}
	if r.LastTradedPrice != nil {
		t.Errorf("expected LastTradedPrice to remain unset after a validation failure, got %v", r.LastTradedPrice)
	}
}
