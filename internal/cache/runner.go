package cache

import (
	"github.com/shopspring/decimal"

	"betfair-streamcache/pkg/price"
	"betfair-streamcache/pkg/types"
)

// RunnerKey looks up a runner within a MarketBookCache: a selection id
// combined with an optional handicap (line/handicap markets carry more
// than one runner per selection, distinguished only by handicap).
type RunnerKey struct {
	SelectionID uint64
	Handicap    price.HandicapKey
}

// RunnerBookCache holds one selection's reconciled market-data state:
// its available ladders plus the scalars the protocol carries alongside
// them. A RunnerChange updates each present field independently —
// fields the message omits are left untouched.
type RunnerBookCache struct {
	SelectionID uint64
	Handicap    price.Handicap

	AvailableToBack            *Ladder
	AvailableToLay             *Ladder
	StartingPriceBack          *Ladder
	StartingPriceLay           *Ladder
	Traded                     *Ladder
	BestAvailableToBack        *LevelLadder
	BestAvailableToLay         *LevelLadder
	BestDisplayAvailableToBack *LevelLadder
	BestDisplayAvailableToLay  *LevelLadder

	TotalMatched      price.Size
	LastTradedPrice   *price.Price
	StartingPriceFar  *price.TotalOrderFloat
	StartingPriceNear *price.TotalOrderFloat
}

// NewRunnerBookCache creates an empty runner cache for the given key.
func NewRunnerBookCache(selectionID uint64, handicap price.Handicap) *RunnerBookCache {
	return &RunnerBookCache{
		SelectionID:                selectionID,
		Handicap:                   handicap,
		AvailableToBack:            NewLadder(),
		AvailableToLay:             NewLadder(),
		StartingPriceBack:          NewLadder(),
		StartingPriceLay:           NewLadder(),
		Traded:                     NewLadder(),
		BestAvailableToBack:        NewLevelLadder(),
		BestAvailableToLay:         NewLevelLadder(),
		BestDisplayAvailableToBack: NewLevelLadder(),
		BestDisplayAvailableToLay:  NewLevelLadder(),
	}
}

// Clone returns an independent copy, cloning every owned ladder so a
// mutation on the copy never reaches a snapshot still held by a
// subscriber.
func (r *RunnerBookCache) Clone() *RunnerBookCache {
	clone := *r
	clone.AvailableToBack = r.AvailableToBack.Clone()
	clone.AvailableToLay = r.AvailableToLay.Clone()
	clone.StartingPriceBack = r.StartingPriceBack.Clone()
	clone.StartingPriceLay = r.StartingPriceLay.Clone()
	clone.Traded = r.Traded.Clone()
	clone.BestAvailableToBack = r.BestAvailableToBack.Clone()
	clone.BestAvailableToLay = r.BestAvailableToLay.Clone()
	clone.BestDisplayAvailableToBack = r.BestDisplayAvailableToBack.Clone()
	clone.BestDisplayAvailableToLay = r.BestDisplayAvailableToLay.Clone()
	return &clone
}

// resetLadders clears every sub-ladder without touching the scalar
// fields, used when a market-level image resets all runners.
func (r *RunnerBookCache) resetLadders() {
	r.AvailableToBack = NewLadder()
	r.AvailableToLay = NewLadder()
	r.StartingPriceBack = NewLadder()
	r.StartingPriceLay = NewLadder()
	r.Traded = NewLadder()
	r.BestAvailableToBack = NewLevelLadder()
	r.BestAvailableToLay = NewLevelLadder()
	r.BestDisplayAvailableToBack = NewLevelLadder()
	r.BestDisplayAvailableToLay = NewLevelLadder()
}

// Apply merges one RunnerChange's present fields into the cache.
// Missing scalars and omitted ladders leave the previous value
// untouched. onError, which may be nil, receives per-entry validation
// failures without aborting the rest of the change.
func (r *RunnerBookCache) Apply(rc types.RunnerChange, onError func(error)) {
	if rc.AvailableToBack != nil {
		r.AvailableToBack.Update(rc.AvailableToBack, onError)
	}
	if rc.AvailableToLay != nil {
		r.AvailableToLay.Update(rc.AvailableToLay, onError)
	}
	if rc.StartingPriceBack != nil {
		r.StartingPriceBack.Update(rc.StartingPriceBack, onError)
	}
	if rc.StartingPriceLay != nil {
		r.StartingPriceLay.Update(rc.StartingPriceLay, onError)
	}
	if rc.Traded != nil {
		r.Traded.Update(rc.Traded, onError)
	}
	if rc.BestAvailableToBack != nil {
		r.BestAvailableToBack.Update(rc.BestAvailableToBack, onError)
	}
	if rc.BestAvailableToLay != nil {
		r.BestAvailableToLay.Update(rc.BestAvailableToLay, onError)
	}
	if rc.BestDisplayAvailableToBack != nil {
		r.BestDisplayAvailableToBack.Update(rc.BestDisplayAvailableToBack, onError)
	}
	if rc.BestDisplayAvailableToLay != nil {
		r.BestDisplayAvailableToLay.Update(rc.BestDisplayAvailableToLay, onError)
	}

	if rc.TotalMatched != nil {
		if sz, err := price.NewSize(*rc.TotalMatched); err != nil {
			reportError(onError, err)
		} else {
			r.TotalMatched = sz
		}
	}
	if rc.LastTradedPrice != nil {
		r.LastTradedPrice = applyScalarPrice(*rc.LastTradedPrice, onError)
	}
	if rc.StartingPriceFar != nil {
		r.StartingPriceFar = applyProjectedPrice(*rc.StartingPriceFar)
	}
	if rc.StartingPriceNear != nil {
		r.StartingPriceNear = applyProjectedPrice(*rc.StartingPriceNear)
	}
}

func applyScalarPrice(raw decimal.Decimal, onError func(error)) *price.Price {
	p, err := price.New(raw)
	if err != nil {
		reportError(onError, err)
		return nil
	}
	return &p
}

// applyProjectedPrice stores a starting-price projection (spn/spf) as the
// raw total-order float rather than a ladder-validated Price: these are
// projected, not traded, prices and routinely fall off the tick ladder
// (e.g. 3.47), so validating them would silently drop legitimate values
// mid-stream.
func applyProjectedPrice(raw decimal.Decimal) *price.TotalOrderFloat {
	v := price.NewTotalOrderFloat(raw.InexactFloat64())
	return &v
}
