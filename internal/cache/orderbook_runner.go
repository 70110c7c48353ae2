package cache

import (
	"betfair-streamcache/pkg/price"
	"betfair-streamcache/pkg/types"
)

// OrderBookRunner holds one selection's matched/unmatched order state
// for the authenticated account: matched-lay and matched-back volume
// ladders, unmatched orders keyed by bet id, and a per-strategy
// breakdown of matched volume.
type OrderBookRunner struct {
	MarketID    string
	SelectionID uint64
	Handicap    price.Handicap

	MatchedLays  *Ladder
	MatchedBacks *Ladder

	UnmatchedOrders map[string]types.Order
	StrategyMatches map[string]StrategyMatch
}

// StrategyMatch is one customer-strategy's matched-volume breakdown,
// mirroring types.StrategyMatchChange once converted to validated
// ladders.
type StrategyMatch struct {
	MatchedBacks *Ladder
	MatchedLays  *Ladder
}

// NewOrderBookRunner creates an empty order-book runner cache.
func NewOrderBookRunner(marketID string, selectionID uint64, handicap price.Handicap) *OrderBookRunner {
	return &OrderBookRunner{
		MarketID:        marketID,
		SelectionID:     selectionID,
		Handicap:        handicap,
		MatchedLays:     NewLadder(),
		MatchedBacks:    NewLadder(),
		UnmatchedOrders: make(map[string]types.Order),
		StrategyMatches: make(map[string]StrategyMatch),
	}
}

// Clone returns an independent copy; every owned ladder and map is
// cloned so mutating the copy never disturbs a previously emitted
// snapshot.
func (r *OrderBookRunner) Clone() *OrderBookRunner {
	clone := *r
	clone.MatchedLays = r.MatchedLays.Clone()
	clone.MatchedBacks = r.MatchedBacks.Clone()

	clone.UnmatchedOrders = make(map[string]types.Order, len(r.UnmatchedOrders))
	for k, v := range r.UnmatchedOrders {
		clone.UnmatchedOrders[k] = v
	}

	clone.StrategyMatches = make(map[string]StrategyMatch, len(r.StrategyMatches))
	for k, v := range r.StrategyMatches {
		clone.StrategyMatches[k] = StrategyMatch{
			MatchedBacks: v.MatchedBacks.Clone(),
			MatchedLays:  v.MatchedLays.Clone(),
		}
	}
	return &clone
}

// Apply merges one OrderRunnerChange's present fields. Unmatched orders
// are replaced wholesale by bet id — the protocol always sends the full
// order object on a change, never a partial update.
func (r *OrderBookRunner) Apply(orc types.OrderRunnerChange, onError func(error)) {
	if orc.FullImage != nil && *orc.FullImage {
		r.MatchedLays = NewLadder()
		r.MatchedBacks = NewLadder()
		r.UnmatchedOrders = make(map[string]types.Order)
		r.StrategyMatches = make(map[string]StrategyMatch)
	}

	if orc.MatchedLays != nil {
		r.MatchedLays.Update(orc.MatchedLays, onError)
	}
	if orc.MatchedBacks != nil {
		r.MatchedBacks.Update(orc.MatchedBacks, onError)
	}
	for _, o := range orc.UnmatchedOrders {
		r.UnmatchedOrders[o.BetID] = o
	}
	for ref, smc := range orc.StrategyMatches {
		sm, ok := r.StrategyMatches[ref]
		if !ok {
			sm = StrategyMatch{MatchedBacks: NewLadder(), MatchedLays: NewLadder()}
		}
		if smc.MatchedBacks != nil {
			sm.MatchedBacks.Update(smc.MatchedBacks, onError)
		}
		if smc.MatchedLays != nil {
			sm.MatchedLays.Update(smc.MatchedLays, onError)
		}
		r.StrategyMatches[ref] = sm
	}
}
