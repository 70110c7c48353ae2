package cache

import (
	"time"

	"betfair-streamcache/pkg/price"
	"betfair-streamcache/pkg/types"
)

// OrderBookCache is the reconciled state of the authenticated account's
// orders on one market: per-runner matched/unmatched state plus the
// bookkeeping needed to know when the cache has gone stale.
type OrderBookCache struct {
	MarketID    string
	Runners     map[RunnerKey]*OrderBookRunner
	PublishTime time.Time
	Closed      bool
}

// NewOrderBookCache creates an empty cache for marketID as of
// publishTime.
func NewOrderBookCache(marketID string, publishTime time.Time) *OrderBookCache {
	return &OrderBookCache{
		MarketID:    marketID,
		Runners:     make(map[RunnerKey]*OrderBookRunner),
		PublishTime: publishTime,
	}
}

// Clone returns an independent copy, cloning every owned runner.
func (o *OrderBookCache) Clone() *OrderBookCache {
	clone := *o
	clone.Runners = make(map[RunnerKey]*OrderBookRunner, len(o.Runners))
	for k, v := range o.Runners {
		clone.Runners[k] = v.Clone()
	}
	return &clone
}

// IsClosed reports whether the cache's market was last reported closed.
func (o *OrderBookCache) IsClosed() bool { return o.Closed }

// UpdateCache merges one OrderMarketChange into the cache: closed is
// taken directly from the change's explicit flag (order changes carry
// no market definition to derive it from), each runner change is
// applied by (selection, handicap) key, and the publish time is set
// unconditionally.
func (o *OrderBookCache) UpdateCache(change types.OrderMarketChange, publishTime time.Time, onError func(error)) {
	if change.Closed != nil {
		o.Closed = *change.Closed
	}

	for _, orc := range change.OrderRunnerChanges {
		handicap := price.NoHandicap
		if orc.Handicap != nil {
			handicap = price.NewHandicap(*orc.Handicap)
		}
		key := RunnerKey{SelectionID: orc.SelectionID, Handicap: handicap.Key()}
		runner, ok := o.Runners[key]
		if !ok {
			runner = NewOrderBookRunner(o.MarketID, orc.SelectionID, handicap)
			o.Runners[key] = runner
		}
		runner.Apply(orc, onError)
	}

	o.PublishTime = publishTime
}
