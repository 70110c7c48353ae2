package cache

import (
	"time"

	"betfair-streamcache/pkg/price"
	"betfair-streamcache/pkg/types"
)

// MarketBookCache is the reconciled state of one market: its definition
// (venue, runners, in-play status, ...), the per-runner ladders, and
// the bookkeeping needed to know when the cache has gone stale.
type MarketBookCache struct {
	MarketID         string
	Definition       *types.MarketDefinition
	Runners          map[RunnerKey]*RunnerBookCache
	TotalMatched     price.Size
	PublishTime      time.Time
	Closed           bool
}

// NewMarketBookCache creates an empty cache for marketID as of
// publishTime.
func NewMarketBookCache(marketID string, publishTime time.Time) *MarketBookCache {
	return &MarketBookCache{
		MarketID:    marketID,
		Runners:     make(map[RunnerKey]*RunnerBookCache),
		PublishTime: publishTime,
	}
}

// Clone returns an independent copy, cloning every owned runner cache.
// A writer that finds a cache referenced elsewhere (e.g. still held by
// a subscriber as a prior snapshot) must Clone before mutating.
func (m *MarketBookCache) Clone() *MarketBookCache {
	clone := *m
	clone.Runners = make(map[RunnerKey]*RunnerBookCache, len(m.Runners))
	for k, v := range m.Runners {
		clone.Runners[k] = v.Clone()
	}
	return &clone
}

// IsClosed reports whether the market's definition last reported a
// closed status.
func (m *MarketBookCache) IsClosed() bool { return m.Closed }

// UpdateCache merges one MarketChange into the cache following the
// reconciliation order: definition first (creating any newly announced
// runners), then an image-driven ladder reset, then per-runner changes,
// then the market-level total-matched scalar, then the publish time and
// closed-derived-from-definition bookkeeping.
func (m *MarketBookCache) UpdateCache(change types.MarketChange, publishTime time.Time, onError func(error)) {
	if change.MarketDefinition != nil {
		m.Definition = change.MarketDefinition
		for _, rd := range change.MarketDefinition.Runners {
			handicap := price.NoHandicap
			if rd.Handicap != nil {
				handicap = price.NewHandicap(*rd.Handicap)
			}
			key := RunnerKey{SelectionID: uint64(rd.SelectionID), Handicap: handicap.Key()}
			if _, ok := m.Runners[key]; !ok {
				m.Runners[key] = NewRunnerBookCache(uint64(rd.SelectionID), handicap)
			}
		}
		m.Closed = m.Definition.Status == types.MarketStatusClosed
	}

	if change.Image != nil && *change.Image {
		for _, r := range m.Runners {
			r.resetLadders()
		}
	}

	for _, rc := range change.RunnerChanges {
		if rc.SelectionID == nil {
			reportError(onError, &missingSelectionIDError{})
			continue
		}
		handicap := price.NoHandicap
		if rc.Handicap != nil {
			handicap = price.NewHandicap(*rc.Handicap)
		}
		key := RunnerKey{SelectionID: *rc.SelectionID, Handicap: handicap.Key()}
		runner, ok := m.Runners[key]
		if !ok {
			runner = NewRunnerBookCache(*rc.SelectionID, handicap)
			m.Runners[key] = runner
		}
		runner.Apply(rc, onError)
	}

	if change.TotalMatched != nil {
		if sz, err := price.NewSize(*change.TotalMatched); err != nil {
			reportError(onError, err)
		} else {
			m.TotalMatched = sz
		}
	}

	m.PublishTime = publishTime
}

type missingSelectionIDError struct{}

func (e *missingSelectionIDError) Error() string {
	return "cache: runner change carries no selection id"
}
