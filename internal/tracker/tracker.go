// Package tracker is the top-level dispatcher that folds decoded
// market/order change messages from internal/stream into the
// internal/cache book caches, buffers segmented messages until they
// complete, tracks the resume clocks, and evicts caches that have gone
// stale.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"betfair-streamcache/internal/cache"
	"betfair-streamcache/internal/metrics"
	"betfair-streamcache/internal/stream"
	"betfair-streamcache/pkg/types"
)

// StaleThreshold is how long a closed cache is retained after its last
// publish time before the sweep removes it. Fixed per the exchange's
// own retention window; change it here to tune it at compile time.
const StaleThreshold = 8 * time.Hour

// Snapshot is emitted once per server-logical update: every cache the
// update touched, as an immutable clone, plus whether any of them
// received a full image.
type Snapshot struct {
	Markets   []*cache.MarketBookCache
	Orders    []*cache.OrderBookCache
	FullImage bool
}

type resumeState struct {
	clk        *string
	initialClk *string
}

// Tracker owns the per-market book caches and the bookkeeping needed to
// reconcile them from a stream of MCM/OCM events. It is not safe to
// share a Tracker's Run across goroutines, but its accessor methods
// (Markets, Orders) may be called concurrently with Run.
type Tracker struct {
	logger  *slog.Logger
	metrics *metrics.Registry
	onError func(error)

	mu               sync.Mutex
	markets          map[string]*cache.MarketBookCache
	orders           map[string]*cache.OrderBookCache
	marketClk        resumeState
	orderClk         resumeState
	marketSeg        []types.MarketChange
	inMktSeg         bool
	orderSeg         []types.OrderMarketChange
	inOrdSeg         bool
	updatesProcessed uint64

	snapshots chan *Snapshot
}

// New creates an empty Tracker. reg may be nil to disable metrics.
func New(logger *slog.Logger, reg *metrics.Registry, onError func(error)) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Tracker{
		logger:    logger,
		metrics:   reg,
		onError:   onError,
		markets:   make(map[string]*cache.MarketBookCache),
		orders:    make(map[string]*cache.OrderBookCache),
		snapshots: make(chan *Snapshot, 16),
	}
}

// Snapshots returns the channel Run publishes emitted snapshots on.
func (t *Tracker) Snapshots() <-chan *Snapshot { return t.snapshots }

// Markets returns an immutable clone of every market cache currently
// tracked, for callers that want the whole book rather than waiting on
// the next snapshot (e.g. a newly attached subscriber).
func (t *Tracker) Markets() []*cache.MarketBookCache {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*cache.MarketBookCache, 0, len(t.markets))
	for _, m := range t.markets {
		out = append(out, m.Clone())
	}
	return out
}

// Orders returns an immutable clone of every order cache currently
// tracked.
func (t *Tracker) Orders() []*cache.OrderBookCache {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*cache.OrderBookCache, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, o.Clone())
	}
	return out
}

// Run consumes events until ctx is cancelled or events closes, folding
// market/order changes into the caches and running the stale sweep
// every sweepInterval. It closes the snapshots channel before
// returning.
func (t *Tracker) Run(ctx context.Context, events <-chan stream.Event, sweepInterval time.Duration) error {
	defer close(t.snapshots)

	if sweepInterval <= 0 {
		sweepInterval = StaleThreshold / 8
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.Sweep(now)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			t.handleEvent(ctx, ev)
		}
	}
}

func (t *Tracker) handleEvent(ctx context.Context, ev stream.Event) {
	switch ev.Kind {
	case stream.EventMarketChange:
		if ev.MarketChange == nil {
			return
		}
		if snap := t.ProcessMarketChange(*ev.MarketChange); snap != nil {
			t.publish(ctx, snap)
		}
	case stream.EventOrderChange:
		if ev.OrderChange == nil {
			return
		}
		if snap := t.ProcessOrderChange(*ev.OrderChange); snap != nil {
			t.publish(ctx, snap)
		}
	default:
		// connection/status/resume-lost events carry nothing the
		// tracker reconciles; C5 owns connection identity.
	}
}

func (t *Tracker) publish(ctx context.Context, snap *Snapshot) {
	select {
	case t.snapshots <- snap:
	case <-ctx.Done():
	}
}

// ProcessMarketChange folds one MarketChangeMessage into the market
// caches. It returns nil when the message carries no publish time, or
// when it is a segStart/seg frame being buffered for a later segEnd.
func (t *Tracker) ProcessMarketChange(msg types.MarketChangeMessage) *Snapshot {
	if msg.Pt == nil {
		t.logger.Warn("tracker: market change message missing publish time")
		return nil
	}
	publishTime := time.UnixMilli(*msg.Pt)

	if buffering(msg.SegmentType) {
		t.mu.Lock()
		t.inMktSeg = true
		t.marketSeg = append(t.marketSeg, msg.Mc...)
		t.mu.Unlock()
		return nil
	}

	t.mu.Lock()
	changes := msg.Mc
	if t.inMktSeg {
		changes = append(t.marketSeg, changes...)
		t.marketSeg = nil
		t.inMktSeg = false
	}
	t.mu.Unlock()

	if len(changes) == 0 {
		t.updateMarketClock(msg)
		return nil
	}

	updated, fullImage := t.applyMarketChanges(changes, publishTime)
	t.updateMarketClock(msg)

	if len(updated) == 0 {
		return nil
	}
	return &Snapshot{Markets: updated, FullImage: fullImage}
}

func (t *Tracker) applyMarketChanges(changes []types.MarketChange, publishTime time.Time) ([]*cache.MarketBookCache, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fullImage := false
	touched := make([]string, 0, len(changes))
	for _, mc := range changes {
		if mc.MarketID == "" {
			continue
		}
		market, ok := t.markets[mc.MarketID]
		full := mc.Image != nil && *mc.Image
		switch {
		case !ok:
			fullImage = true
			market = cache.NewMarketBookCache(mc.MarketID, publishTime)
			t.markets[mc.MarketID] = market
		case full:
			fullImage = true
			market = cache.NewMarketBookCache(mc.MarketID, publishTime)
			t.markets[mc.MarketID] = market
		}
		market.UpdateCache(mc, publishTime, t.onError)
		touched = append(touched, mc.MarketID)
	}

	updated := make([]*cache.MarketBookCache, 0, len(touched))
	for _, id := range touched {
		market, ok := t.markets[id]
		if !ok {
			continue
		}
		updated = append(updated, market.Clone())
		t.updatesProcessed++
		if t.metrics != nil {
			t.metrics.UpdatesProcessed.WithLabelValues("market").Inc()
		}
	}
	if t.metrics != nil {
		t.metrics.TrackedMarkets.Set(float64(len(t.markets)))
	}
	return updated, fullImage
}

func (t *Tracker) updateMarketClock(msg types.MarketChangeMessage) {
	if msg.SegmentType != nil && !segEnd(msg.SegmentType) {
		return
	}
	t.mu.Lock()
	if msg.InitialClk != nil {
		t.marketClk.initialClk = msg.InitialClk
	}
	if msg.Clk != nil {
		t.marketClk.clk = msg.Clk
	}
	t.mu.Unlock()
}

// ProcessOrderChange folds one OrderChangeMessage into the order
// caches, analogous to ProcessMarketChange.
func (t *Tracker) ProcessOrderChange(msg types.OrderChangeMessage) *Snapshot {
	if msg.Pt == nil {
		t.logger.Warn("tracker: order change message missing publish time")
		return nil
	}
	publishTime := time.UnixMilli(*msg.Pt)

	if buffering(msg.SegmentType) {
		t.mu.Lock()
		t.inOrdSeg = true
		t.orderSeg = append(t.orderSeg, msg.Oc...)
		t.mu.Unlock()
		return nil
	}

	t.mu.Lock()
	changes := msg.Oc
	if t.inOrdSeg {
		changes = append(t.orderSeg, changes...)
		t.orderSeg = nil
		t.inOrdSeg = false
	}
	t.mu.Unlock()

	if len(changes) == 0 {
		t.updateOrderClock(msg)
		return nil
	}

	updated, fullImage := t.applyOrderChanges(changes, publishTime)
	t.updateOrderClock(msg)

	if len(updated) == 0 {
		return nil
	}
	return &Snapshot{Orders: updated, FullImage: fullImage}
}

func (t *Tracker) applyOrderChanges(changes []types.OrderMarketChange, publishTime time.Time) ([]*cache.OrderBookCache, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fullImage := false
	touched := make([]string, 0, len(changes))
	for _, oc := range changes {
		if oc.MarketID == "" {
			continue
		}
		market, ok := t.orders[oc.MarketID]
		full := oc.FullImage != nil && *oc.FullImage
		switch {
		case !ok:
			fullImage = true
			market = cache.NewOrderBookCache(oc.MarketID, publishTime)
			t.orders[oc.MarketID] = market
		case full:
			fullImage = true
			market = cache.NewOrderBookCache(oc.MarketID, publishTime)
			t.orders[oc.MarketID] = market
		}
		market.UpdateCache(oc, publishTime, t.onError)
		touched = append(touched, oc.MarketID)
	}

	updated := make([]*cache.OrderBookCache, 0, len(touched))
	for _, id := range touched {
		market, ok := t.orders[id]
		if !ok {
			continue
		}
		updated = append(updated, market.Clone())
		t.updatesProcessed++
		if t.metrics != nil {
			t.metrics.UpdatesProcessed.WithLabelValues("order").Inc()
		}
	}
	return updated, fullImage
}

func (t *Tracker) updateOrderClock(msg types.OrderChangeMessage) {
	if msg.SegmentType != nil && !segEnd(msg.SegmentType) {
		return
	}
	t.mu.Lock()
	if msg.InitialClk != nil {
		t.orderClk.initialClk = msg.InitialClk
	}
	if msg.Clk != nil {
		t.orderClk.clk = msg.Clk
	}
	t.mu.Unlock()
}

// Sweep removes closed caches whose publish time is older than
// StaleThreshold as of now.
func (t *Tracker) Sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	marketEvicted := 0
	for id, m := range t.markets {
		if m.IsClosed() && now.Sub(m.PublishTime) > StaleThreshold {
			delete(t.markets, id)
			marketEvicted++
		}
	}
	orderEvicted := 0
	for id, o := range t.orders {
		if o.IsClosed() && now.Sub(o.PublishTime) > StaleThreshold {
			delete(t.orders, id)
			orderEvicted++
		}
	}
	if marketEvicted > 0 || orderEvicted > 0 {
		t.logger.Info("tracker: stale sweep",
			"markets_evicted", humanize.Comma(int64(marketEvicted)),
			"orders_evicted", humanize.Comma(int64(orderEvicted)),
			"markets_remaining", humanize.Comma(int64(len(t.markets))),
		)
	}
	if t.metrics != nil {
		if marketEvicted > 0 {
			t.metrics.StaleEvicted.WithLabelValues("market").Add(float64(marketEvicted))
		}
		if orderEvicted > 0 {
			t.metrics.StaleEvicted.WithLabelValues("order").Add(float64(orderEvicted))
		}
		t.metrics.TrackedMarkets.Set(float64(len(t.markets)))
	}
}

func buffering(segType *types.SegmentType) bool {
	if segType == nil {
		return false
	}
	return *segType == types.SegmentTypeSegStart || *segType == types.SegmentTypeSeg
}

func segEnd(segType *types.SegmentType) bool {
	return segType != nil && *segType == types.SegmentTypeSegEnd
}
