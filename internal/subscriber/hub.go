// Package subscriber is the public-facing fan-out for tracker
// snapshots: callers ask for a market or order subscription with a
// typed filter, then read the resulting book updates off a bounded
// channel. A subscriber that falls behind is dropped rather than
// allowed to stall the ingest path.
package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"betfair-streamcache/internal/stream"
	"betfair-streamcache/internal/tracker"
	"betfair-streamcache/pkg/types"
)

// bufferSize is the bounded channel capacity per subscriber (§4.10).
const bufferSize = 3

// Subscription is a caller's handle on a snapshot feed. Read from C
// until it closes, and call Unsubscribe when the feed is no longer
// wanted.
type Subscription struct {
	C <-chan *tracker.Snapshot

	hub *Hub
	id  uuid.UUID
}

// ID identifies the subscription in logs, independent of process
// restarts or map iteration order.
func (s *Subscription) ID() uuid.UUID { return s.id }

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() { s.hub.remove(s.id) }

// Hub fans tracker snapshots out to every current subscriber and sends
// market/order subscription (and resubscription) requests on the
// underlying connection processor.
type Hub struct {
	proc   *stream.Processor
	logger *slog.Logger

	mu   sync.Mutex
	subs map[uuid.UUID]chan *tracker.Snapshot
}

// New creates a Hub that sends subscription requests through proc.
func New(proc *stream.Processor, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		proc:   proc,
		logger: logger,
		subs:   make(map[uuid.UUID]chan *tracker.Snapshot),
	}
}

// Subscribe registers a new subscriber. Every snapshot passed to
// Publish afterwards is delivered to it until it is dropped (buffer
// full) or explicitly unsubscribed.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New()
	ch := make(chan *tracker.Snapshot, bufferSize)
	h.subs[id] = ch
	return &Subscription{C: ch, hub: h, id: id}
}

func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish fans snap out to every current subscriber. A subscriber whose
// buffer is already full is dropped (its channel closed and removed)
// rather than allowed to block the caller.
func (h *Hub) Publish(snap *tracker.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- snap:
		default:
			h.logger.Warn("subscriber: dropping slow subscriber", "subscriber_id", id)
			close(ch)
			delete(h.subs, id)
		}
	}
}

// Run publishes every snapshot read from snapshots until ctx is
// cancelled or snapshots closes.
func (h *Hub) Run(ctx context.Context, snapshots <-chan *tracker.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			h.Publish(snap)
		}
	}
}

// SubscribeMarket sends a marketSubscription request. The connection
// processor attaches the current resume tokens and remembers the
// request so it can be resent after a reconnect; the server treats any
// new subscription as replacing the prior one for this channel.
func (h *Hub) SubscribeMarket(ctx context.Context, filter *types.MarketFilter, dataFilter *types.MarketDataFilter) error {
	if h.proc == nil {
		return fmt.Errorf("subscriber: no connection processor configured")
	}
	return h.proc.Send(ctx, types.MarketSubscriptionMessage{
		Op:               types.OpMarketSubscription,
		MarketFilter:     filter,
		MarketDataFilter: dataFilter,
	})
}

// SubscribeOrders sends an orderSubscription request, analogous to
// SubscribeMarket.
func (h *Hub) SubscribeOrders(ctx context.Context, filter *types.OrderFilter) error {
	if h.proc == nil {
		return fmt.Errorf("subscriber: no connection processor configured")
	}
	return h.proc.Send(ctx, types.OrderSubscriptionMessage{
		Op:          types.OpOrderSubscription,
		OrderFilter: filter,
	})
}
