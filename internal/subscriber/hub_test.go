package subscriber

import (
	"testing"

	"betfair-streamcache/internal/tracker"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()

	h := New(nil, nil)
	sub1 := h.Subscribe()
	sub2 := h.Subscribe()

	snap := &tracker.Snapshot{FullImage: true}
	h.Publish(snap)

	got1 := <-sub1.C
	got2 := <-sub2.C
	if got1 != snap || got2 != snap {
		t.Error("expected both subscribers to receive the same snapshot")
	}
}

func TestPublishDropsSlowSubscriber(t *testing.T) {
	t.Parallel()

	h := New(nil, nil)
	sub := h.Subscribe()

	for i := 0; i < bufferSize; i++ {
		h.Publish(&tracker.Snapshot{})
	}
	// Buffer is now full; one more publish must drop, not block.
	h.Publish(&tracker.Snapshot{})

	h.mu.Lock()
	_, stillRegistered := h.subs[sub.id]
	h.mu.Unlock()
	if stillRegistered {
		t.Error("expected the slow subscriber to be dropped")
	}

	if _, ok := <-sub.C; ok {
		// Draining the buffered snapshots is fine; the channel must
		// eventually report closed.
		for range sub.C {
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	h := New(nil, nil)
	sub := h.Subscribe()
	sub.Unsubscribe()

	if _, ok := <-sub.C; ok {
		t.Error("expected the channel to be closed after Unsubscribe")
	}
}

func TestSubscribeMarketWithoutProcessorErrors(t *testing.T) {
	t.Parallel()

	h := New(nil, nil)
	if err := h.SubscribeMarket(nil, nil, nil); err == nil {
		t.Error("expected an error when no processor is configured")
	}
}
