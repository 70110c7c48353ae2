package cache

import (
	"testing"

	"github.com/shopspring/decimal"

	"betfair-streamcache/pkg/price"
	"betfair-streamcache/pkg/types"
)

func TestOrderBookRunnerUpdatesUnmatchedByBetID(t *testing.T) {
	t.Parallel()

	r := NewOrderBookRunner("1.23", 456, price.NoHandicap)
	r.Apply(types.OrderRunnerChange{
		UnmatchedOrders: []types.Order{{BetID: "bet-1", Price: dd("2.5")}},
	}, nil)
	if len(r.UnmatchedOrders) != 1 {
		t.Fatalf("len = %d, want 1", len(r.UnmatchedOrders))
	}

	r.Apply(types.OrderRunnerChange{
		UnmatchedOrders: []types.Order{{BetID: "bet-1", Price: dd("3.0")}},
	}, nil)
	if len(r.UnmatchedOrders) != 1 {
		t.Fatalf("len after update = %d, want 1 (same bet id replaces)", len(r.UnmatchedOrders))
	}
	if !r.UnmatchedOrders["bet-1"].Price.Equal(dd("3.0")) {
		t.Error("expected the order to be replaced wholesale, not merged")
	}
}

func TestOrderBookRunnerFullImageClearsState(t *testing.T) {
	t.Parallel()

	r := NewOrderBookRunner("1.23", 456, price.NoHandicap)
	r.Apply(types.OrderRunnerChange{
		UnmatchedOrders: []types.Order{{BetID: "bet-1"}},
	}, nil)

	full := true
	r.Apply(types.OrderRunnerChange{FullImage: &full}, nil)
	if len(r.UnmatchedOrders) != 0 {
		t.Error("expected unmatched orders cleared on full image")
	}
}

func TestOrderBookRunnerStrategyMatchesAccumulate(t *testing.T) {
	t.Parallel()

	r := NewOrderBookRunner("1.23", 456, price.NoHandicap)
	r.Apply(types.OrderRunnerChange{
		StrategyMatches: map[string]types.StrategyMatchChange{
			"strat-a": {MatchedBacks: [][]decimal.Decimal{{dd("2.0"), dd("10")}}},
		},
	}, nil)

	sm, ok := r.StrategyMatches["strat-a"]
	if !ok {
		t.Fatal("expected strategy match entry")
	}
	if sm.MatchedBacks.Len() != 1 {
		t.Errorf("MatchedBacks.Len() = %d, want 1", sm.MatchedBacks.Len())
	}
}

func TestOrderBookRunnerCloneIsIndependent(t *testing.T) {
	t.Parallel()

	r := NewOrderBookRunner("1.23", 456, price.NoHandicap)
	r.Apply(types.OrderRunnerChange{MatchedBacks: [][]decimal.Decimal{{dd("2.0"), dd("10")}}}, nil)

	clone := r.Clone()
	clone.Apply(types.OrderRunnerChange{MatchedBacks: [][]decimal.Decimal{{dd("2.0"), dd("0")}}}, nil)

	if r.MatchedBacks.Len() != 1 {
		t.Error("mutating the clone affected the original")
	}
	if clone.MatchedBacks.Len() != 0 {
		t.Error("clone did not apply its own update")
	}
}
