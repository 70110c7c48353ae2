package types

import "github.com/shopspring/decimal"

// MarketFilter narrows a market subscription to a subset of markets.
// Every field is optional; an absent field places no restriction.
type MarketFilter struct {
	CountryCodes      []string      `json:"countryCodes,omitempty"`
	BettingTypes      []BettingType `json:"bettingTypes,omitempty"`
	TurnInPlayEnabled *bool         `json:"turnInPlayEnabled,omitempty"`
	MarketTypes       []string      `json:"marketTypes,omitempty"`
	Venues            []string      `json:"venues,omitempty"`
	MarketIDs         []string      `json:"marketIds,omitempty"`
	EventTypeIDs      []string      `json:"eventTypeIds,omitempty"`
	EventIDs          []string      `json:"eventIds,omitempty"`
	BSPMarket         *bool         `json:"bspMarket,omitempty"`
	RaceTypes         []string      `json:"raceTypes,omitempty"`
}

// MarketDataFilter selects which parts of a market's data, and how many
// ladder levels, a market subscription should receive.
type MarketDataFilter struct {
	LadderLevels *int              `json:"ladderLevels,omitempty"`
	Fields       []MarketDataField `json:"fields,omitempty"`
}

// OrderFilter narrows an order subscription.
//
// CustomerStrategyRefs must only name strategy refs the account actually
// has open orders under; the server's behavior for an unrecognized ref
// is to unsubscribe all strategies rather than return an empty set for
// that ref, so callers should populate this from a known-good list.
type OrderFilter struct {
	IncludeOverallPosition        *bool    `json:"includeOverallPosition,omitempty"`
	AccountIDs                    []int64  `json:"accountIds,omitempty"`
	CustomerStrategyRefs          []string `json:"customerStrategyRefs,omitempty"`
	PartitionMatchedByStrategyRef *bool    `json:"partitionMatchedByStrategyRef,omitempty"`
}

// PriceLadderDefinition reports which price ladder a market is traded
// on.
type PriceLadderDefinition struct {
	Type PriceLadderType `json:"type,omitempty"`
}

// KeyLineSelection is one runner/handicap pair in a key-line definition.
type KeyLineSelection struct {
	ID       *int64           `json:"id,omitempty"`
	Handicap *decimal.Decimal `json:"hc,omitempty"`
}

// KeyLineDefinition names the selections that make up a market's key
// line, for Asian-handicap-style markets.
type KeyLineDefinition struct {
	KeyLine []KeyLineSelection `json:"kl,omitempty"`
}
