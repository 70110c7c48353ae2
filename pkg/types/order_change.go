package types

import "github.com/shopspring/decimal"

// OrderMarketChange is one market's worth of order change within an
// OrderChangeMessage.
type OrderMarketChange struct {
	AccountID        *int64              `json:"accountId,omitempty"`
	OrderRunnerChanges []OrderRunnerChange `json:"orc,omitempty"`
	Closed           *bool               `json:"closed,omitempty"`
	MarketID         string              `json:"id"`
	FullImage        *bool               `json:"fullImage,omitempty"`
}

// OrderRunnerChange is one runner's worth of order-side updates: the
// account's own matched ladders, its unmatched orders on this
// selection, and a per-strategy matched breakdown.
type OrderRunnerChange struct {
	MatchedBacks   [][]decimal.Decimal                `json:"mb,omitempty"`
	MatchedLays    [][]decimal.Decimal                `json:"ml,omitempty"`
	StrategyMatches map[string]StrategyMatchChange    `json:"smc,omitempty"`
	UnmatchedOrders []Order                           `json:"uo,omitempty"`
	SelectionID    uint64                             `json:"id"`
	Handicap       *decimal.Decimal                   `json:"hc,omitempty"`
	FullImage      *bool                              `json:"fullImage,omitempty"`
}

// StrategyMatchChange is the matched-backs/matched-lays breakdown for a
// single customer strategy reference, present only when an order
// subscription asked to partition matches by strategy.
type StrategyMatchChange struct {
	MatchedBacks [][]decimal.Decimal `json:"mb,omitempty"`
	MatchedLays  [][]decimal.Decimal `json:"ml,omitempty"`
}

// Order is a single unmatched (or partially matched) order resting on a
// selection, as reported in OrderRunnerChange.UnmatchedOrders.
type Order struct {
	BetID              string          `json:"id"`
	Price              decimal.Decimal `json:"p"`
	Size               decimal.Decimal `json:"s"`
	Side               Side            `json:"side"`
	Status             OrderStatus     `json:"status"`
	PersistenceType    PersistenceType `json:"pt"`
	OrderType          OrderType       `json:"ot"`
	PlacedDate         int64           `json:"pd"`
	MatchedDate        *int64          `json:"md,omitempty"`
	CancelledDate      *int64          `json:"cd,omitempty"`
	LapsedDate         *int64          `json:"ld,omitempty"`
	SizeCancelled      decimal.Decimal `json:"sc"`
	SizeVoided         decimal.Decimal `json:"sv"`
	SizeLapsed         decimal.Decimal `json:"sl"`
	SizeMatched        decimal.Decimal `json:"sm"`
	SizeRemaining      decimal.Decimal `json:"sr"`
	AveragePriceMatched *decimal.Decimal `json:"avp,omitempty"`
	RegulatorCode      string          `json:"rc,omitempty"`
	CustomerStrategyRef string         `json:"rfs,omitempty"`
	CustomerOrderRef   string          `json:"rfo,omitempty"`
	BSP                *decimal.Decimal `json:"bsp,omitempty"`
}
