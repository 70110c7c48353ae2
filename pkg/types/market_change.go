package types

import "github.com/shopspring/decimal"

// MarketChange is one market's worth of change within a MarketChangeMessage.
// Img==true means rc (if present) is a full image replacing the cache
// entirely rather than a delta to merge.
type MarketChange struct {
	RunnerChanges    []RunnerChange    `json:"rc,omitempty"`
	Image            *bool             `json:"img,omitempty"`
	TotalMatched     *decimal.Decimal  `json:"tv,omitempty"`
	Conflated        *bool             `json:"con,omitempty"`
	MarketDefinition *MarketDefinition `json:"marketDefinition,omitempty"`
	MarketID         string            `json:"id,omitempty"`
}

// RunnerChange is one runner's (selection's) worth of ladder and
// scalar updates within a MarketChange. Every ladder field is a list of
// (price, size) or (level, price, size) tuples to merge into the
// corresponding Available ladder; a size of zero removes the entry.
type RunnerChange struct {
	TotalMatched *decimal.Decimal  `json:"tv,omitempty"`
	BestAvailableToBack          [][]decimal.Decimal `json:"batb,omitempty"`
	StartingPriceBack            [][]decimal.Decimal `json:"spb,omitempty"`
	BestDisplayAvailableToLay    [][]decimal.Decimal `json:"bdatl,omitempty"`
	Traded                       [][]decimal.Decimal `json:"trd,omitempty"`
	StartingPriceFar             *decimal.Decimal    `json:"spf,omitempty"`
	LastTradedPrice              *decimal.Decimal    `json:"ltp,omitempty"`
	AvailableToBack              [][]decimal.Decimal `json:"atb,omitempty"`
	StartingPriceLay             [][]decimal.Decimal `json:"spl,omitempty"`
	StartingPriceNear            *decimal.Decimal    `json:"spn,omitempty"`
	AvailableToLay               [][]decimal.Decimal `json:"atl,omitempty"`
	BestAvailableToLay           [][]decimal.Decimal `json:"batl,omitempty"`
	SelectionID                  *uint64             `json:"id,omitempty"`
	Handicap                     *decimal.Decimal    `json:"hc,omitempty"`
	BestDisplayAvailableToBack   [][]decimal.Decimal `json:"bdatb,omitempty"`
}
