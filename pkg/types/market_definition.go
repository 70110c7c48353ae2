package types

import (
	"github.com/relvacode/iso8601"
	"github.com/shopspring/decimal"
)

// MarketDefinition carries a market's metadata: its runners, betting
// type, lifecycle status, and the various flags the exchange reports
// alongside price changes. It arrives embedded in a MarketChange
// whenever the market's metadata changes, and always as part of the
// first (image) message of a subscription.
type MarketDefinition struct {
	Venue              string                 `json:"venue,omitempty"`
	RaceType           string                 `json:"raceType,omitempty"`
	SettledTime        *iso8601.Time          `json:"settledTime,omitempty"`
	Timezone           string                 `json:"timezone"`
	EachWayDivisor     *decimal.Decimal       `json:"eachWayDivisor,omitempty"`
	Regulators         []string               `json:"regulators"`
	MarketType         string                 `json:"marketType"`
	MarketBaseRate     decimal.Decimal        `json:"marketBaseRate"`
	NumberOfWinners    int                    `json:"numberOfWinners"`
	CountryCode        string                 `json:"countryCode,omitempty"`
	LineMaxUnit        *decimal.Decimal       `json:"lineMaxUnit,omitempty"`
	InPlay             bool                   `json:"inPlay"`
	BetDelay           int                    `json:"betDelay"`
	BSPMarket          bool                   `json:"bspMarket"`
	BettingType        BettingType            `json:"bettingType"`
	NumberOfActiveRunners int                 `json:"numberOfActiveRunners"`
	LineMinUnit        *decimal.Decimal       `json:"lineMinUnit,omitempty"`
	EventID            string                 `json:"eventId"`
	CrossMatching      bool                   `json:"crossMatching"`
	RunnersVoidable    bool                   `json:"runnersVoidable"`
	TurnInPlayEnabled  bool                   `json:"turnInPlayEnabled"`
	PriceLadderDefinition *PriceLadderDefinition `json:"priceLadderDefinition,omitempty"`
	KeyLineDefinition  *KeyLineDefinition     `json:"keyLineDefinition,omitempty"`
	SuspendTime        *iso8601.Time          `json:"suspendTime,omitempty"`
	DiscountAllowed    bool                   `json:"discountAllowed"`
	PersistenceEnabled bool                   `json:"persistenceEnabled"`
	Runners            []RunnerDefinition     `json:"runners"`
	Version            int64                  `json:"version"`
	EventTypeID        string                 `json:"eventTypeId"`
	Complete           bool                   `json:"complete"`
	OpenDate           *iso8601.Time          `json:"openDate,omitempty"`
	MarketTime         *iso8601.Time          `json:"marketTime,omitempty"`
	BSPReconciled      bool                   `json:"bspReconciled"`
	LineInterval       *decimal.Decimal       `json:"lineInterval,omitempty"`
	Status             MarketDefinitionStatus `json:"status"`
}

// RunnerDefinition is the metadata for a single runner (selection) as
// reported inside a MarketDefinition.
type RunnerDefinition struct {
	SelectionID     int64                  `json:"id"`
	Status          RunnerDefinitionStatus `json:"status"`
	SortPriority    int                    `json:"sortPriority"`
	Handicap        *decimal.Decimal       `json:"hc,omitempty"`
	AdjustmentFactor *decimal.Decimal      `json:"adjustmentFactor,omitempty"`
	BSP             *decimal.Decimal       `json:"bsp,omitempty"`
	RemovalDate     string                 `json:"removalDate,omitempty"`
}

// RunnerDefinitionStatus is a runner's own lifecycle state, distinct
// from the market's MarketDefinitionStatus.
type RunnerDefinitionStatus string

const (
	RunnerStatusActive  RunnerDefinitionStatus = "ACTIVE"
	RunnerStatusWinner  RunnerDefinitionStatus = "WINNER"
	RunnerStatusLoser   RunnerDefinitionStatus = "LOSER"
	RunnerStatusRemoved RunnerDefinitionStatus = "REMOVED"
	RunnerStatusHidden  RunnerDefinitionStatus = "HIDDEN"
	RunnerStatusPlaced  RunnerDefinitionStatus = "PLACED"
)
