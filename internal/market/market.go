// Package market standardizes payloads shared between data ingestion, the
// signal engine, and persistence layers.
package market

import "time"

// Action is the discrete recommendation attached to a trading signal.
type Action string

const (
	// Buy recommends opening or adding to a long.
	Buy Action = "BUY"
	// Sell recommends reducing or shorting.
	Sell Action = "SELL"
	// Hold recommends no change.
	Hold Action = "HOLD"
)

// Tick models a normalized market event as delivered by a feed: a trade
// print or quote update for a single instrument. BestBid/BestAsk are nil
// when the book side was not observed.
type Tick struct {
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"`
	BestBid    *float64  `json:"best_bid,omitempty"`
	BestAsk    *float64  `json:"best_ask,omitempty"`
	Ts         time.Time `json:"ts"`
}

// PriceMoment is the immutable per-tick record persisted by the moment
// recorder. ID stays zero until the storage layer assigns one.
type PriceMoment struct {
	ID         int64     `json:"id"`
	Instrument string    `json:"instrument"`
	Ts         time.Time `json:"ts"`
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"`
	BestBid    *float64  `json:"best_bid,omitempty"`
	BestAsk    *float64  `json:"best_ask,omitempty"`
}

// EmaCalculation captures one step of the short/long EMA recurrence.
// Momentum is always EmaShort - EmaLong for the same step.
type EmaCalculation struct {
	ID         int64     `json:"id"`
	Instrument string    `json:"instrument"`
	Ts         time.Time `json:"ts"`
	Price      float64   `json:"price"`
	EmaShort   float64   `json:"ema_short"`
	EmaLong    float64   `json:"ema_long"`
	Momentum   float64   `json:"momentum"`
}

// SpreadAnalysis records the book state for one quote update. Spread and
// SpreadPercentage are nil whenever either book side is missing. Crossed
// marks a negative spread, which is recorded as-is rather than clamped.
type SpreadAnalysis struct {
	ID               int64     `json:"id"`
	Instrument       string    `json:"instrument"`
	Ts               time.Time `json:"ts"`
	BestBid          *float64  `json:"best_bid,omitempty"`
	BestAsk          *float64  `json:"best_ask,omitempty"`
	Spread           *float64  `json:"spread,omitempty"`
	SpreadPercentage *float64  `json:"spread_percentage,omitempty"`
	Volume           *float64  `json:"volume,omitempty"`
	Crossed          bool      `json:"crossed"`
}

// TradingSignal is the engine's output consumed by downstream strategies.
// Strength is bounded to [0,100].
type TradingSignal struct {
	ID               int64     `json:"id"`
	Instrument       string    `json:"instrument"`
	Ts               time.Time `json:"ts"`
	Price            float64   `json:"price"`
	Momentum         float64   `json:"momentum"`
	Spread           *float64  `json:"spread,omitempty"`
	SpreadPercentage *float64  `json:"spread_percentage,omitempty"`
	Strength         float64   `json:"signal_strength"`
	Action           Action    `json:"recommended_action"`
}

// Float64 returns a pointer to v, for filling optional tick fields.
func Float64(v float64) *float64 { return &v }
