package engine

import (
	"time"

	"github.com/daconjurer/ctenex/internal/market"
)

const defaultPrecision = 2

// SpreadAnalyzer computes bid/ask spread and spread percentage for quote
// updates. A book with a missing side yields nil spread fields; that is a
// normal market state, not an error. A crossed book (ask below bid) is
// recorded as-is with the Crossed flag set, never clamped.
type SpreadAnalyzer struct {
	precision int32
}

// NewSpreadAnalyzer builds an analyzer rounding percentages to the given
// number of decimal places. Negative precision falls back to two places.
func NewSpreadAnalyzer(precision int) *SpreadAnalyzer {
	if precision < 0 {
		precision = defaultPrecision
	}
	return &SpreadAnalyzer{precision: int32(precision)}
}

// Analyze derives the spread record for one quote update.
func (a *SpreadAnalyzer) Analyze(instrument string, bestBid, bestAsk, volume *float64, ts time.Time) market.SpreadAnalysis {
	out := market.SpreadAnalysis{
		Instrument: instrument,
		Ts:         ts,
		BestBid:    bestBid,
		BestAsk:    bestAsk,
		Volume:     volume,
	}
	if bestBid == nil || bestAsk == nil {
		return out
	}

	spread := *bestAsk - *bestBid
	out.Spread = &spread
	out.Crossed = spread < 0

	midpoint := (*bestBid + *bestAsk) / 2
	if midpoint == 0 {
		return out
	}
	pct := roundPlaces(spread/midpoint*100, a.precision)
	out.SpreadPercentage = &pct
	return out
}
