package engine

import (
	"time"

	"github.com/daconjurer/ctenex/internal/market"
)

// ScoringParams groups the tunable knobs of the signal synthesizer. The
// source schema fixes none of these values, so they are configuration, not
// constants.
type ScoringParams struct {
	MomentumWeight float64
	SpreadWeight   float64
	BuyThreshold   float64
	SellThreshold  float64
	Precision      int
}

// DefaultScoringParams returns the calibration starting points used when the
// config leaves scoring unset.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		MomentumWeight: 8.0,
		SpreadWeight:   2.0,
		BuyThreshold:   60,
		SellThreshold:  40,
		Precision:      defaultPrecision,
	}
}

// Synthesizer combines momentum and a liquidity penalty into a bounded
// [0,100] strength score and a discrete recommended action.
type Synthesizer struct {
	params ScoringParams
}

// NewSynthesizer builds a synthesizer from complete params. Every knob is
// taken as given, so an explicit zero weight or threshold stays zero; callers
// start from DefaultScoringParams and override. Negative precision falls back
// to the default.
func NewSynthesizer(params ScoringParams) *Synthesizer {
	if params.Precision < 0 {
		params.Precision = defaultPrecision
	}
	return &Synthesizer{params: params}
}

// Synthesize scores one pipeline step. Strength is monotonic in momentum,
// penalized by the spread percentage when present, and clamped to [0,100].
// A missing spread percentage contributes no penalty.
func (s *Synthesizer) Synthesize(instrument string, price, momentum float64, spread, spreadPct *float64, ts time.Time) market.TradingSignal {
	strength := 50 + s.params.MomentumWeight*momentum
	if spreadPct != nil {
		strength -= s.params.SpreadWeight * *spreadPct
	}
	strength = roundPlaces(clamp(strength, 0, 100), int32(s.params.Precision))

	action := market.Hold
	switch {
	case strength >= s.params.BuyThreshold:
		action = market.Buy
	case strength <= s.params.SellThreshold:
		action = market.Sell
	}

	return market.TradingSignal{
		Instrument:       instrument,
		Ts:               ts,
		Price:            price,
		Momentum:         momentum,
		Spread:           spread,
		SpreadPercentage: spreadPct,
		Strength:         strength,
		Action:           action,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
