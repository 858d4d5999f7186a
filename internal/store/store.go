// Package store holds the append-only persistence ports and their
// implementations. The engine only ever inserts; ids are assigned by the
// storage layer, never by the engine.
package store

import "github.com/daconjurer/ctenex/internal/market"

// Store receives the four record streams the engine produces. Implementations
// may batch internally; Close must flush anything buffered.
type Store interface {
	SaveMoment(m market.PriceMoment) error
	SaveEma(c market.EmaCalculation) error
	SaveSpread(s market.SpreadAnalysis) error
	SaveSignal(sig market.TradingSignal) error
	Close() error
}

// EmaResumer is implemented by stores that can return the last persisted EMA
// calculation for an instrument, which is the full recoverable engine state.
type EmaResumer interface {
	LatestEma(instrument string) (market.EmaCalculation, bool, error)
}
