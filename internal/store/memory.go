package store

import (
	"sync"

	"github.com/daconjurer/ctenex/internal/market"
)

// Memory keeps every record in slices for quick inspection in tests and
// offline runs. Ids are assigned sequentially per stream, mimicking the
// database's serial columns.
type Memory struct {
	mu      sync.Mutex
	moments []market.PriceMoment
	emas    []market.EmaCalculation
	spreads []market.SpreadAnalysis
	signals []market.TradingSignal
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

// SaveMoment appends a price moment.
func (s *Memory) SaveMoment(m market.PriceMoment) error {
	s.mu.Lock()
	m.ID = int64(len(s.moments) + 1)
	s.moments = append(s.moments, m)
	s.mu.Unlock()
	return nil
}

// SaveEma appends an EMA calculation.
func (s *Memory) SaveEma(c market.EmaCalculation) error {
	s.mu.Lock()
	c.ID = int64(len(s.emas) + 1)
	s.emas = append(s.emas, c)
	s.mu.Unlock()
	return nil
}

// SaveSpread appends a spread analysis.
func (s *Memory) SaveSpread(sp market.SpreadAnalysis) error {
	s.mu.Lock()
	sp.ID = int64(len(s.spreads) + 1)
	s.spreads = append(s.spreads, sp)
	s.mu.Unlock()
	return nil
}

// SaveSignal appends a trading signal.
func (s *Memory) SaveSignal(sig market.TradingSignal) error {
	s.mu.Lock()
	sig.ID = int64(len(s.signals) + 1)
	s.signals = append(s.signals, sig)
	s.mu.Unlock()
	return nil
}

// LatestEma returns the most recent EMA calculation for the instrument.
func (s *Memory) LatestEma(instrument string) (market.EmaCalculation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.emas) - 1; i >= 0; i-- {
		if s.emas[i].Instrument == instrument {
			return s.emas[i], true, nil
		}
	}
	return market.EmaCalculation{}, false, nil
}

// Moments returns a copy of the recorded price moments.
func (s *Memory) Moments() []market.PriceMoment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.PriceMoment, len(s.moments))
	copy(out, s.moments)
	return out
}

// Emas returns a copy of the recorded EMA calculations.
func (s *Memory) Emas() []market.EmaCalculation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.EmaCalculation, len(s.emas))
	copy(out, s.emas)
	return out
}

// Spreads returns a copy of the recorded spread analyses.
func (s *Memory) Spreads() []market.SpreadAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.SpreadAnalysis, len(s.spreads))
	copy(out, s.spreads)
	return out
}

// Signals returns a copy of the recorded trading signals.
func (s *Memory) Signals() []market.TradingSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.TradingSignal, len(s.signals))
	copy(out, s.signals)
	return out
}

// Reset clears all stored records.
func (s *Memory) Reset() {
	s.mu.Lock()
	s.moments = s.moments[:0]
	s.emas = s.emas[:0]
	s.spreads = s.spreads[:0]
	s.signals = s.signals[:0]
	s.mu.Unlock()
}

// Close is a no-op for the in-memory store.
func (s *Memory) Close() error { return nil }
