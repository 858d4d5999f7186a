package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/daconjurer/ctenex/internal/market"
)

// JSONL appends each record stream as JSON lines under a directory, one file
// per stream, for later analysis without a database.
type JSONL struct {
	mu      sync.Mutex
	files   []*os.File
	moments *json.Encoder
	emas    *json.Encoder
	spreads *json.Encoder
	signals *json.Encoder
}

// NewJSONL creates the directory and opens the four stream files in append mode.
func NewJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &JSONL{}
	for _, stream := range []struct {
		name string
		enc  **json.Encoder
	}{
		{"price_moments.jsonl", &s.moments},
		{"ema_calculations.jsonl", &s.emas},
		{"spread_analysis.jsonl", &s.spreads},
		{"trading_signals.jsonl", &s.signals},
	} {
		file, err := os.OpenFile(filepath.Join(dir, stream.name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.files = append(s.files, file)
		*stream.enc = json.NewEncoder(file)
	}
	return s, nil
}

// SaveMoment writes one price moment line.
func (s *JSONL) SaveMoment(m market.PriceMoment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moments.Encode(m)
}

// SaveEma writes one EMA calculation line.
func (s *JSONL) SaveEma(c market.EmaCalculation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emas.Encode(c)
}

// SaveSpread writes one spread analysis line.
func (s *JSONL) SaveSpread(sp market.SpreadAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spreads.Encode(sp)
}

// SaveSignal writes one trading signal line.
func (s *JSONL) SaveSignal(sig market.TradingSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signals.Encode(sig)
}

// Close closes all stream files.
func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, file := range s.files {
		if err := file.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.files = nil
	return first
}
