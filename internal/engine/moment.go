package engine

import (
	"fmt"
	"math"

	"github.com/daconjurer/ctenex/internal/market"
)

// MomentRecorder validates ticks and shapes them into immutable price moment
// records. Persistence belongs to the storage collaborator; the recorder
// performs no dedup, so replaying an identical tick yields a second row.
type MomentRecorder struct{}

// NewMomentRecorder returns a stateless recorder.
func NewMomentRecorder() *MomentRecorder { return &MomentRecorder{} }

// Record validates the tick and returns its price moment. Missing or
// negative required fields return ErrInvalidTick.
func (r *MomentRecorder) Record(tick market.Tick) (market.PriceMoment, error) {
	if err := validateTick(tick); err != nil {
		return market.PriceMoment{}, err
	}
	return market.PriceMoment{
		Instrument: tick.Instrument,
		Ts:         tick.Ts,
		Price:      tick.Price,
		Volume:     tick.Volume,
		BestBid:    tick.BestBid,
		BestAsk:    tick.BestAsk,
	}, nil
}

func validateTick(tick market.Tick) error {
	if tick.Instrument == "" {
		return fmt.Errorf("%w: missing instrument", ErrInvalidTick)
	}
	if tick.Ts.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidTick)
	}
	if tick.Price <= 0 || !finite(tick.Price) {
		return fmt.Errorf("%w: price %v", ErrInvalidTick, tick.Price)
	}
	if tick.Volume < 0 || !finite(tick.Volume) {
		return fmt.Errorf("%w: volume %v", ErrInvalidTick, tick.Volume)
	}
	if tick.BestBid != nil && (*tick.BestBid < 0 || !finite(*tick.BestBid)) {
		return fmt.Errorf("%w: best bid %v", ErrInvalidTick, *tick.BestBid)
	}
	if tick.BestAsk != nil && (*tick.BestAsk < 0 || !finite(*tick.BestAsk)) {
		return fmt.Errorf("%w: best ask %v", ErrInvalidTick, *tick.BestAsk)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
