// Package engine contains the streaming computations that turn ticks into
// trading signals: EMA/momentum tracking, spread analysis, signal synthesis,
// and price moment recording.
package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/daconjurer/ctenex/internal/market"
)

const (
	defaultShortPeriod = 12
	defaultLongPeriod  = 26
)

type emaState struct {
	emaShort    float64
	emaLong     float64
	initialized bool
}

// EmaEngine maintains rolling short/long exponential moving averages per
// instrument and derives momentum as their difference. Updates for the same
// instrument must arrive in timestamp order; the recurrence is order-dependent.
type EmaEngine struct {
	kShort float64
	kLong  float64
	mu     sync.Mutex
	states map[string]*emaState
}

// NewEmaEngine builds an engine using the supplied EMA periods. Non-positive
// periods fall back to the 12/26 defaults.
func NewEmaEngine(shortPeriod, longPeriod int) *EmaEngine {
	if shortPeriod <= 0 {
		shortPeriod = defaultShortPeriod
	}
	if longPeriod <= 0 {
		longPeriod = defaultLongPeriod
	}
	return &EmaEngine{
		kShort: 2.0 / float64(shortPeriod+1),
		kLong:  2.0 / float64(longPeriod+1),
		states: make(map[string]*emaState),
	}
}

// Update advances the per-instrument recurrence with one price observation
// and returns the resulting calculation for persistence. The first tick for
// an instrument seeds both EMAs to its price. A non-positive or non-finite
// price returns ErrInvalidPrice and leaves state unchanged.
func (e *EmaEngine) Update(instrument string, price float64, ts time.Time) (market.EmaCalculation, error) {
	if instrument == "" {
		return market.EmaCalculation{}, fmt.Errorf("%w: empty instrument", ErrInvalidPrice)
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return market.EmaCalculation{}, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.states[instrument]
	if state == nil {
		state = &emaState{}
		e.states[instrument] = state
	}

	if !state.initialized {
		state.emaShort = price
		state.emaLong = price
		state.initialized = true
	} else {
		state.emaShort = price*e.kShort + state.emaShort*(1-e.kShort)
		state.emaLong = price*e.kLong + state.emaLong*(1-e.kLong)
	}

	return market.EmaCalculation{
		Instrument: instrument,
		Ts:         ts,
		Price:      price,
		EmaShort:   state.emaShort,
		EmaLong:    state.emaLong,
		Momentum:   state.emaShort - state.emaLong,
	}, nil
}

// Resume restores an instrument's recurrence from the last persisted
// calculation, so processing can continue after a restart without replaying
// the full tick history.
func (e *EmaEngine) Resume(instrument string, emaShort, emaLong float64) {
	if instrument == "" {
		return
	}
	e.mu.Lock()
	e.states[instrument] = &emaState{emaShort: emaShort, emaLong: emaLong, initialized: true}
	e.mu.Unlock()
}

// Tracked reports whether the engine holds state for the instrument.
func (e *EmaEngine) Tracked(instrument string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := e.states[instrument]
	return state != nil && state.initialized
}
