package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/daconjurer/ctenex/internal/engine"
	"github.com/daconjurer/ctenex/internal/market"
	"github.com/daconjurer/ctenex/internal/store"
)

func newTestPipeline(st store.Store) *Pipeline {
	return New(
		engine.NewEmaEngine(2, 4),
		engine.NewSpreadAnalyzer(2),
		engine.NewSynthesizer(engine.DefaultScoringParams()),
		st,
		nil,
		zerolog.Nop(),
	)
}

func runTicks(t *testing.T, p *Pipeline, ticks []market.Tick) {
	t.Helper()
	in := make(chan market.Tick, len(ticks))
	for _, tick := range ticks {
		in <- tick
	}
	close(in)
	if err := p.Run(context.Background(), in); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestPipelineProducesAllStreams(t *testing.T) {
	st := store.NewMemory()
	p := newTestPipeline(st)
	now := time.Now()

	ticks := make([]market.Tick, 0, 5)
	for i, price := range []float64{10, 11, 12, 13, 14} {
		ticks = append(ticks, market.Tick{
			Instrument: "UK-BL-MAR-25",
			Price:      price,
			Volume:     1,
			BestBid:    market.Float64(price - 0.1),
			BestAsk:    market.Float64(price + 0.1),
			Ts:         now.Add(time.Duration(i) * time.Second),
		})
	}
	runTicks(t, p, ticks)

	if n := len(st.Moments()); n != 5 {
		t.Fatalf("expected 5 moments, got %d", n)
	}
	if n := len(st.Spreads()); n != 5 {
		t.Fatalf("expected 5 spread rows, got %d", n)
	}
	if n := len(st.Signals()); n != 5 {
		t.Fatalf("expected 5 signals, got %d", n)
	}

	emas := st.Emas()
	if len(emas) != 5 {
		t.Fatalf("expected 5 ema rows, got %d", len(emas))
	}
	// Arrival order is preserved per instrument and the recurrence matches
	// a standalone engine replay.
	ref := engine.NewEmaEngine(2, 4)
	for i, tick := range ticks {
		expected, err := ref.Update(tick.Instrument, tick.Price, tick.Ts)
		if err != nil {
			t.Fatalf("reference update error: %v", err)
		}
		if emas[i].EmaShort != expected.EmaShort || emas[i].EmaLong != expected.EmaLong {
			t.Fatalf("row %d diverged from replay: %+v vs %+v", i, emas[i], expected)
		}
		if emas[i].Momentum != emas[i].EmaShort-emas[i].EmaLong {
			t.Fatalf("row %d momentum mismatch", i)
		}
	}

	for _, sig := range st.Signals() {
		if sig.Strength < 0 || sig.Strength > 100 {
			t.Fatalf("signal strength out of bounds: %.2f", sig.Strength)
		}
	}
}

func TestPipelineSkipsInvalidTicks(t *testing.T) {
	st := store.NewMemory()
	p := newTestPipeline(st)
	now := time.Now()

	runTicks(t, p, []market.Tick{
		{Instrument: "X", Price: 10, Volume: 1, Ts: now},
		{Instrument: "X", Price: -1, Volume: 1, Ts: now.Add(time.Second)},
		{Instrument: "", Price: 10, Volume: 1, Ts: now.Add(2 * time.Second)},
		{Instrument: "X", Price: 11, Volume: 1, BestBid: market.Float64(math.NaN()), BestAsk: market.Float64(11.1), Ts: now.Add(3 * time.Second)},
		{Instrument: "X", Price: 12, Volume: 1, Ts: now.Add(4 * time.Second)},
	})

	if n := len(st.Moments()); n != 2 {
		t.Fatalf("expected 2 valid moments, got %d", n)
	}
	// The rejected price must not have advanced the recurrence.
	emas := st.Emas()
	kShort := 2.0 / 3.0
	expected := 12*kShort + 10*(1-kShort)
	if emas[1].EmaShort != expected {
		t.Fatalf("ema advanced by invalid tick: got %.6f, expected %.6f", emas[1].EmaShort, expected)
	}
}

func TestPipelineFlagsCrossedBook(t *testing.T) {
	st := store.NewMemory()
	p := newTestPipeline(st)

	runTicks(t, p, []market.Tick{{
		Instrument: "X",
		Price:      100.25,
		Volume:     1,
		BestBid:    market.Float64(100.50),
		BestAsk:    market.Float64(100.00),
		Ts:         time.Now(),
	}})

	spreads := st.Spreads()
	if len(spreads) != 1 {
		t.Fatalf("expected 1 spread row, got %d", len(spreads))
	}
	if !spreads[0].Crossed {
		t.Fatalf("expected crossed flag on recorded row")
	}
	if spreads[0].Spread == nil || *spreads[0].Spread != -0.50 {
		t.Fatalf("expected spread recorded as -0.50, got %v", spreads[0].Spread)
	}
}

func TestPipelineInstrumentsProcessedIndependently(t *testing.T) {
	st := store.NewMemory()
	p := newTestPipeline(st)
	now := time.Now()

	var ticks []market.Tick
	for i := 0; i < 20; i++ {
		ticks = append(ticks,
			market.Tick{Instrument: "A", Price: 10 + float64(i), Volume: 1, Ts: now.Add(time.Duration(i) * time.Second)},
			market.Tick{Instrument: "B", Price: 500 - float64(i), Volume: 1, Ts: now.Add(time.Duration(i) * time.Second)},
		)
	}
	runTicks(t, p, ticks)

	var lastA, lastB time.Time
	for _, calc := range st.Emas() {
		switch calc.Instrument {
		case "A":
			if calc.Ts.Before(lastA) {
				t.Fatalf("instrument A rows out of order")
			}
			lastA = calc.Ts
		case "B":
			if calc.Ts.Before(lastB) {
				t.Fatalf("instrument B rows out of order")
			}
			lastB = calc.Ts
		}
	}
	if len(st.Emas()) != 40 {
		t.Fatalf("expected 40 ema rows, got %d", len(st.Emas()))
	}
}

func TestPipelineResumesEmaState(t *testing.T) {
	st := store.NewMemory()
	if err := st.SaveEma(market.EmaCalculation{Instrument: "X", EmaShort: 50, EmaLong: 48, Ts: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("SaveEma returned error: %v", err)
	}

	p := newTestPipeline(st)
	runTicks(t, p, []market.Tick{{Instrument: "X", Price: 60, Volume: 1, Ts: time.Now()}})

	emas := st.Emas()
	if len(emas) != 2 {
		t.Fatalf("expected seeded row plus one update, got %d", len(emas))
	}
	kShort := 2.0 / 3.0
	expShort := 60*kShort + 50*(1-kShort)
	if emas[1].EmaShort != expShort {
		t.Fatalf("expected recurrence continued from persisted state, got %.6f want %.6f", emas[1].EmaShort, expShort)
	}
}

type failingStore struct {
	*store.Memory
	err error
}

func (f *failingStore) SaveEma(market.EmaCalculation) error { return f.err }

func TestPipelineSurfacesStorageErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	st := &failingStore{Memory: store.NewMemory(), err: boom}
	p := New(
		engine.NewEmaEngine(2, 4),
		engine.NewSpreadAnalyzer(2),
		engine.NewSynthesizer(engine.DefaultScoringParams()),
		st,
		nil,
		zerolog.Nop(),
	)

	in := make(chan market.Tick, 1)
	in <- market.Tick{Instrument: "X", Price: 10, Volume: 1, Ts: time.Now()}
	close(in)

	if err := p.Run(context.Background(), in); !errors.Is(err, boom) {
		t.Fatalf("expected storage error surfaced unmodified, got %v", err)
	}
}
