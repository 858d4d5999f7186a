package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/daconjurer/ctenex/internal/market"
)

func TestRecordValidTick(t *testing.T) {
	recorder := NewMomentRecorder()
	ts := time.Now()
	tick := market.Tick{
		Instrument: "UK-BL-MAR-25",
		Price:      47.25,
		Volume:     100,
		BestBid:    market.Float64(47.20),
		BestAsk:    market.Float64(47.30),
		Ts:         ts,
	}

	moment, err := recorder.Record(tick)
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if moment.ID != 0 {
		t.Fatalf("expected zero id before persistence, got %d", moment.ID)
	}
	if moment.Instrument != "UK-BL-MAR-25" || moment.Price != 47.25 || moment.Volume != 100 {
		t.Fatalf("unexpected moment: %+v", moment)
	}
	if moment.BestBid == nil || *moment.BestBid != 47.20 || moment.BestAsk == nil || *moment.BestAsk != 47.30 {
		t.Fatalf("book sides not carried through: %+v", moment)
	}
	if !moment.Ts.Equal(ts) {
		t.Fatalf("timestamp not carried through")
	}
}

func TestRecordRejectsInvalidTicks(t *testing.T) {
	recorder := NewMomentRecorder()
	ts := time.Now()

	cases := []struct {
		name string
		tick market.Tick
	}{
		{"missing instrument", market.Tick{Price: 10, Volume: 1, Ts: ts}},
		{"missing timestamp", market.Tick{Instrument: "X", Price: 10, Volume: 1}},
		{"zero price", market.Tick{Instrument: "X", Price: 0, Volume: 1, Ts: ts}},
		{"negative price", market.Tick{Instrument: "X", Price: -1, Volume: 1, Ts: ts}},
		{"negative volume", market.Tick{Instrument: "X", Price: 10, Volume: -1, Ts: ts}},
		{"negative bid", market.Tick{Instrument: "X", Price: 10, Volume: 1, BestBid: market.Float64(-1), Ts: ts}},
		{"negative ask", market.Tick{Instrument: "X", Price: 10, Volume: 1, BestAsk: market.Float64(-1), Ts: ts}},
		{"nan price", market.Tick{Instrument: "X", Price: math.NaN(), Volume: 1, Ts: ts}},
		{"nan volume", market.Tick{Instrument: "X", Price: 10, Volume: math.NaN(), Ts: ts}},
		{"nan bid", market.Tick{Instrument: "X", Price: 10, Volume: 1, BestBid: market.Float64(math.NaN()), Ts: ts}},
		{"nan ask", market.Tick{Instrument: "X", Price: 10, Volume: 1, BestAsk: market.Float64(math.NaN()), Ts: ts}},
		{"infinite bid", market.Tick{Instrument: "X", Price: 10, Volume: 1, BestBid: market.Float64(math.Inf(1)), Ts: ts}},
		{"infinite ask", market.Tick{Instrument: "X", Price: 10, Volume: 1, BestAsk: market.Float64(math.Inf(1)), Ts: ts}},
		{"infinite volume", market.Tick{Instrument: "X", Price: 10, Volume: math.Inf(1), Ts: ts}},
	}
	for _, tc := range cases {
		if _, err := recorder.Record(tc.tick); !errors.Is(err, ErrInvalidTick) {
			t.Fatalf("%s: expected ErrInvalidTick, got %v", tc.name, err)
		}
	}
}

func TestRecordDoesNotDeduplicate(t *testing.T) {
	recorder := NewMomentRecorder()
	tick := market.Tick{Instrument: "X", Price: 10, Volume: 1, Ts: time.Now()}

	first, err := recorder.Record(tick)
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	second, err := recorder.Record(tick)
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	// Append-only: the engine has no dedup responsibility, both records persist.
	if first.Instrument != second.Instrument || first.Price != second.Price {
		t.Fatalf("identical ticks must produce identical records")
	}
}
