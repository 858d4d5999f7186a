package engine

import (
	"testing"
	"time"

	"github.com/daconjurer/ctenex/internal/market"
)

func TestAnalyzeComputesSpread(t *testing.T) {
	analyzer := NewSpreadAnalyzer(2)
	out := analyzer.Analyze("UK-BL-MAR-25", market.Float64(100.00), market.Float64(100.50), market.Float64(12), time.Now())

	if out.Spread == nil || *out.Spread != 0.50 {
		t.Fatalf("expected spread 0.50, got %v", out.Spread)
	}
	if out.SpreadPercentage == nil || *out.SpreadPercentage != 0.50 {
		t.Fatalf("expected spread percentage 0.50, got %v", out.SpreadPercentage)
	}
	if out.Crossed {
		t.Fatalf("expected normal book, got crossed")
	}
	if out.Volume == nil || *out.Volume != 12 {
		t.Fatalf("expected volume carried through, got %v", out.Volume)
	}
}

func TestAnalyzeMissingSideYieldsNils(t *testing.T) {
	analyzer := NewSpreadAnalyzer(2)

	cases := []struct {
		name string
		bid  *float64
		ask  *float64
	}{
		{"no bid", nil, market.Float64(100.5)},
		{"no ask", market.Float64(100.0), nil},
		{"empty book", nil, nil},
	}
	for _, tc := range cases {
		out := analyzer.Analyze("X", tc.bid, tc.ask, nil, time.Now())
		if out.Spread != nil || out.SpreadPercentage != nil {
			t.Fatalf("%s: expected nil spread fields, got %v/%v", tc.name, out.Spread, out.SpreadPercentage)
		}
		if out.Crossed {
			t.Fatalf("%s: incomplete book must not be crossed", tc.name)
		}
	}
}

func TestAnalyzeCrossedBookRecordedAsIs(t *testing.T) {
	analyzer := NewSpreadAnalyzer(2)
	out := analyzer.Analyze("X", market.Float64(100.50), market.Float64(100.00), nil, time.Now())

	if !out.Crossed {
		t.Fatalf("expected crossed flag")
	}
	if out.Spread == nil || *out.Spread != -0.50 {
		t.Fatalf("expected spread recorded as -0.50, got %v", out.Spread)
	}
	if out.SpreadPercentage == nil || *out.SpreadPercentage != -0.50 {
		t.Fatalf("expected spread percentage -0.50, got %v", out.SpreadPercentage)
	}
}

func TestAnalyzeRoundsPercentage(t *testing.T) {
	analyzer := NewSpreadAnalyzer(2)
	// spread 0.334 over midpoint 100.167 is 0.33344%, stored as 0.33.
	out := analyzer.Analyze("X", market.Float64(100.00), market.Float64(100.334), nil, time.Now())
	if out.SpreadPercentage == nil || *out.SpreadPercentage != 0.33 {
		t.Fatalf("expected 0.33, got %v", out.SpreadPercentage)
	}
}

func TestAnalyzeZeroMidpoint(t *testing.T) {
	analyzer := NewSpreadAnalyzer(2)
	out := analyzer.Analyze("X", market.Float64(0), market.Float64(0), nil, time.Now())
	if out.Spread == nil || *out.Spread != 0 {
		t.Fatalf("expected zero spread, got %v", out.Spread)
	}
	if out.SpreadPercentage != nil {
		t.Fatalf("expected nil percentage on zero midpoint, got %v", *out.SpreadPercentage)
	}
}
