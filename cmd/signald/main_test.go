package main

import (
	"testing"

	"github.com/daconjurer/ctenex/internal/config"
	"github.com/daconjurer/ctenex/internal/engine"
)

func TestScoringParamsOmittedKeysUseDefaults(t *testing.T) {
	params := scoringParams(config.Scoring{})
	if params != engine.DefaultScoringParams() {
		t.Fatalf("expected engine defaults for empty scoring config, got %+v", params)
	}
}

func TestScoringParamsExplicitZeroHonored(t *testing.T) {
	zero := 0.0
	zeroPlaces := 0
	params := scoringParams(config.Scoring{
		SpreadWeight:  &zero,
		SellThreshold: &zero,
		Precision:     &zeroPlaces,
	})
	if params.SpreadWeight != 0 || params.SellThreshold != 0 || params.Precision != 0 {
		t.Fatalf("explicit zeros must survive resolution: %+v", params)
	}
	if params.MomentumWeight != engine.DefaultScoringParams().MomentumWeight {
		t.Fatalf("unset momentum weight must keep its default, got %v", params.MomentumWeight)
	}
}
