// Binary replay feeds a JSONL tick capture through the engine in order,
// writing the derived records to a fresh JSONL directory. Given the same
// capture and configuration the output is identical on every run.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"os"

	"github.com/daconjurer/ctenex/internal/config"
	"github.com/daconjurer/ctenex/internal/engine"
	"github.com/daconjurer/ctenex/internal/market"
	"github.com/daconjurer/ctenex/internal/store"
	"github.com/daconjurer/ctenex/internal/util"
)

func main() {
	var (
		cfgPath   = flag.String("config", "config.yaml", "path to engine configuration")
		ticksPath = flag.String("ticks", "", "JSONL file of captured ticks, one per line")
		outDir    = flag.String("out", "replay-out", "directory for derived record streams")
	)
	flag.Parse()

	log := util.NewLogger("info")
	if *ticksPath == "" {
		log.Fatal().Msg("-ticks is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *cfgPath).Msg("load config")
	}

	file, err := os.Open(*ticksPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open ticks")
	}
	defer file.Close()

	out, err := store.NewJSONL(*outDir)
	if err != nil {
		log.Fatal().Err(err).Msg("open output store")
	}
	defer out.Close()

	recorder := engine.NewMomentRecorder()
	scoring := scoringParams(cfg.Scoring)
	emas := engine.NewEmaEngine(cfg.Engine.ShortPeriod, cfg.Engine.LongPeriod)
	analyzer := engine.NewSpreadAnalyzer(scoring.Precision)
	synth := engine.NewSynthesizer(scoring)

	var processed, rejected int
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var tick market.Tick
		if err := json.Unmarshal(line, &tick); err != nil {
			log.Warn().Err(err).Msg("skipping malformed tick line")
			rejected++
			continue
		}

		moment, err := recorder.Record(tick)
		if err != nil {
			log.Warn().Err(err).Str("instrument", tick.Instrument).Msg("tick rejected")
			rejected++
			continue
		}
		if err := out.SaveMoment(moment); err != nil {
			log.Fatal().Err(err).Msg("write moment")
		}

		calc, err := emas.Update(tick.Instrument, tick.Price, tick.Ts)
		if err != nil {
			log.Warn().Err(err).Str("instrument", tick.Instrument).Msg("price rejected")
			rejected++
			continue
		}
		if err := out.SaveEma(calc); err != nil {
			log.Fatal().Err(err).Msg("write ema")
		}

		var volume *float64
		if tick.Volume > 0 {
			volume = market.Float64(tick.Volume)
		}
		analysis := analyzer.Analyze(tick.Instrument, tick.BestBid, tick.BestAsk, volume, tick.Ts)
		if err := out.SaveSpread(analysis); err != nil {
			log.Fatal().Err(err).Msg("write spread")
		}

		sig := synth.Synthesize(tick.Instrument, tick.Price, calc.Momentum, analysis.Spread, analysis.SpreadPercentage, tick.Ts)
		if err := out.SaveSignal(sig); err != nil {
			log.Fatal().Err(err).Msg("write signal")
		}
		processed++
	}
	if err := scanner.Err(); err != nil {
		log.Fatal().Err(err).Msg("read ticks")
	}

	log.Info().Int("processed", processed).Int("rejected", rejected).Str("out", *outDir).Msg("replay complete")
}

// scoringParams starts from the engine defaults and applies only the knobs
// the config actually sets, so scoring keys can be omitted or set to an
// explicit zero.
func scoringParams(sc config.Scoring) engine.ScoringParams {
	params := engine.DefaultScoringParams()
	if sc.MomentumWeight != nil {
		params.MomentumWeight = *sc.MomentumWeight
	}
	if sc.SpreadWeight != nil {
		params.SpreadWeight = *sc.SpreadWeight
	}
	if sc.BuyThreshold != nil {
		params.BuyThreshold = *sc.BuyThreshold
	}
	if sc.SellThreshold != nil {
		params.SellThreshold = *sc.SellThreshold
	}
	if sc.Precision != nil {
		params.Precision = *sc.Precision
	}
	return params
}
