// Binary signald runs the live signal engine: feed in, four append-only
// record streams out.
package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/daconjurer/ctenex/internal/cache"
	"github.com/daconjurer/ctenex/internal/config"
	"github.com/daconjurer/ctenex/internal/engine"
	"github.com/daconjurer/ctenex/internal/feed"
	"github.com/daconjurer/ctenex/internal/market"
	"github.com/daconjurer/ctenex/internal/metrics"
	"github.com/daconjurer/ctenex/internal/pipeline"
	"github.com/daconjurer/ctenex/internal/store"
	"github.com/daconjurer/ctenex/internal/util"
)

const defaultConfigPath = "config.yaml"

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("SIGNALD_CONFIG")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	// Registered before the store's Close so it runs after the drain.
	var failed bool
	defer func() {
		if failed {
			os.Exit(1)
		}
	}()

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := buildStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build store")
	}
	defer st.Close()

	var latest pipeline.LatestCache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSecs)*time.Second, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, running without cache")
		} else {
			defer redisCache.Close()
			latest = redisCache
		}
	}

	marketFeed := feed.NewFeed(cfg.Feed.Provider, cfg.Feed.Instruments, log,
		feed.WithExchangeBaseURL(cfg.Feed.Exchange.BaseURL),
		feed.WithSampleInterval(time.Duration(cfg.Feed.Exchange.SampleIntervalMs)*time.Millisecond),
		feed.WithBaseDrift(time.Duration(cfg.Feed.Exchange.BaseDriftMs)*time.Millisecond),
	)
	ticks := make(chan market.Tick, 1024)
	go func() {
		if err := marketFeed.Run(ctx, ticks); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
		}
		close(ticks)
	}()

	scoring := scoringParams(cfg.Scoring)
	emas := engine.NewEmaEngine(cfg.Engine.ShortPeriod, cfg.Engine.LongPeriod)
	analyzer := engine.NewSpreadAnalyzer(scoring.Precision)
	synth := engine.NewSynthesizer(scoring)

	pipe := pipeline.New(emas, analyzer, synth, st, latest, log)
	log.Info().Str("provider", cfg.Feed.Provider).Strs("instruments", cfg.Feed.Instruments).Msg("signal engine started")
	// Fatal would skip the deferred store close and drop buffered batches, so
	// a pipeline failure falls through to the defers and exits afterwards.
	runErr := pipe.Run(ctx, ticks)
	if runErr != nil && ctx.Err() == nil {
		log.Error().Err(runErr).Msg("pipeline stopped")
		failed = true
		return
	}
	log.Info().Msg("shutting down")
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

// buildStore prefers postgres, falls back to JSONL files, and finally to the
// in-memory store for throwaway runs.
func buildStore(cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.Postgres.Host != "" {
		return store.NewPostgres(cfg.Postgres.ConnectionString(), log)
	}
	if cfg.JSONL.Dir != "" {
		log.Info().Str("dir", cfg.JSONL.Dir).Msg("postgres not configured, using jsonl store")
		return store.NewJSONL(cfg.JSONL.Dir)
	}
	log.Warn().Msg("no store configured, records kept in memory only")
	return store.NewMemory(), nil
}
