// Binary signal-api serves the read-only HTTP view over the analytics tables.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/daconjurer/ctenex/internal/api"
	"github.com/daconjurer/ctenex/internal/config"
	"github.com/daconjurer/ctenex/internal/metrics"
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

	_ = metrics.Serve(cfg.App.MetricsAddr)

	handler, err := api.NewHandler(cfg.Postgres.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer handler.DB.Close()

	addr := cfg.API.Addr
	if addr == "" {
		addr = ":8080"
	}
	log.Info().Str("addr", addr).Msg("signal api listening")
	if err := handler.Router().Run(addr); err != nil {
		log.Fatal().Err(err).Msg("api server stopped")
	}
}
