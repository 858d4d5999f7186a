// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed describes where ticks come from and which instruments to track.
type Feed struct {
	Provider    string   `yaml:"provider"`
	Instruments []string `yaml:"instruments"`
	Exchange    Exchange `yaml:"exchange"`
}

// Exchange configures the REST order-sampling poller against a ctenex exchange API.
type Exchange struct {
	BaseURL          string `yaml:"base_url"`
	SampleIntervalMs int    `yaml:"sample_interval_ms"`
	BaseDriftMs      int    `yaml:"base_drift_ms"`
}

// Engine holds the EMA recurrence periods.
type Engine struct {
	ShortPeriod int `yaml:"short_period"`
	LongPeriod  int `yaml:"long_period"`
}

// Scoring groups the synthesizer weights and action thresholds. Fields are
// pointers so an omitted key keeps the engine default while an explicit zero
// is honored (spread_weight: 0 disables the liquidity penalty).
type Scoring struct {
	MomentumWeight *float64 `yaml:"momentum_weight"`
	SpreadWeight   *float64 `yaml:"spread_weight"`
	BuyThreshold   *float64 `yaml:"buy_threshold"`
	SellThreshold  *float64 `yaml:"sell_threshold"`
	Precision      *int     `yaml:"precision"`
}

// Postgres describes the append-only analytics database connection.
type Postgres struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// ConnectionString renders the lib/pq DSN.
func (p Postgres) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Redis configures the latest-value cache consumed by bot collaborators.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLSecs  int    `yaml:"ttl_secs"`
}

// JSONL points the file-backed store at its output directory.
type JSONL struct {
	Dir string `yaml:"dir"`
}

// API configures the read-side HTTP server.
type API struct {
	Addr string `yaml:"addr"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Feed     Feed     `yaml:"feed"`
	Engine   Engine   `yaml:"engine"`
	Scoring  Scoring  `yaml:"scoring"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	JSONL    JSONL    `yaml:"jsonl"`
	API      API      `yaml:"api"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
