// Package cache keeps the latest signal and price moment per instrument in
// Redis so bot consumers can read current state without touching postgres.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/daconjurer/ctenex/internal/market"
)

const defaultTTL = 5 * time.Minute

// Redis is a latest-value cache. Entries expire so stale instruments age
// out; the cache is advisory and writes never gate the pipeline.
type Redis struct {
	client *redis.Client
	log    zerolog.Logger
	ttl    time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(addr, password string, db int, ttl time.Duration, log zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	log.Info().Str("addr", addr).Dur("ttl", ttl).Msg("redis cache connected")
	return &Redis{client: client, log: log, ttl: ttl}, nil
}

func signalKey(instrument string) string { return "signal:latest:" + instrument }
func momentKey(instrument string) string { return "moment:latest:" + instrument }

// SetLatestSignal stores the most recent trading signal for an instrument.
func (r *Redis) SetLatestSignal(ctx context.Context, sig market.TradingSignal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	return r.client.Set(ctx, signalKey(sig.Instrument), data, r.ttl).Err()
}

// GetLatestSignal returns the cached signal for an instrument; ok is false
// when no entry exists.
func (r *Redis) GetLatestSignal(ctx context.Context, instrument string) (market.TradingSignal, bool, error) {
	var sig market.TradingSignal
	data, err := r.client.Get(ctx, signalKey(instrument)).Bytes()
	if err == redis.Nil {
		return sig, false, nil
	}
	if err != nil {
		return sig, false, fmt.Errorf("get signal: %w", err)
	}
	if err := json.Unmarshal(data, &sig); err != nil {
		return sig, false, fmt.Errorf("unmarshal signal: %w", err)
	}
	return sig, true, nil
}

// SetLatestMoment stores the most recent price moment for an instrument.
func (r *Redis) SetLatestMoment(ctx context.Context, m market.PriceMoment) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal moment: %w", err)
	}
	return r.client.Set(ctx, momentKey(m.Instrument), data, r.ttl).Err()
}

// GetLatestMoment returns the cached price moment for an instrument; ok is
// false when no entry exists.
func (r *Redis) GetLatestMoment(ctx context.Context, instrument string) (market.PriceMoment, bool, error) {
	var m market.PriceMoment
	data, err := r.client.Get(ctx, momentKey(instrument)).Bytes()
	if err == redis.Nil {
		return m, false, nil
	}
	if err != nil {
		return m, false, fmt.Errorf("get moment: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, false, fmt.Errorf("unmarshal moment: %w", err)
	}
	return m, true, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error { return r.client.Close() }
