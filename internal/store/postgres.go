package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/daconjurer/ctenex/internal/market"
)

const (
	batchSize    = 100
	batchTimeout = 5 * time.Second
)

// Postgres persists the four append-only analytics tables. Writes are
// buffered per stream and flushed in a single transaction when a buffer
// fills or the flush ticker fires, so a lagging database backpressures the
// pipeline instead of dropping records.
type Postgres struct {
	db     *sql.DB
	log    zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	moments []market.PriceMoment
	emas    []market.EmaCalculation
	spreads []market.SpreadAnalysis
	signals []market.TradingSignal
}

// NewPostgres connects, creates the schema if needed, and starts the
// background flush loop.
func NewPostgres(dsn string, log zerolog.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Postgres{
		db:     db,
		log:    log,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if err := s.createTables(); err != nil {
		cancel()
		db.Close()
		return nil, err
	}
	go s.flushLoop(ctx)

	log.Info().Int("batch_size", batchSize).Dur("batch_timeout", batchTimeout).Msg("postgres store initialized")
	return s, nil
}

func (s *Postgres) createTables() error {
	query := `
    CREATE TABLE IF NOT EXISTS price_moments (
        id BIGSERIAL PRIMARY KEY,
        instrument VARCHAR(50) NOT NULL,
        timestamp TIMESTAMPTZ NOT NULL,
        price DECIMAL(20, 8) NOT NULL,
        volume DECIMAL(20, 8) NOT NULL,
        best_bid DECIMAL(20, 8),
        best_ask DECIMAL(20, 8)
    );
    CREATE INDEX IF NOT EXISTS idx_price_moments_instrument_time
    ON price_moments(instrument, timestamp);

    CREATE TABLE IF NOT EXISTS ema_calculations (
        id BIGSERIAL PRIMARY KEY,
        instrument VARCHAR(50) NOT NULL,
        timestamp TIMESTAMPTZ NOT NULL,
        price DECIMAL(20, 8) NOT NULL,
        ema_short DECIMAL(20, 8) NOT NULL,
        ema_long DECIMAL(20, 8) NOT NULL,
        momentum DECIMAL(20, 8) NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_ema_calculations_instrument_time
    ON ema_calculations(instrument, timestamp);

    CREATE TABLE IF NOT EXISTS spread_analysis (
        id BIGSERIAL PRIMARY KEY,
        instrument VARCHAR(50) NOT NULL,
        timestamp TIMESTAMPTZ NOT NULL,
        best_bid DECIMAL(20, 8),
        best_ask DECIMAL(20, 8),
        spread DECIMAL(20, 8),
        spread_percentage DECIMAL(10, 2),
        volume DECIMAL(20, 8),
        crossed BOOLEAN NOT NULL DEFAULT FALSE
    );
    CREATE INDEX IF NOT EXISTS idx_spread_analysis_instrument_time
    ON spread_analysis(instrument, timestamp);

    CREATE TABLE IF NOT EXISTS trading_signals (
        id BIGSERIAL PRIMARY KEY,
        instrument VARCHAR(50) NOT NULL,
        timestamp TIMESTAMPTZ NOT NULL,
        price DECIMAL(20, 8) NOT NULL,
        momentum DECIMAL(20, 8) NOT NULL,
        spread DECIMAL(20, 8),
        spread_percentage DECIMAL(10, 2),
        signal_strength DECIMAL(10, 2) NOT NULL,
        recommended_action VARCHAR(10) NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_trading_signals_instrument_time
    ON trading_signals(instrument, timestamp);`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// SaveMoment buffers a price moment, flushing if the buffer is full.
func (s *Postgres) SaveMoment(m market.PriceMoment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moments = append(s.moments, m)
	if len(s.moments) >= batchSize {
		return s.flushLocked()
	}
	return nil
}

// SaveEma buffers an EMA calculation, flushing if the buffer is full.
func (s *Postgres) SaveEma(c market.EmaCalculation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emas = append(s.emas, c)
	if len(s.emas) >= batchSize {
		return s.flushLocked()
	}
	return nil
}

// SaveSpread buffers a spread analysis, flushing if the buffer is full.
func (s *Postgres) SaveSpread(sp market.SpreadAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spreads = append(s.spreads, sp)
	if len(s.spreads) >= batchSize {
		return s.flushLocked()
	}
	return nil
}

// SaveSignal buffers a trading signal, flushing if the buffer is full.
func (s *Postgres) SaveSignal(sig market.TradingSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	if len(s.signals) >= batchSize {
		return s.flushLocked()
	}
	return nil
}

// Flush writes every buffered record to the database.
func (s *Postgres) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Postgres) flushLocked() error {
	total := len(s.moments) + len(s.emas) + len(s.spreads) + len(s.signals)
	if total == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := s.insertMoments(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.insertEmas(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.insertSpreads(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.insertSignals(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.log.Debug().Int("records", total).Msg("batch flushed")
	s.moments = s.moments[:0]
	s.emas = s.emas[:0]
	s.spreads = s.spreads[:0]
	s.signals = s.signals[:0]
	return nil
}

func (s *Postgres) insertMoments(tx *sql.Tx) error {
	if len(s.moments) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO price_moments (instrument, timestamp, price, volume, best_bid, best_ask)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("prepare price_moments insert: %w", err)
	}
	defer stmt.Close()
	for _, m := range s.moments {
		if _, err := stmt.Exec(m.Instrument, m.Ts, m.Price, m.Volume, nullable(m.BestBid), nullable(m.BestAsk)); err != nil {
			return fmt.Errorf("insert price_moment: %w", err)
		}
	}
	return nil
}

func (s *Postgres) insertEmas(tx *sql.Tx) error {
	if len(s.emas) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO ema_calculations (instrument, timestamp, price, ema_short, ema_long, momentum)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("prepare ema_calculations insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range s.emas {
		if _, err := stmt.Exec(c.Instrument, c.Ts, c.Price, c.EmaShort, c.EmaLong, c.Momentum); err != nil {
			return fmt.Errorf("insert ema_calculation: %w", err)
		}
	}
	return nil
}

func (s *Postgres) insertSpreads(tx *sql.Tx) error {
	if len(s.spreads) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO spread_analysis (instrument, timestamp, best_bid, best_ask, spread, spread_percentage, volume, crossed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("prepare spread_analysis insert: %w", err)
	}
	defer stmt.Close()
	for _, sp := range s.spreads {
		if _, err := stmt.Exec(sp.Instrument, sp.Ts, nullable(sp.BestBid), nullable(sp.BestAsk),
			nullable(sp.Spread), nullable(sp.SpreadPercentage), nullable(sp.Volume), sp.Crossed); err != nil {
			return fmt.Errorf("insert spread_analysis: %w", err)
		}
	}
	return nil
}

func (s *Postgres) insertSignals(tx *sql.Tx) error {
	if len(s.signals) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO trading_signals (instrument, timestamp, price, momentum, spread, spread_percentage, signal_strength, recommended_action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("prepare trading_signals insert: %w", err)
	}
	defer stmt.Close()
	for _, sig := range s.signals {
		if _, err := stmt.Exec(sig.Instrument, sig.Ts, sig.Price, sig.Momentum,
			nullable(sig.Spread), nullable(sig.SpreadPercentage), sig.Strength, string(sig.Action)); err != nil {
			return fmt.Errorf("insert trading_signal: %w", err)
		}
	}
	return nil
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// LatestEma returns the most recent persisted EMA calculation for an
// instrument, which is the full recoverable engine state after a crash.
func (s *Postgres) LatestEma(instrument string) (market.EmaCalculation, bool, error) {
	var c market.EmaCalculation
	row := s.db.QueryRow(`
		SELECT id, instrument, timestamp, price, ema_short, ema_long, momentum
		FROM ema_calculations
		WHERE instrument = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`, instrument)
	err := row.Scan(&c.ID, &c.Instrument, &c.Ts, &c.Price, &c.EmaShort, &c.EmaLong, &c.Momentum)
	if err == sql.ErrNoRows {
		return c, false, nil
	}
	if err != nil {
		return c, false, fmt.Errorf("query latest ema: %w", err)
	}
	return c, true, nil
}

func (s *Postgres) flushLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(batchTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.log.Error().Err(err).Msg("periodic flush failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the flush loop, writes any buffered records, and closes the
// database connection.
func (s *Postgres) Close() error {
	s.cancel()
	<-s.done
	if err := s.Flush(); err != nil {
		s.log.Error().Err(err).Msg("final flush failed")
	}
	return s.db.Close()
}
