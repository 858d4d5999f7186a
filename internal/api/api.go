// Package api serves a read-only HTTP view over the persisted analytics
// tables for dashboards and strategy collaborators.
package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/daconjurer/ctenex/internal/market"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signal_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"endpoint"},
	)
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler exposes the read endpoints over an existing database handle.
type Handler struct {
	DB *sql.DB
}

// NewHandler connects to postgres with read-tuned pool settings.
func NewHandler(dsn string) (*Handler, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Handler{DB: db}, nil
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", h.Health)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/signals/recent", h.RecentSignals)
		v1.GET("/moments", h.Moments)
	}
	return router
}

func observe(endpoint, method string) func() {
	start := time.Now()
	return func() {
		requestsTotal.WithLabelValues(endpoint, method).Inc()
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// Health reports service liveness and database reachability.
func (h *Handler) Health(c *gin.Context) {
	defer observe("/health", c.Request.Method)()
	status := "ok"
	code := http.StatusOK
	if err := h.DB.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "service": "signal-api"})
}

// RecentSignals returns the newest trading signals, optionally filtered by
// instrument, newest first.
func (h *Handler) RecentSignals(c *gin.Context) {
	defer observe("/api/v1/signals/recent", c.Request.Method)()

	limit := parseLimit(c.Query("limit"))
	instrument := c.Query("instrument")

	rows, err := h.DB.Query(`
		SELECT id, instrument, timestamp, price, momentum, spread, spread_percentage, signal_strength, recommended_action
		FROM trading_signals
		WHERE ($1 = '' OR instrument = $1)
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`, instrument, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	defer rows.Close()

	signals := make([]market.TradingSignal, 0, limit)
	for rows.Next() {
		var sig market.TradingSignal
		var spread, spreadPct sql.NullFloat64
		var action string
		if err := rows.Scan(&sig.ID, &sig.Instrument, &sig.Ts, &sig.Price, &sig.Momentum,
			&spread, &spreadPct, &sig.Strength, &action); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
			return
		}
		sig.Action = market.Action(action)
		if spread.Valid {
			sig.Spread = market.Float64(spread.Float64)
		}
		if spreadPct.Valid {
			sig.SpreadPercentage = market.Float64(spreadPct.Float64)
		}
		signals = append(signals, sig)
	}
	c.JSON(http.StatusOK, signals)
}

// Moments returns price moments for an instrument within a time range.
func (h *Handler) Moments(c *gin.Context) {
	defer observe("/api/v1/moments", c.Request.Method)()

	instrument := c.Query("instrument")
	if instrument == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instrument is required"})
		return
	}
	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit := parseLimit(c.Query("limit"))

	rows, err := h.DB.Query(`
		SELECT id, instrument, timestamp, price, volume, best_bid, best_ask
		FROM price_moments
		WHERE instrument = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC, id DESC
		LIMIT $4`, instrument, from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	defer rows.Close()

	moments := make([]market.PriceMoment, 0, limit)
	for rows.Next() {
		var m market.PriceMoment
		var bid, ask sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.Instrument, &m.Ts, &m.Price, &m.Volume, &bid, &ask); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
			return
		}
		if bid.Valid {
			m.BestBid = market.Float64(bid.Float64)
		}
		if ask.Valid {
			m.BestAsk = market.Float64(ask.Float64)
		}
		moments = append(moments, m)
	}
	c.JSON(http.StatusOK, moments)
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.Add(-time.Hour)
	var err error
	if fromRaw != "" {
		if from, err = time.Parse(time.RFC3339, fromRaw); err != nil {
			return from, to, err
		}
	}
	if toRaw != "" {
		if to, err = time.Parse(time.RFC3339, toRaw); err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}
