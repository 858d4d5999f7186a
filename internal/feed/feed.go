// Package feed hosts connectors that deliver normalized market ticks to the
// signal pipeline.
package feed

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/daconjurer/ctenex/internal/market"
)

const (
	// ProviderStub emits deterministic synthetic ticks (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance streams live trades and book tops from Binance public websockets.
	ProviderBinance = "binance"
	// ProviderExchange polls a ctenex exchange REST API and samples its order flow.
	ProviderExchange = "exchange"
)

// Feed represents a pluggable market data stream implementation.
type Feed struct {
	provider        string
	instruments     []string
	log             zerolog.Logger
	sampleInterval  time.Duration
	baseDrift       time.Duration
	exchangeBaseURL string
	mu              sync.RWMutex
	books           map[string]bookTop
}

type bookTop struct {
	bid float64
	ask float64
}

// Option configures Feed construction parameters.
type Option func(*Feed)

const (
	defaultSampleInterval = time.Second
	defaultBaseDrift      = 1100 * time.Millisecond
)

// WithSampleInterval overrides the order-sampling window for the exchange poller.
func WithSampleInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.sampleInterval = d
		}
	}
}

// WithBaseDrift overrides the lag between wall-clock time and the sampled
// window, giving the exchange time to settle order writes.
func WithBaseDrift(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.baseDrift = d
		}
	}
}

// WithExchangeBaseURL points the exchange poller at an API root.
func WithExchangeBaseURL(baseURL string) Option {
	return func(f *Feed) {
		if baseURL != "" {
			f.exchangeBaseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, instruments []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:       strings.ToLower(provider),
		log:            log,
		sampleInterval: defaultSampleInterval,
		baseDrift:      defaultBaseDrift,
		books:          make(map[string]bookTop),
	}
	f.setInstruments(instruments)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) setInstruments(instruments []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]struct{}, len(instruments))
	for _, in := range instruments {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		unique[in] = struct{}{}
	}
	f.instruments = f.instruments[:0]
	for in := range unique {
		f.instruments = append(f.instruments, in)
	}
	sort.Strings(f.instruments)
}

func (f *Feed) snapshotInstruments() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.instruments))
	copy(out, f.instruments)
	return out
}

func (f *Feed) setBook(instrument string, bid, ask float64) {
	f.mu.Lock()
	f.books[instrument] = bookTop{bid: bid, ask: ask}
	f.mu.Unlock()
}

func (f *Feed) book(instrument string) (bookTop, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	top, ok := f.books[instrument]
	return top, ok
}

// Run pushes ticks onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- market.Tick) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, out)
	case ProviderExchange:
		return f.runExchange(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

func (f *Feed) runStub(ctx context.Context, out chan<- market.Tick) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var px float64 = 100.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			px += 0.1
			for _, in := range f.snapshotInstruments() {
				tick := market.Tick{
					Instrument: in,
					Price:      px,
					Volume:     1,
					BestBid:    market.Float64(px - 0.05),
					BestAsk:    market.Float64(px + 0.05),
					Ts:         ts,
				}
				select {
				case out <- tick:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
