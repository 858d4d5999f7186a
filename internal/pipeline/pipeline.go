// Package pipeline wires ticks through the moment recorder, EMA engine,
// spread analyzer, and signal synthesizer, one ordered stream per instrument.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/daconjurer/ctenex/internal/engine"
	"github.com/daconjurer/ctenex/internal/market"
	"github.com/daconjurer/ctenex/internal/metrics"
	"github.com/daconjurer/ctenex/internal/store"
)

const instrumentBuffer = 256

// LatestCache mirrors the advisory cache surface the pipeline publishes to.
// A nil cache disables publishing.
type LatestCache interface {
	SetLatestSignal(ctx context.Context, sig market.TradingSignal) error
	SetLatestMoment(ctx context.Context, m market.PriceMoment) error
}

// Pipeline fans ticks out to one worker per instrument. Ticks for the same
// instrument are processed in arrival order because the EMA recurrence is
// order-dependent; different instruments proceed fully in parallel. Sends to
// a busy worker block rather than drop: a lost price moment corrupts the
// recurrence irrecoverably.
type Pipeline struct {
	recorder *engine.MomentRecorder
	emas     *engine.EmaEngine
	spreads  *engine.SpreadAnalyzer
	synth    *engine.Synthesizer
	store    store.Store
	cache    LatestCache
	log      zerolog.Logger

	mu      sync.Mutex
	errOnce sync.Once
	err     error
}

// New assembles a pipeline. cache may be nil.
func New(emas *engine.EmaEngine, spreads *engine.SpreadAnalyzer, synth *engine.Synthesizer, st store.Store, cache LatestCache, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		recorder: engine.NewMomentRecorder(),
		emas:     emas,
		spreads:  spreads,
		synth:    synth,
		store:    st,
		cache:    cache,
		log:      log,
	}
}

// Run consumes ticks until the context is canceled or the input channel
// closes, then drains every instrument worker. The first storage error stops
// the run and is returned unmodified; the pipeline never retries writes.
func (p *Pipeline) Run(ctx context.Context, ticks <-chan market.Tick) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := make(map[string]chan market.Tick)
	var wg sync.WaitGroup

	drain := func() {
		for _, ch := range workers {
			close(ch)
		}
		wg.Wait()
	}

	for {
		select {
		case <-runCtx.Done():
			drain()
			if err := p.firstErr(); err != nil {
				return err
			}
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				drain()
				return p.firstErr()
			}
			if err := p.validate(tick); err != nil {
				metrics.InvalidTicksTotal.WithLabelValues(tick.Instrument).Inc()
				p.log.Warn().Err(err).Str("instrument", tick.Instrument).Msg("tick rejected")
				continue
			}
			ch := workers[tick.Instrument]
			if ch == nil {
				ch = make(chan market.Tick, instrumentBuffer)
				workers[tick.Instrument] = ch
				p.resume(tick.Instrument)
				wg.Add(1)
				go p.worker(runCtx, cancel, tick.Instrument, ch, &wg)
			}
			select {
			case ch <- tick:
			case <-runCtx.Done():
			}
		}
	}
}

func (p *Pipeline) validate(tick market.Tick) error {
	_, err := p.recorder.Record(tick)
	return err
}

// resume restores EMA state from the last persisted calculation when the
// store supports it, so a restart continues the recurrence instead of
// reseeding from the next price.
func (p *Pipeline) resume(instrument string) {
	resumer, ok := p.store.(store.EmaResumer)
	if !ok || p.emas.Tracked(instrument) {
		return
	}
	last, found, err := resumer.LatestEma(instrument)
	if err != nil {
		p.log.Warn().Err(err).Str("instrument", instrument).Msg("ema resume lookup failed")
		return
	}
	if found {
		p.emas.Resume(instrument, last.EmaShort, last.EmaLong)
		p.log.Info().Str("instrument", instrument).Float64("ema_short", last.EmaShort).Float64("ema_long", last.EmaLong).Msg("resumed ema state")
	}
}

func (p *Pipeline) worker(ctx context.Context, cancel context.CancelFunc, instrument string, ticks <-chan market.Tick, wg *sync.WaitGroup) {
	defer wg.Done()
	for tick := range ticks {
		if err := p.process(ctx, tick); err != nil {
			p.recordErr(err)
			cancel()
			return
		}
	}
}

// process runs one tick through the full transform. The worker is the single
// writer for its instrument, so EMA updates here are never concurrent.
func (p *Pipeline) process(ctx context.Context, tick market.Tick) error {
	metrics.TicksTotal.WithLabelValues(tick.Instrument).Inc()

	moment, err := p.recorder.Record(tick)
	if err != nil {
		metrics.InvalidTicksTotal.WithLabelValues(tick.Instrument).Inc()
		p.log.Warn().Err(err).Str("instrument", tick.Instrument).Msg("tick rejected")
		return nil
	}
	if err := p.store.SaveMoment(moment); err != nil {
		metrics.PersistErrorsTotal.WithLabelValues("price_moments").Inc()
		return err
	}

	calc, err := p.emas.Update(tick.Instrument, tick.Price, tick.Ts)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidPrice) {
			metrics.InvalidTicksTotal.WithLabelValues(tick.Instrument).Inc()
			p.log.Warn().Err(err).Str("instrument", tick.Instrument).Msg("price rejected by ema engine")
			return nil
		}
		return err
	}
	if err := p.store.SaveEma(calc); err != nil {
		metrics.PersistErrorsTotal.WithLabelValues("ema_calculations").Inc()
		return err
	}

	var volume *float64
	if tick.Volume > 0 {
		volume = market.Float64(tick.Volume)
	}
	analysis := p.spreads.Analyze(tick.Instrument, tick.BestBid, tick.BestAsk, volume, tick.Ts)
	if analysis.Crossed {
		metrics.CrossedBooksTotal.WithLabelValues(tick.Instrument).Inc()
		p.log.Warn().Str("instrument", tick.Instrument).Float64("spread", *analysis.Spread).Msg("crossed book recorded")
	}
	if err := p.store.SaveSpread(analysis); err != nil {
		metrics.PersistErrorsTotal.WithLabelValues("spread_analysis").Inc()
		return err
	}

	sig := p.synth.Synthesize(tick.Instrument, tick.Price, calc.Momentum, analysis.Spread, analysis.SpreadPercentage, tick.Ts)
	if err := p.store.SaveSignal(sig); err != nil {
		metrics.PersistErrorsTotal.WithLabelValues("trading_signals").Inc()
		return err
	}
	metrics.SignalsTotal.WithLabelValues(tick.Instrument, string(sig.Action)).Inc()

	if p.cache != nil {
		if err := p.cache.SetLatestMoment(ctx, moment); err != nil {
			p.log.Warn().Err(err).Str("instrument", tick.Instrument).Msg("cache moment failed")
		}
		if err := p.cache.SetLatestSignal(ctx, sig); err != nil {
			p.log.Warn().Err(err).Str("instrument", tick.Instrument).Msg("cache signal failed")
		}
	}
	return nil
}

func (p *Pipeline) recordErr(err error) {
	p.errOnce.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
	})
}

func (p *Pipeline) firstErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
