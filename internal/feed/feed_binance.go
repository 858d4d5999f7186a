package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/daconjurer/ctenex/internal/market"
)

type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceTrade struct {
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

type binanceBookTicker struct {
	Symbol  string `json:"s"`
	BestBid string `json:"b"`
	BestAsk string `json:"a"`
}

// runBinance subscribes to trade and bookTicker streams. Book tops are held
// per symbol so each trade tick carries the latest observed bid/ask; ticks
// emitted before the first book update leave the sides nil.
func (f *Feed) runBinance(ctx context.Context, out chan<- market.Tick) error {
	instruments := f.snapshotInstruments()
	if len(instruments) == 0 {
		return fmt.Errorf("binance feed requires at least one instrument")
	}

	streams := make([]string, 0, len(instruments)*2)
	for _, in := range instruments {
		streams = append(streams, strings.ToLower(in)+"@trade", strings.ToLower(in)+"@bookTicker")
	}

	url := fmt.Sprintf("wss://stream.binance.com:9443/stream?streams=%s", strings.Join(streams, "/"))
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumeBinanceStream(ctx, url, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("binance feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *Feed) consumeBinanceStream(ctx context.Context, url string, out chan<- market.Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("provider", ProviderBinance).Strs("instruments", f.snapshotInstruments()).Msg("connected market data feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("binance ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env binanceEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode binance message")
			continue
		}

		instrument := parseBinanceInstrument(env.Stream)
		switch {
		case strings.HasSuffix(env.Stream, "@bookTicker"):
			var book binanceBookTicker
			if err := json.Unmarshal(env.Data, &book); err != nil {
				f.log.Warn().Err(err).Msg("failed to decode binance book ticker")
				continue
			}
			bid, bidErr := strconv.ParseFloat(book.BestBid, 64)
			ask, askErr := strconv.ParseFloat(book.BestAsk, 64)
			if bidErr != nil || askErr != nil {
				f.log.Warn().Str("instrument", instrument).Msg("invalid book top from binance")
				continue
			}
			f.setBook(instrument, bid, ask)

		case strings.HasSuffix(env.Stream, "@trade"):
			var trade binanceTrade
			if err := json.Unmarshal(env.Data, &trade); err != nil {
				f.log.Warn().Err(err).Msg("failed to decode binance trade")
				continue
			}
			px, err := strconv.ParseFloat(trade.Price, 64)
			if err != nil {
				f.log.Warn().Err(err).Msg("invalid price from binance")
				continue
			}
			qty, err := strconv.ParseFloat(trade.Quantity, 64)
			if err != nil {
				f.log.Warn().Err(err).Msg("invalid quantity from binance")
				continue
			}
			tick := market.Tick{
				Instrument: instrument,
				Price:      px,
				Volume:     qty,
				Ts:         time.UnixMilli(trade.TradeTime),
			}
			if top, ok := f.book(instrument); ok {
				tick.BestBid = market.Float64(top.bid)
				tick.BestAsk = market.Float64(top.ask)
			}

			select {
			case out <- tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func parseBinanceInstrument(stream string) string {
	parts := strings.Split(stream, "@")
	if len(parts) == 0 || parts[0] == "" {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(parts[0])
}
