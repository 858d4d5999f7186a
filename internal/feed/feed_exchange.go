package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/daconjurer/ctenex/internal/market"
)

type exchangeOrder struct {
	ID       string   `json:"id"`
	Side     string   `json:"side"`
	Type     string   `json:"type"`
	Price    *float64 `json:"price"`
	Quantity float64  `json:"quantity"`
	PlacedAt string   `json:"placed_at"`
}

// runExchange samples order flow from a ctenex exchange REST API. Each poll
// covers one fixed interval lagging wall-clock time by the base drift, so
// the exchange has settled all orders for the window before it is read. Every
// non-empty window yields a single tick: volume-weighted price, total volume,
// and the best bid/ask among the window's limit orders.
func (f *Feed) runExchange(ctx context.Context, out chan<- market.Tick) error {
	instruments := f.snapshotInstruments()
	if len(instruments) == 0 {
		return fmt.Errorf("exchange feed requires at least one contract")
	}
	if f.exchangeBaseURL == "" {
		return fmt.Errorf("exchange feed requires a base URL")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	start := time.Now().UTC().Add(-f.baseDrift)

	ticker := time.NewTicker(f.sampleInterval)
	defer ticker.Stop()

	f.log.Info().Str("provider", ProviderExchange).Strs("contracts", instruments).
		Dur("sample_interval", f.sampleInterval).Dur("base_drift", f.baseDrift).
		Msg("exchange order sampling started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			end := start.Add(f.sampleInterval)
			for _, contract := range instruments {
				orders, err := f.fetchOrders(ctx, client, contract, start, end)
				if err != nil {
					f.log.Warn().Err(err).Str("contract", contract).Msg("order fetch failed, window skipped")
					continue
				}
				tick, ok := sampleOrders(contract, orders, start)
				if !ok {
					continue
				}
				select {
				case out <- tick:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			start = end
		}
	}
}

func (f *Feed) fetchOrders(ctx context.Context, client *http.Client, contract string, start, end time.Time) ([]exchangeOrder, error) {
	params := url.Values{}
	params.Set("contract_id", contract)
	params.Set("sort_by", "placed_at")
	params.Set("sort_order", "asc")
	params.Set("placed_at_or_after", start.Format(time.RFC3339Nano))
	params.Set("placed_before", end.Format(time.RFC3339Nano))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.exchangeBaseURL+"/v1/stateless/orders?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange returned status %d", resp.StatusCode)
	}

	var orders []exchangeOrder
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

// sampleOrders collapses one window of orders into a tick. Market orders
// carry no price, so they are valued at the window's best limit price on
// their own side (buys at the best bid, sells at the best ask).
func sampleOrders(contract string, orders []exchangeOrder, windowStart time.Time) (market.Tick, bool) {
	if len(orders) == 0 {
		return market.Tick{}, false
	}

	var bestBid, bestAsk *float64
	for _, order := range orders {
		if order.Type != "limit" || order.Price == nil {
			continue
		}
		switch order.Side {
		case "buy":
			if bestBid == nil || *order.Price > *bestBid {
				bestBid = order.Price
			}
		case "sell":
			if bestAsk == nil || *order.Price < *bestAsk {
				bestAsk = order.Price
			}
		}
	}

	var volume, notional, pricedVolume float64
	for _, order := range orders {
		price := order.Price
		if order.Type == "market" {
			if order.Side == "buy" {
				price = bestBid
			} else {
				price = bestAsk
			}
		}
		volume += order.Quantity
		if price != nil {
			notional += *price * order.Quantity
			pricedVolume += order.Quantity
		}
	}
	if pricedVolume == 0 {
		return market.Tick{}, false
	}

	return market.Tick{
		Instrument: contract,
		Price:      notional / pricedVolume,
		Volume:     volume,
		BestBid:    bestBid,
		BestAsk:    bestAsk,
		Ts:         windowStart,
	}, true
}
