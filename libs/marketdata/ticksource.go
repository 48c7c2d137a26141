package marketdata

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"jax-backtest-engine/internal/kernel"
)

// TickSource adapts a Client's vendor providers (Alpaca, Polygon, IB) into
// the ascending, time-sorted kernel.TickRecord sequence a Driver consumes.
// It's a thin conversion layer: the providers own rate limits and the
// Client owns provider fallback (GetQuote, GetTrades) and quote caching
// (GetQuote only; trades are not cached).
type TickSource struct {
	client *Client
}

// NewTickSource wraps an already-constructed Client.
func NewTickSource(client *Client) *TickSource {
	return &TickSource{client: client}
}

// LoadTrades fetches the last limit trades for symbol and converts them
// into ascending-time TRADE tick records.
func (ts *TickSource) LoadTrades(ctx context.Context, symbol string, limit int) ([]kernel.TickRecord, error) {
	trades, err := ts.client.GetTrades(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}

	out := make([]kernel.TickRecord, 0, len(trades))
	for _, tr := range trades {
		out = append(out, kernel.TickRecord{
			Time:     tr.Timestamp,
			Ticker:   tr.Symbol,
			Type:     kernel.TickTrade,
			Price:    decimal.NewFromFloat(tr.Price),
			HasPrice: true,
			Size:     tr.Size,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// LoadQuote converts the latest live quote into a single QUOTE tick
// record, for strategies that want to seed a session with a current
// book before replaying historical trades.
func (ts *TickSource) LoadQuote(ctx context.Context, symbol string) (kernel.TickRecord, error) {
	q, err := ts.client.GetQuote(ctx, symbol)
	if err != nil {
		return kernel.TickRecord{}, err
	}
	return quoteToTick(q), nil
}

func quoteToTick(q *Quote) kernel.TickRecord {
	return kernel.TickRecord{
		Time:    q.Timestamp,
		Ticker:  q.Symbol,
		Type:    kernel.TickQuote,
		Bid:     decimal.NewFromFloat(q.Bid),
		Ask:     decimal.NewFromFloat(q.Ask),
		HasBid:  q.Bid > 0,
		HasAsk:  q.Ask > 0,
		BidSize: q.BidSize,
		AskSize: q.AskSize,
	}
}
