package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"jax-backtest-engine/internal/kernel"
)

// StoreTickQuery is the SQL for appending one historical tick row. Unlike
// StoreQuoteQuery/StoreCandleQuery's latest-value upserts, the ticks table
// is append-only: a backtest run replays the full history, not just the
// most recent observation.
const StoreTickQuery = `
	INSERT INTO ticks (ticker, ts, kind, bid, ask, has_bid, has_ask, bid_size, ask_size, price, has_price, size)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// SelectTicksQuery loads a ticker's tick history within [start, end) in
// ascending time order, matching the driver's input ordering requirement
// (spec.md §6).
const SelectTicksQuery = `
	SELECT ticker, ts, kind, bid, ask, has_bid, has_ask, bid_size, ask_size, price, has_price, size
	FROM ticks
	WHERE ticker = $1 AND ts >= $2 AND ts < $3
	ORDER BY ts ASC
`

// StoreTicks appends a batch of tick records to the ticks table.
func StoreTicks(ctx context.Context, db *sql.DB, ticks []kernel.TickRecord) error {
	if len(ticks) == 0 {
		return nil
	}

	stmt, err := db.PrepareContext(ctx, StoreTickQuery)
	if err != nil {
		return fmt.Errorf("prepare tick statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range ticks {
		kind := "quote"
		if t.Type == kernel.TickTrade {
			kind = "trade"
		}
		_, err := stmt.ExecContext(ctx, t.Ticker, t.Time, kind,
			t.Bid.String(), t.Ask.String(), t.HasBid, t.HasAsk, t.BidSize, t.AskSize,
			t.Price.String(), t.HasPrice, t.Size,
		)
		if err != nil {
			return fmt.Errorf("store tick for %s at %v: %w", t.Ticker, t.Time, err)
		}
	}
	return nil
}

// LoadTicks reads a ticker's tick history into the driver's TickRecord
// shape, ready to hand to kernel.Driver.Run.
func LoadTicks(ctx context.Context, db *sql.DB, ticker string, start, end time.Time) ([]kernel.TickRecord, error) {
	rows, err := db.QueryContext(ctx, SelectTicksQuery, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("query ticks for %s: %w", ticker, err)
	}
	defer rows.Close()

	var out []kernel.TickRecord
	for rows.Next() {
		var (
			tk                   string
			ts                   time.Time
			kind                 string
			bidStr, askStr       string
			hasBid, hasAsk       bool
			bidSize, askSize     int64
			priceStr             string
			hasPrice             bool
			size                 int64
		)
		if err := rows.Scan(&tk, &ts, &kind, &bidStr, &askStr, &hasBid, &hasAsk, &bidSize, &askSize, &priceStr, &hasPrice, &size); err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}

		bid, _ := decimal.NewFromString(bidStr)
		ask, _ := decimal.NewFromString(askStr)
		price, _ := decimal.NewFromString(priceStr)

		t := kernel.TickRecord{
			Time: ts, Ticker: tk,
			Bid: bid, Ask: ask, HasBid: hasBid, HasAsk: hasAsk, BidSize: bidSize, AskSize: askSize,
			Price: price, HasPrice: hasPrice, Size: size,
		}
		if kind == "trade" {
			t.Type = kernel.TickTrade
		} else {
			t.Type = kernel.TickQuote
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
