package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"jax-backtest-engine/internal/kernel"
)

// csvColumns is the header row LoadTicksCSV expects: ticker, ts (RFC3339),
// kind (quote|trade), bid, ask, has_bid, has_ask, bid_size, ask_size,
// price, has_price, size. Any column not meaningful for a row's kind may be
// left blank.
var csvColumns = []string{
	"ticker", "ts", "kind", "bid", "ask", "has_bid", "has_ask",
	"bid_size", "ask_size", "price", "has_price", "size",
}

// LoadTicksCSV reads a tick history in the flat-file shape an offline
// backtest run is seeded with, as an alternative to LoadTicks' Postgres
// path. Rows must already be in ascending time order; the driver does not
// sort its input.
func LoadTicksCSV(r io.Reader) ([]kernel.TickRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvColumns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for _, want := range csvColumns {
		if _, ok := idx[want]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", want)
		}
	}

	var out []kernel.TickRecord
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(out)+1, err)
		}

		row := func(col string) string { return rec[idx[col]] }

		ts, err := time.Parse(time.RFC3339, row("ts"))
		if err != nil {
			return nil, fmt.Errorf("row %d: parse ts %q: %w", len(out)+1, row("ts"), err)
		}

		tick := kernel.TickRecord{
			Time:    ts,
			Ticker:  row("ticker"),
			HasBid:  parseBoolField(row("has_bid")),
			HasAsk:  parseBoolField(row("has_ask")),
			BidSize: parseIntField(row("bid_size")),
			AskSize: parseIntField(row("ask_size")),
			Size:    parseIntField(row("size")),
		}
		if row("kind") == "trade" {
			tick.Type = kernel.TickTrade
		} else {
			tick.Type = kernel.TickQuote
		}
		if tick.Bid, err = decimalField(row("bid")); err != nil {
			return nil, fmt.Errorf("row %d: bid: %w", len(out)+1, err)
		}
		if tick.Ask, err = decimalField(row("ask")); err != nil {
			return nil, fmt.Errorf("row %d: ask: %w", len(out)+1, err)
		}
		if tick.Price, err = decimalField(row("price")); err != nil {
			return nil, fmt.Errorf("row %d: price: %w", len(out)+1, err)
		}
		tick.HasPrice = parseBoolField(row("has_price"))

		out = append(out, tick)
	}
	return out, nil
}

func decimalField(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseBoolField(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func parseIntField(s string) int64 {
	if s == "" {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
