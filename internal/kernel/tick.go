package kernel

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickType distinguishes the two tick row shapes in spec.md §6.
type TickType int

const (
	TickQuote TickType = iota
	TickTrade
)

// TickRecord is the kernel's one mandated wire boundary: an
// already-parsed, time-sorted tick row. Any ingestion pipeline (CSV, SQL,
// a vendor feed) that produces these in ascending time order is a valid
// driver input.
type TickRecord struct {
	Time   time.Time
	Ticker string
	Type   TickType

	// Quote rows.
	Bid, Ask       decimal.Decimal
	HasBid, HasAsk bool
	BidSize        int64
	AskSize        int64

	// Trade rows.
	Price    decimal.Decimal
	HasPrice bool
	Size     int64
}

// SessionConfig is the run-level configuration the driver and processor
// need. Broker-schedule validation happens upstream in internal/config;
// by the time a SessionConfig reaches the kernel, IncludeCommission is
// the only schedule-related knob left (the kernel implements exactly one
// commission schedule).
type SessionConfig struct {
	MarketOpenTime    time.Duration // offset from local midnight
	MarketCloseTime   time.Duration
	InitialCash       decimal.Decimal
	IncludeCommission bool
}

// DefaultSessionConfig matches spec.md §6's defaults: 09:30:00-16:00:00.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MarketOpenTime:  9*time.Hour + 30*time.Minute,
		MarketCloseTime: 16 * time.Hour,
	}
}
