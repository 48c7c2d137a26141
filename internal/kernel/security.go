package kernel

import (
	"time"

	"github.com/shopspring/decimal"
)

// SecurityState is the top-of-book cache for a single ticker: the last
// quote (bid/ask and their sizes) and the last trade (price, size, time).
// A missing quote side is an explicit absence, not a NaN-sentineled float
// — HasBid/HasAsk are the authoritative presence flags.
type SecurityState struct {
	Ticker string

	Bid, Ask         decimal.Decimal
	HasBid, HasAsk   bool
	BidSize, AskSize int64
	QuoteTime        time.Time

	LastSalePrice decimal.Decimal
	LastSaleSize  int64
	LastSaleTime  time.Time
}

// NewSecurityState returns a SecurityState with no quote or trade recorded.
func NewSecurityState(ticker string) *SecurityState {
	return &SecurityState{Ticker: ticker}
}

// ApplyQuote records a fresh top-of-book quote. bidSize/askSize of 0 with a
// present price is valid (no fillable size); hasBid/hasAsk false means that
// side is absent and must never be used to fill.
func (s *SecurityState) ApplyQuote(bid, ask decimal.Decimal, hasBid, hasAsk bool, bidSize, askSize int64, t time.Time) {
	if bidSize < 0 || askSize < 0 {
		panicInvariant("security %s: negative size (bid_size=%d ask_size=%d)", s.Ticker, bidSize, askSize)
	}
	if hasBid && hasAsk && bid.GreaterThan(ask) {
		panicInvariant("security %s: bid %s > ask %s", s.Ticker, bid, ask)
	}
	s.Bid, s.Ask = bid, ask
	s.HasBid, s.HasAsk = hasBid, hasAsk
	s.BidSize, s.AskSize = bidSize, askSize
	s.QuoteTime = t
}

// ApplyTrade records a last-sale print.
func (s *SecurityState) ApplyTrade(price decimal.Decimal, size int64, t time.Time) {
	s.LastSalePrice = price
	s.LastSaleSize = size
	s.LastSaleTime = t
}

// fillReduce decrements the ask size (buy fills) or bid size (sell fills)
// by the executed quantity, clamped at zero so a size never goes negative.
func (s *SecurityState) fillReduce(dir Direction, k int64) {
	switch dir {
	case Buy:
		s.AskSize -= k
		if s.AskSize < 0 {
			s.AskSize = 0
		}
	case Sell:
		s.BidSize -= k
		if s.BidSize < 0 {
			s.BidSize = 0
		}
	}
}
