package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// toyTickSet is the 13-event toy MSFT/AAPL tick fixture used across the
// end-to-end scenarios (spec.md §8). AAPL ticks are present only to
// exercise the driver with more than one ticker in play; none of the
// scenarios trade it.
func toyTickSet() []TickRecord {
	day1 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 3, 9, 30, 0, 0, time.UTC)

	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	return []TickRecord{
		{Time: day1.Add(5 * time.Second), Ticker: "AAPL", Type: TickQuote, Bid: d("150.00"), Ask: d("150.05"), HasBid: true, HasAsk: true, BidSize: 3, AskSize: 3},
		{Time: day1.Add(10 * time.Second), Ticker: "MSFT", Type: TickQuote, Bid: d("83.79"), Ask: d("83.81"), HasBid: true, HasAsk: true, BidSize: 3, AskSize: 2}, // tick #2
		{Time: day1.Add(15 * time.Second), Ticker: "MSFT", Type: TickTrade, Price: d("83.81"), HasPrice: true, Size: 2},
		{Time: day1.Add(20 * time.Second), Ticker: "AAPL", Type: TickQuote, Bid: d("150.02"), Ask: d("150.06"), HasBid: true, HasAsk: true, BidSize: 2, AskSize: 2},
		{Time: day1.Add(25 * time.Second), Ticker: "MSFT", Type: TickQuote, Bid: d("83.78"), Ask: d("83.80"), HasBid: true, HasAsk: true, BidSize: 4, AskSize: 5},
		{Time: day1.Add(30 * time.Second), Ticker: "MSFT", Type: TickTrade, Price: d("83.80"), HasPrice: true, Size: 1},
		{Time: day1.Add(35 * time.Second), Ticker: "AAPL", Type: TickQuote, Bid: d("150.10"), Ask: d("150.14"), HasBid: true, HasAsk: true, BidSize: 2, AskSize: 2},
		{Time: day1.Add(40 * time.Second), Ticker: "MSFT", Type: TickQuote, Bid: d("83.83"), Ask: d("83.85"), HasBid: true, HasAsk: true, BidSize: 5, AskSize: 2},
		{Time: day1.Add(45 * time.Second), Ticker: "MSFT", Type: TickTrade, Price: d("84.00"), HasPrice: true, Size: 5},
		{Time: day2.Add(5 * time.Second), Ticker: "MSFT", Type: TickQuote, Bid: d("83.88"), Ask: d("83.90"), HasBid: true, HasAsk: true, BidSize: 3, AskSize: 3},
		{Time: day2.Add(10 * time.Second), Ticker: "MSFT", Type: TickTrade, Price: d("84.50"), HasPrice: true, Size: 2},
		{Time: day2.Add(15 * time.Second), Ticker: "MSFT", Type: TickQuote, Bid: d("83.95"), Ask: d("84.00"), HasBid: true, HasAsk: true, BidSize: 4, AskSize: 4},
		{Time: day2.Add(20 * time.Second), Ticker: "MSFT", Type: TickTrade, Price: d("85.80"), HasPrice: true, Size: 3},
	}
}

func toySessionConfig() SessionConfig {
	return SessionConfig{
		MarketOpenTime:    9*time.Hour + 30*time.Minute,
		MarketCloseTime:   16 * time.Hour,
		InitialCash:       decimal.NewFromInt(10000),
		IncludeCommission: false,
	}
}

func runToy(t *testing.T, strat Strategy) Artifact {
	t.Helper()
	d, err := New(toySessionConfig(), []string{"MSFT", "AAPL"}, strat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	artifact, err := d.Run(context.Background(), toyTickSet())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return artifact
}

// 1. No-op strategy.
func TestScenario_NoOp(t *testing.T) {
	artifact := runToy(t, NoOp{})
	if len(artifact.Snapshots) == 0 {
		t.Fatal("expected at least one snapshot")
	}
	for _, s := range artifact.Snapshots {
		if !s.Cash.Equal(decimal.NewFromInt(10000)) {
			t.Errorf("at %v: expected cash=10000, got %s", s.Time, s.Cash)
		}
		if !s.InvestmentValue.IsZero() {
			t.Errorf("at %v: expected investment_value=0, got %s", s.Time, s.InvestmentValue)
		}
		if !s.PortfolioValue.Equal(decimal.NewFromInt(10000)) {
			t.Errorf("at %v: expected portfolio_value=10000, got %s", s.Time, s.PortfolioValue)
		}
	}
}

// buyAtAskStrategy places a market/limit BUY the first time TradeLogic observes
// MSFT's ask at the given price (or, for a plain market order, simply
// the first opportunity), used to pin an order to a specific tick.
type buyAtAskStrategy struct {
	ticker     string
	shares     int64
	tif        TimeInForce
	limit      decimal.Decimal // zero value means market order
	triggerAsk decimal.Decimal // only submit once this ask is observed; zero means submit immediately
	placed     bool
}

func (s *buyAtAskStrategy) TradeLogic(ctx context.Context, api API) {
	if s.placed {
		return
	}
	if !s.triggerAsk.IsZero() {
		d, ok := api.(*Driver)
		if !ok {
			return
		}
		sec := d.securityFor(s.ticker)
		if !sec.HasAsk || !sec.Ask.Equal(s.triggerAsk) {
			return
		}
	}

	var o *Order
	if s.limit.IsZero() {
		o = api.CreateMarketOrder(s.ticker, Buy, s.shares, s.tif)
	} else {
		o = api.CreateLimitOrder(s.ticker, Buy, s.shares, s.limit, s.tif)
	}
	api.PlaceOrder(o)
	s.placed = true
}

// 2. Buy-and-hold MSFT 2 @ 83.81.
func TestScenario_BuyAndHold(t *testing.T) {
	strat := &buyAtAskStrategy{ticker: "MSFT", shares: 2, tif: GTC, triggerAsk: decimal.RequireFromString("83.81")}
	artifact := runToy(t, strat)

	final := artifact.Snapshots[len(artifact.Snapshots)-1]
	wantCash := decimal.RequireFromString("9832.38")
	wantInvestment := decimal.RequireFromString("171.60")
	wantTotal := decimal.RequireFromString("10003.98")

	if !final.Cash.Equal(wantCash) {
		t.Errorf("final cash: want %s, got %s", wantCash, final.Cash)
	}
	if !final.InvestmentValue.Equal(wantInvestment) {
		t.Errorf("final investment_value: want %s, got %s", wantInvestment, final.InvestmentValue)
	}
	if !final.PortfolioValue.Equal(wantTotal) {
		t.Errorf("final portfolio_value: want %s, got %s", wantTotal, final.PortfolioValue)
	}
}

// 3. Limit-buy MSFT 2 @ 80 GTC never fills.
func TestScenario_LimitNeverFills(t *testing.T) {
	strat := &buyAtAskStrategy{ticker: "MSFT", shares: 2, tif: GTC, limit: decimal.NewFromInt(80)}
	d, err := New(toySessionConfig(), []string{"MSFT", "AAPL"}, strat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	artifact, err := d.Run(context.Background(), toyTickSet())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	final := artifact.Snapshots[len(artifact.Snapshots)-1]
	if !final.Cash.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("final cash: want 10000, got %s", final.Cash)
	}
	if !final.InvestmentValue.IsZero() {
		t.Errorf("final investment_value: want 0, got %s", final.InvestmentValue)
	}
	if !final.PortfolioValue.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("final portfolio_value: want 10000, got %s", final.PortfolioValue)
	}
	if d.NumUnfilledOrders() != 1 {
		t.Errorf("expected 1 unfilled GTC order at termination, got %d", d.NumUnfilledOrders())
	}
}

// 4. Partial fill across two quotes.
func TestScenario_PartialFillAcrossQuotes(t *testing.T) {
	strat := &buyAtAskStrategy{ticker: "MSFT", shares: 3, tif: GTC, triggerAsk: decimal.RequireFromString("83.81")}
	d, err := New(toySessionConfig(), []string{"MSFT", "AAPL"}, strat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := d.Run(context.Background(), toyTickSet()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pos, ok := d.portfolio.Position("MSFT")
	if !ok {
		t.Fatal("expected an open MSFT position")
	}
	if pos.Shares != 3 {
		t.Errorf("expected 3 shares held, got %d", pos.Shares)
	}
	wantEntry := decimal.RequireFromString("251.42").Div(decimal.NewFromInt(3))
	if pos.EntryPrice.Sub(wantEntry).Abs().GreaterThan(decimal.RequireFromString("0.0001")) {
		t.Errorf("weighted-average entry: want ~%s, got %s", wantEntry, pos.EntryPrice)
	}

	wantCash := decimal.NewFromInt(10000).Sub(decimal.RequireFromString("251.42"))
	if !d.portfolio.CurrentCash().Equal(wantCash) {
		t.Errorf("cash: want %s, got %s", wantCash, d.portfolio.CurrentCash())
	}
}

// 5. FOK rejection.
func TestScenario_FOKRejection(t *testing.T) {
	strat := &buyAtAskStrategy{ticker: "MSFT", shares: 10, tif: FOK, triggerAsk: decimal.RequireFromString("83.81")}
	d, err := New(toySessionConfig(), []string{"MSFT", "AAPL"}, strat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := d.Run(context.Background(), toyTickSet()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !d.portfolio.CurrentCash().Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected no cash change, got %s", d.portfolio.CurrentCash())
	}
	if d.NumUnfilledOrders() != 0 {
		t.Errorf("FOK must never appear in the unfilled book, got %d entries", d.NumUnfilledOrders())
	}
	if _, ok := d.portfolio.Position("MSFT"); ok {
		t.Error("expected no MSFT position after a FOK rejection")
	}
}

// dayOrderStrategy places a DAY MSFT BUY for more shares than day 1's
// cumulative ask liquidity (2+5+2=9 < 10) can satisfy, on its very first
// TradeLogic call — before any quote has reached the security cache, so
// nothing fills immediately and the order queues.
type dayOrderStrategy struct {
	placed bool
}

func (s *dayOrderStrategy) TradeLogic(ctx context.Context, api API) {
	if s.placed {
		return
	}
	o := api.CreateMarketOrder("MSFT", Buy, 10, DAY)
	api.PlaceOrder(o)
	s.placed = true
}

// 6. DAY expiry.
func TestScenario_DayExpiry(t *testing.T) {
	strat := &dayOrderStrategy{}
	d, err := New(toySessionConfig(), []string{"MSFT", "AAPL"}, strat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := d.Run(context.Background(), toyTickSet()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if d.NumUnfilledOrders() != 0 {
		t.Errorf("DAY queue must be empty after termination (past close), got %d", d.NumUnfilledOrders())
	}
	pos, ok := d.portfolio.Position("MSFT")
	if !ok {
		t.Fatal("expected a partial MSFT position from day 1's available liquidity")
	}
	if pos.Shares != 9 {
		t.Errorf("expected 9 shares filled from day 1's liquidity (2+5+2), got %d", pos.Shares)
	}
}
