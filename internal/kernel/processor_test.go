package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestProcessor() (*Processor, map[string]*SecurityState, *Portfolio, *UnfilledBook) {
	securities := make(map[string]*SecurityState)
	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	portfolio := NewPortfolio(t0, decimal.NewFromInt(10000))
	unfilled := NewUnfilledBook()
	cfg := SessionConfig{IncludeCommission: false}
	var warnings []error
	return NewProcessor(securities, portfolio, unfilled, cfg, &warnings), securities, portfolio, unfilled
}

// newTestProcessorWithWarnings is newTestProcessor plus a handle onto the
// warnings slice, for tests asserting fill-time rejections surface there.
func newTestProcessorWithWarnings() (*Processor, map[string]*SecurityState, *Portfolio, *UnfilledBook, *[]error) {
	securities := make(map[string]*SecurityState)
	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	portfolio := NewPortfolio(t0, decimal.NewFromInt(10000))
	unfilled := NewUnfilledBook()
	cfg := SessionConfig{IncludeCommission: false}
	warnings := &[]error{}
	return NewProcessor(securities, portfolio, unfilled, cfg, warnings), securities, portfolio, unfilled, warnings
}

func TestProcessor_Submit_RejectsNonPositiveShares(t *testing.T) {
	p, _, _, _ := newTestProcessor()
	o := NewOrder(time.Now(), Buy, "MSFT", 0, Market, decimal.Zero, GTC)
	o.Shares = 0
	if err := p.Submit(context.Background(), o); err == nil {
		t.Fatal("expected rejection for zero shares")
	}
}

func TestProcessor_Submit_RejectsOversoldSell(t *testing.T) {
	p, _, _, _ := newTestProcessor()
	o := NewOrder(time.Now(), Sell, "MSFT", 5, Market, decimal.Zero, GTC)
	if err := p.Submit(context.Background(), o); err == nil {
		t.Fatal("expected rejection selling shares not held")
	}
}

func TestProcessor_Submit_AllowsSellWithinHeldShares(t *testing.T) {
	p, _, portfolio, _ := newTestProcessor()
	portfolio.AddMarketTransaction(time.Now(), "MSFT", Buy, decimal.RequireFromString("80"), 5, decimal.Zero)
	o := NewOrder(time.Now(), Sell, "MSFT", 5, Market, decimal.Zero, GTC)
	if err := p.Submit(context.Background(), o); err != nil {
		t.Errorf("expected no rejection, got %v", err)
	}
}

func quoteSecurity(sec *SecurityState, bid, ask string, bidSize, askSize int64, t time.Time) {
	sec.ApplyQuote(decimal.RequireFromString(bid), decimal.RequireFromString(ask), true, true, bidSize, askSize, t)
}

func TestMatchable_MarketBuy_FullyFillable(t *testing.T) {
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 5, time.Now())
	o := NewOrder(time.Now(), Buy, "MSFT", 3, Market, decimal.Zero, GTC)

	qty, price := matchable(o, sec)
	if qty != 3 || !price.Equal(decimal.RequireFromString("83.81")) {
		t.Errorf("expected full fill at ask, got qty=%d price=%s", qty, price)
	}
}

func TestMatchable_MarketBuy_PartialFromSize(t *testing.T) {
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 2, time.Now())
	o := NewOrder(time.Now(), Buy, "MSFT", 5, Market, decimal.Zero, GTC)

	qty, price := matchable(o, sec)
	if qty != 2 || !price.Equal(decimal.RequireFromString("83.81")) {
		t.Errorf("expected partial fill of ask_size, got qty=%d price=%s", qty, price)
	}
}

func TestMatchable_Buy_MissingAskNeverFills(t *testing.T) {
	sec := NewSecurityState("MSFT")
	sec.ApplyQuote(decimal.RequireFromString("83.79"), decimal.Zero, true, false, 3, 0, time.Now())
	o := NewOrder(time.Now(), Buy, "MSFT", 1, Market, decimal.Zero, GTC)

	if qty, _ := matchable(o, sec); qty != 0 {
		t.Errorf("expected no fill with missing ask side, got qty=%d", qty)
	}
}

func TestMatchable_Buy_ZeroAskSizeNeverFills(t *testing.T) {
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 0, time.Now())
	o := NewOrder(time.Now(), Buy, "MSFT", 1, Market, decimal.Zero, GTC)

	if qty, _ := matchable(o, sec); qty != 0 {
		t.Errorf("expected no fill with ask_size=0, got qty=%d", qty)
	}
}

func TestMatchable_LimitBuy_RespectsPriceCeiling(t *testing.T) {
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 5, time.Now())

	tooLow := NewOrder(time.Now(), Buy, "MSFT", 1, Limit, decimal.RequireFromString("83.80"), GTC)
	if qty, _ := matchable(tooLow, sec); qty != 0 {
		t.Errorf("expected no fill when ask exceeds limit, got qty=%d", qty)
	}

	atLimit := NewOrder(time.Now(), Buy, "MSFT", 1, Limit, decimal.RequireFromString("83.81"), GTC)
	if qty, _ := matchable(atLimit, sec); qty != 1 {
		t.Errorf("expected fill when ask equals limit exactly, got qty=%d", qty)
	}
}

func TestMatchable_LimitSell_RespectsPriceFloor(t *testing.T) {
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 5, time.Now())

	tooHigh := NewOrder(time.Now(), Sell, "MSFT", 1, Limit, decimal.RequireFromString("83.80"), GTC)
	if qty, _ := matchable(tooHigh, sec); qty != 0 {
		t.Errorf("expected no fill when bid is below limit, got qty=%d", qty)
	}

	atLimit := NewOrder(time.Now(), Sell, "MSFT", 1, Limit, decimal.RequireFromString("83.79"), GTC)
	if qty, _ := matchable(atLimit, sec); qty != 1 {
		t.Errorf("expected fill when bid equals limit exactly, got qty=%d", qty)
	}
}

func TestProcessor_Process_FOK_FullFillWhenSufficient(t *testing.T) {
	p, securities, portfolio, unfilled := newTestProcessor()
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 5, time.Now())
	securities["MSFT"] = sec

	o := NewOrder(time.Now(), Buy, "MSFT", 3, Market, decimal.Zero, FOK)
	p.Process(context.Background(), o, time.Now())

	if o.Status != Filled {
		t.Errorf("expected Filled status, got %v", o.Status)
	}
	if unfilled.Len() != 0 {
		t.Errorf("FOK must never be queued, got len=%d", unfilled.Len())
	}
	if _, ok := portfolio.Position("MSFT"); !ok {
		t.Error("expected an open MSFT position after FOK fill")
	}
}

func TestProcessor_Process_FOK_RejectsWhenInsufficient(t *testing.T) {
	p, securities, portfolio, unfilled, warnings := newTestProcessorWithWarnings()
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 2, time.Now())
	securities["MSFT"] = sec

	o := NewOrder(time.Now(), Buy, "MSFT", 10, Market, decimal.Zero, FOK)
	p.Process(context.Background(), o, time.Now())

	if o.Status == Filled || o.Status == Partial {
		t.Errorf("expected FOK to remain untouched on rejection, got status=%v", o.Status)
	}
	if unfilled.Len() != 0 {
		t.Errorf("FOK must never be queued, got len=%d", unfilled.Len())
	}
	if _, ok := portfolio.Position("MSFT"); ok {
		t.Error("expected no position opened on a rejected FOK")
	}
	if len(*warnings) != 1 {
		t.Fatalf("expected one warning recorded, got %d", len(*warnings))
	}
	if _, ok := (*warnings)[0].(*NotFillableNotice); !ok {
		t.Errorf("expected a *NotFillableNotice, got %T", (*warnings)[0])
	}
}

func TestProcessor_Process_IOC_PartialThenCancelRest(t *testing.T) {
	p, securities, _, unfilled := newTestProcessor()
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 2, time.Now())
	securities["MSFT"] = sec

	o := NewOrder(time.Now(), Buy, "MSFT", 5, Market, decimal.Zero, IOC)
	p.Process(context.Background(), o, time.Now())

	if o.Status != Partial {
		t.Errorf("expected Partial status, got %v", o.Status)
	}
	if o.Shares != 3 {
		t.Errorf("expected 3 remaining shares recorded on the order, got %d", o.Shares)
	}
	if unfilled.Len() != 0 {
		t.Errorf("IOC must never be queued, got len=%d", unfilled.Len())
	}
}

func TestProcessor_Process_AON_NeverPartiallyFills(t *testing.T) {
	p, securities, portfolio, unfilled := newTestProcessor()
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 2, time.Now())
	securities["MSFT"] = sec

	o := NewOrder(time.Now(), Buy, "MSFT", 5, Market, decimal.Zero, AON)
	p.Process(context.Background(), o, time.Now())

	if o.Status == Partial {
		t.Fatal("AON must never partially fill")
	}
	if !unfilled.Contains(o) {
		t.Error("expected insufficient AON order to queue")
	}
	if _, ok := portfolio.Position("MSFT"); ok {
		t.Error("expected no position opened before AON is fully satisfied")
	}
}

func TestProcessor_Requery_FillsQueuedGTCOnImprovedQuote(t *testing.T) {
	p, securities, portfolio, unfilled := newTestProcessor()
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 0, time.Now())
	securities["MSFT"] = sec

	o := NewOrder(time.Now(), Buy, "MSFT", 2, Market, decimal.Zero, GTC)
	p.Process(context.Background(), o, time.Now())
	if !unfilled.Contains(o) {
		t.Fatal("expected order to queue with zero ask size")
	}

	quoteSecurity(sec, "83.79", "83.81", 3, 5, time.Now().Add(time.Second))
	p.Requery(context.Background(), "MSFT", time.Now().Add(time.Second))

	if unfilled.Contains(o) {
		t.Error("expected order removed from the book once fully filled by requery")
	}
	if o.Status != Filled {
		t.Errorf("expected Filled after requery, got %v", o.Status)
	}
	if _, ok := portfolio.Position("MSFT"); !ok {
		t.Error("expected an open MSFT position after requery fill")
	}
}

func TestProcessor_Requery_AONStaysQueuedUntilFullySatisfiable(t *testing.T) {
	p, securities, _, unfilled := newTestProcessor()
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "83.81", 3, 2, time.Now())
	securities["MSFT"] = sec

	o := NewOrder(time.Now(), Buy, "MSFT", 5, Market, decimal.Zero, AON)
	p.Process(context.Background(), o, time.Now())

	// Still insufficient liquidity: requery must leave it queued, untouched.
	p.Requery(context.Background(), "MSFT", time.Now())
	if !unfilled.Contains(o) {
		t.Fatal("expected AON order to remain queued")
	}
	if o.Shares != 5 {
		t.Errorf("expected AON order untouched while insufficient, got shares=%d", o.Shares)
	}

	quoteSecurity(sec, "83.79", "83.81", 3, 5, time.Now().Add(time.Second))
	p.Requery(context.Background(), "MSFT", time.Now().Add(time.Second))
	if unfilled.Contains(o) {
		t.Error("expected AON order removed once fully satisfiable")
	}
	if o.Status != Filled {
		t.Errorf("expected Filled, got %v", o.Status)
	}
}

func TestProcessor_Fill_RejectsOnInsufficientCash(t *testing.T) {
	p, securities, portfolio, unfilled, warnings := newTestProcessorWithWarnings()
	sec := NewSecurityState("MSFT")
	quoteSecurity(sec, "83.79", "100000", 3, 5, time.Now())
	securities["MSFT"] = sec

	o := NewOrder(time.Now(), Buy, "MSFT", 1, Market, decimal.Zero, GTC)
	p.Process(context.Background(), o, time.Now())

	if o.Shares != 0 {
		t.Errorf("expected order cleared out on insufficient cash, got shares=%d", o.Shares)
	}
	if unfilled.Contains(o) {
		t.Error("expected order not left in the book after an insufficient-cash abort")
	}
	if _, ok := portfolio.Position("MSFT"); ok {
		t.Error("expected no position opened when cash is insufficient")
	}
	if !portfolio.CurrentCash().Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected cash untouched, got %s", portfolio.CurrentCash())
	}
	if len(*warnings) != 1 {
		t.Fatalf("expected one warning recorded, got %d", len(*warnings))
	}
	if _, ok := (*warnings)[0].(*InsufficientCashWarning); !ok {
		t.Errorf("expected a *InsufficientCashWarning, got %T", (*warnings)[0])
	}
}
