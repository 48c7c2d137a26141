package kernel

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"jax-backtest-engine/libs/observability"
)

// Artifact is the driver's output: the dense, ascending, per-event
// timestamp table of portfolio-value snapshots (spec.md §6).
type Artifact struct {
	Snapshots []Snapshot
	Warnings  []error
}

// Driver is the simulation driver: it ingests the tick sequence,
// synthesizes MARKET_OPEN/MARKET_CLOSE events, drives the per-tick loop,
// and owns every piece of kernel state (spec.md §4.6, §5).
type Driver struct {
	cfg        SessionConfig
	securities map[string]*SecurityState
	portfolio  *Portfolio
	unfilled   *UnfilledBook
	processor  *Processor
	queue      *EventQueue
	strategy   Strategy

	simTime      time.Time
	marketStatus MarketStatus
	warnings     []error
	ctx          context.Context
}

// New constructs a Driver. tickers lists every ticker the run will
// touch; strategy implements at least TradeLogic.
func New(cfg SessionConfig, tickers []string, strategy Strategy) (*Driver, error) {
	if len(tickers) == 0 {
		return nil, &ConfigurationError{Reason: "no securities configured"}
	}
	if strategy == nil {
		return nil, &ConfigurationError{Reason: "no strategy supplied"}
	}

	securities := make(map[string]*SecurityState, len(tickers))
	for _, t := range tickers {
		securities[t] = NewSecurityState(t)
	}

	unfilled := NewUnfilledBook()
	// Portfolio is seeded with zero cash here; Run() re-seeds it at the
	// first tick's session open once sim_time is known.
	portfolio := NewPortfolio(time.Time{}, decimal.Zero)

	d := &Driver{
		cfg:        cfg,
		securities: securities,
		portfolio:  portfolio,
		unfilled:   unfilled,
		queue:      NewEventQueue(),
		strategy:   strategy,
	}
	d.processor = NewProcessor(securities, portfolio, unfilled, cfg, &d.warnings)
	return d, nil
}

// Run drives the full simulation over ticks and returns the output
// artifact. ticks must be time-sorted ascending (spec.md §6); the driver
// does not re-sort them.
func (d *Driver) Run(ctx context.Context, ticks []TickRecord) (Artifact, error) {
	if len(ticks) == 0 {
		return Artifact{}, &ConfigurationError{Reason: "no tick data"}
	}

	d.enqueueSessionEvents(ticks)

	d.simTime = sessionOpenFor(ticks[0].Time, d.cfg)
	d.portfolio = NewPortfolio(d.simTime, d.cfg.InitialCash)
	d.processor = NewProcessor(d.securities, d.portfolio, d.unfilled, d.cfg, &d.warnings)
	d.portfolio.UpdatePortfolioValues(d.simTime)

	start := time.Now()
	ticksProcessed := 0

	d.ctx = ctx
	for {
		ev, ok := d.queue.Pop()
		if !ok {
			break
		}
		d.simTime = ev.Timestamp
		d.portfolio.ModifyCash(d.simTime, d.portfolio.CurrentCash())
		d.portfolio.RefreshPositionTimes(d.simTime)
		d.portfolio.UpdatePortfolioValues(d.simTime)

		switch ev.Kind {
		case KindMarketStatus:
			d.marketStatus = ev.Status
			if ev.Status == MarketClose {
				for _, o := range d.unfilled.FlushDay() {
					o.Status = Unfilled
				}
			}
		case KindTrade:
			sec := d.securityFor(ev.Ticker)
			sec.ApplyTrade(ev.Trade.Price, ev.Trade.Size, d.simTime)
			if d.portfolio.SetMarketPrice(ev.Ticker, ev.Trade.Price) {
				d.portfolio.UpdatePortfolioValues(d.simTime)
			}
			ticksProcessed++
		case KindQuote:
			sec := d.securityFor(ev.Ticker)
			sec.ApplyQuote(ev.Quote.Bid, ev.Quote.Ask, ev.Quote.HasBid, ev.Quote.HasAsk, ev.Quote.BidSize, ev.Quote.AskSize, d.simTime)
			d.processor.Requery(ctx, ev.Ticker, d.simTime)
			ticksProcessed++
		case KindOrder:
			d.processor.Process(ctx, ev.Order, d.simTime)
		}

		if at, ok := d.strategy.(AtTicker); ok {
			at.AtTick(ctx, d)
		}
		d.strategy.TradeLogic(ctx, d)
		if at, ok := d.strategy.(AtEndOfTicker); ok {
			at.AtEndOfTick(ctx, d)
		}
	}

	observability.RecordRunDuration(ctx, time.Since(start), ticksProcessed)

	return Artifact{Snapshots: d.portfolio.Snapshots(), Warnings: d.warnings}, nil
}

func (d *Driver) securityFor(ticker string) *SecurityState {
	sec, ok := d.securities[ticker]
	if !ok {
		sec = NewSecurityState(ticker)
		d.securities[ticker] = sec
	}
	return sec
}

// ─── session synthesis (spec.md §4.6) ──────────────────────────────────────

func sessionOpenFor(first time.Time, cfg SessionConfig) time.Time {
	configuredOpen := atTimeOfDay(first, cfg.MarketOpenTime)
	if configuredOpen.Before(first) || configuredOpen.Equal(first) {
		return configuredOpen
	}
	return first
}

func atTimeOfDay(day time.Time, offset time.Duration) time.Time {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(offset)
}

// enqueueSessionEvents walks the tick sequence, emitting a MARKET_OPEN
// before the first session and a MARKET_CLOSE/MARKET_OPEN pair whenever a
// tick's timestamp reaches or crosses the current session's close
// boundary, before enqueueing the tick itself as a QUOTE or TRADE event.
func (d *Driver) enqueueSessionEvents(ticks []TickRecord) {
	sessionDate := ticks[0].Time
	d.queue.Push(newMarketStatusEvent(MarketOpen, sessionOpenFor(ticks[0].Time, d.cfg)))

	closeBoundary := atTimeOfDay(sessionDate, d.cfg.MarketCloseTime)

	for _, tick := range ticks {
		if !tick.Time.Before(closeBoundary) {
			d.queue.Push(newMarketStatusEvent(MarketClose, closeBoundary))
			sessionDate = tick.Time
			openBoundary := atTimeOfDay(sessionDate, d.cfg.MarketOpenTime)
			if tick.Time.Before(openBoundary) {
				openBoundary = tick.Time
			}
			d.queue.Push(newMarketStatusEvent(MarketOpen, openBoundary))
			closeBoundary = atTimeOfDay(sessionDate, d.cfg.MarketCloseTime)
			if !closeBoundary.After(tick.Time) {
				// Degenerate tick (its own time-of-day already at/after the
				// configured close): treat the session as open through it.
				closeBoundary = tick.Time.Add(time.Nanosecond)
			}
		}

		switch tick.Type {
		case TickQuote:
			e := newEvent(KindQuote, tick.Ticker, tick.Time)
			e.Quote = QuotePayload{Bid: tick.Bid, Ask: tick.Ask, HasBid: tick.HasBid, HasAsk: tick.HasAsk, BidSize: tick.BidSize, AskSize: tick.AskSize}
			d.queue.Push(e)
		case TickTrade:
			e := newEvent(KindTrade, tick.Ticker, tick.Time)
			e.Trade = TradePayload{Price: tick.Price, Size: tick.Size}
			d.queue.Push(e)
		}
	}
}

func newMarketStatusEvent(status MarketStatus, t time.Time) Event {
	e := newEvent(KindMarketStatus, "", t)
	e.Status = status
	return e
}

// ─── Strategy-facing API (spec.md §6) ──────────────────────────────────────

func (d *Driver) Time() time.Time { return d.simTime }

func (d *Driver) Cash() decimal.Decimal { return d.portfolio.GetCash(d.simTime) }

func (d *Driver) PortfolioValue() decimal.Decimal {
	snap := d.portfolio.UpdatePortfolioValues(d.simTime)
	return snap.PortfolioValue
}

func (d *Driver) TotalInvestmentValue() decimal.Decimal {
	snap := d.portfolio.UpdatePortfolioValues(d.simTime)
	return snap.InvestmentValue
}

func (d *Driver) Shares(ticker string) int64 { return d.portfolio.HeldShares(ticker) }

func (d *Driver) OpenPositions(tickers ...string) []Position { return d.portfolio.OpenPositions(tickers...) }

func (d *Driver) Holdings() map[string]decimal.Decimal { return d.portfolio.Holdings() }

func (d *Driver) MarketStatus() MarketStatus { return d.marketStatus }

func (d *Driver) TransactionLog() []Txn { return d.portfolio.TransactionLog() }

func (d *Driver) NumUnfilledOrders() int { return d.unfilled.Len() }

func (d *Driver) AddCash(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &ConfigurationError{Reason: "add_cash requires a non-negative amount"}
	}
	d.portfolio.ModifyCash(d.simTime, d.portfolio.GetCash(d.simTime).Add(amount))
	d.portfolio.AddCashTransaction(d.simTime, amount)
	return nil
}

func (d *Driver) RemoveCash(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &ConfigurationError{Reason: "remove_cash requires a non-negative amount"}
	}
	d.portfolio.ModifyCash(d.simTime, d.portfolio.GetCash(d.simTime).Sub(amount))
	d.portfolio.AddCashTransaction(d.simTime, amount.Neg())
	return nil
}

func (d *Driver) CreateMarketOrder(ticker string, dir Direction, shares int64, tif TimeInForce) *Order {
	return NewOrder(d.simTime, dir, ticker, shares, Market, decimal.Zero, tif)
}

func (d *Driver) CreateLimitOrder(ticker string, dir Direction, shares int64, limitPrice decimal.Decimal, tif TimeInForce) *Order {
	return NewOrder(d.simTime, dir, ticker, shares, Limit, limitPrice, tif)
}

// PlaceOrder validates o and, if accepted, enqueues it as an ORDER event
// at the current sim_time. Per spec.md §4.3/§5, this guarantees it is
// popped (and processed) before any later, same-timestamp QUOTE/TRADE
// that hasn't been popped yet.
func (d *Driver) PlaceOrder(o *Order) error {
	if err := d.processor.Submit(d.ctx, o); err != nil {
		d.warnings = append(d.warnings, err)
		return err
	}
	e := newEvent(KindOrder, o.Ticker, d.simTime)
	e.Order = o
	d.queue.Push(e)
	return nil
}

func (d *Driver) CancelUnfilledOrder(o *Order) {
	d.unfilled.Remove(o)
}

// CancelAllUnfilledOrders empties the GTC, DAY, and AON queues
// immediately and synchronously (spec.md §5).
func (d *Driver) CancelAllUnfilledOrders() {
	d.unfilled.gtc = nil
	d.unfilled.day = nil
	d.unfilled.aon = nil
}
