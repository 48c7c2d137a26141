package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"jax-backtest-engine/libs/observability"
)

// Processor is the order processor: given the current SecurityState, it
// decides per incoming or pending order whether to fill fully, fill
// partially, defer, or reject, per time-in-force (spec.md §4.5).
type Processor struct {
	securities map[string]*SecurityState
	portfolio  *Portfolio
	unfilled   *UnfilledBook
	cfg        SessionConfig
	warnings   *[]error
}

// NewProcessor wires a processor against the driver's shared state.
// warnings is the driver's Run-scoped warnings slice; fill-time rejections
// (insufficient cash, an unfillable FOK) are appended to it so they surface
// in the returned Artifact rather than only being logged.
func NewProcessor(securities map[string]*SecurityState, portfolio *Portfolio, unfilled *UnfilledBook, cfg SessionConfig, warnings *[]error) *Processor {
	return &Processor{securities: securities, portfolio: portfolio, unfilled: unfilled, cfg: cfg, warnings: warnings}
}

func (p *Processor) warn(err error) {
	if p.warnings != nil {
		*p.warnings = append(*p.warnings, err)
	}
}

// Submit runs the submission-time pre-checks (spec.md §4.5) and returns an
// error (a *ValidationError, never enqueued) if the order must be
// rejected outright. A nil error means the caller should enqueue an
// ORDER event for it.
func (p *Processor) Submit(ctx context.Context, o *Order) error {
	if o.Shares <= 0 {
		err := &ValidationError{OrderID: o.ID, Reason: fmt.Sprintf("non-positive share count %d", o.Shares)}
		p.logReject(ctx, o, err)
		return err
	}
	if o.Direction == Sell && o.Shares > p.portfolio.HeldShares(o.Ticker) {
		err := &ValidationError{OrderID: o.ID, Reason: fmt.Sprintf("sell %d exceeds held %d", o.Shares, p.portfolio.HeldShares(o.Ticker))}
		p.logReject(ctx, o, err)
		return err
	}
	return nil
}

func (p *Processor) logReject(ctx context.Context, o *Order, err error) {
	observability.LogEvent(ctx, "warn", "order_rejected", map[string]any{
		"order_id": o.ID, "ticker": o.Ticker, "direction": o.Direction.String(), "reason": err.Error(),
	})
}

// matchable evaluates the match decision table (spec.md §4.5) against the
// order's remaining shares and the ticker's current SecurityState. It
// returns the quantity immediately fillable and the price it would fill
// at; qty is 0 if nothing can fill right now.
func matchable(o *Order, sec *SecurityState) (qty int64, price decimal.Decimal) {
	n := o.Shares
	switch o.Direction {
	case Buy:
		if !sec.HasAsk || sec.AskSize == 0 {
			return 0, decimal.Zero
		}
		if o.Kind == Limit && sec.Ask.GreaterThan(o.LimitPrice) {
			return 0, decimal.Zero
		}
		if sec.AskSize >= n {
			return n, sec.Ask
		}
		return sec.AskSize, sec.Ask
	case Sell:
		if !sec.HasBid || sec.BidSize == 0 {
			return 0, decimal.Zero
		}
		if o.Kind == Limit && sec.Bid.LessThan(o.LimitPrice) {
			return 0, decimal.Zero
		}
		if sec.BidSize >= n {
			return n, sec.Bid
		}
		return sec.BidSize, sec.Bid
	}
	return 0, decimal.Zero
}

// Process is the driver's handler for a popped ORDER event: it runs the
// match decision table once and applies the order's time-in-force policy
// to whatever remains unfilled.
func (p *Processor) Process(ctx context.Context, o *Order, t time.Time) {
	sec := p.securityFor(o.Ticker)
	qty, price := matchable(o, sec)

	switch o.TIF {
	case FOK:
		if qty < o.Shares {
			observability.LogEvent(ctx, "warn", "order_not_fillable", map[string]any{"order_id": o.ID, "ticker": o.Ticker})
			p.warn(&NotFillableNotice{OrderID: o.ID})
			return // discarded whole, never queued.
		}
		p.fill(ctx, o, qty, price, t)

	case AON:
		if qty < o.Shares {
			if !p.unfilled.Contains(o) {
				p.unfilled.Push(o)
			}
			return
		}
		p.fill(ctx, o, qty, price, t)
		p.unfilled.Remove(o)

	case IOC:
		if qty > 0 {
			p.fill(ctx, o, qty, price, t)
		}
		// Whatever remains unfilled is cancelled, never queued.

	default: // GTC, DAY
		if qty > 0 {
			p.fill(ctx, o, qty, price, t)
		}
		if o.Shares > 0 && !p.unfilled.Contains(o) {
			p.unfilled.Push(o)
		}
	}
}

// Requery re-evaluates every GTC/DAY/AON order queued against ticker
// following a fresh quote, per spec.md §4.5.
func (p *Processor) Requery(ctx context.Context, ticker string, t time.Time) {
	for _, o := range p.unfilled.ForTicker(ticker) {
		sec := p.securityFor(ticker)
		qty, price := matchable(o, sec)

		switch o.TIF {
		case AON:
			if qty < o.Shares {
				continue
			}
			p.fill(ctx, o, qty, price, t)
			p.unfilled.Remove(o)
		default: // GTC, DAY
			if qty == 0 {
				continue
			}
			p.fill(ctx, o, qty, price, t)
			if o.Shares == 0 {
				p.unfilled.Remove(o)
			}
		}
	}
}

// fill executes k shares at price m for o, performing the full fill
// accounting described in spec.md §4.5 steps 1-7.
func (p *Processor) fill(ctx context.Context, o *Order, k int64, m decimal.Decimal, t time.Time) {
	if k <= 0 {
		return
	}
	commission := Commission(m, k, p.cfg.IncludeCommission)

	switch o.Direction {
	case Buy:
		debit := m.Mul(decimal.NewFromInt(k)).Add(commission)
		cash := p.portfolio.GetCash(t)
		if debit.GreaterThan(cash) {
			observability.LogEvent(ctx, "warn", "insufficient_cash", map[string]any{
				"order_id": o.ID, "ticker": o.Ticker, "debit": debit.String(), "cash": cash.String(),
			})
			p.warn(&InsufficientCashWarning{OrderID: o.ID, Debit: debit.String(), Cash: cash.String()})
			p.unfilled.Remove(o)
			o.Status = Unfilled
			o.Shares = 0
			return
		}
		p.portfolio.ModifyCash(t, cash.Sub(debit))

	case Sell:
		cash := p.portfolio.GetCash(t)
		credit := m.Mul(decimal.NewFromInt(k)).Sub(commission)
		p.portfolio.ModifyCash(t, cash.Add(credit))
	}

	p.portfolio.AddMarketTransaction(t, o.Ticker, o.Direction, m, k, commission)

	sec := p.securityFor(o.Ticker)
	sec.fillReduce(o.Direction, k)
	sec.ApplyTrade(m, k, t)

	p.portfolio.UpdatePortfolioValues(t)

	o.Shares -= k
	if o.Shares == 0 {
		o.Status = Filled
	} else {
		o.Status = Partial
	}
}

func (p *Processor) securityFor(ticker string) *SecurityState {
	sec, ok := p.securities[ticker]
	if !ok {
		sec = NewSecurityState(ticker)
		p.securities[ticker] = sec
	}
	return sec
}
