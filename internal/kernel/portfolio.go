package kernel

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Position is keyed by ticker. Shares is positive for a long, negative for
// a short; a Position exists in the ledger iff Shares != 0.
type Position struct {
	Ticker       string
	EntryTime    time.Time
	PurchaseTime time.Time
	Time         time.Time // last tick the position was refreshed at
	Shares       int64
	EntryPrice   decimal.Decimal // weighted-average cost across add-to-position fills
	MarketPrice  decimal.Decimal // most recent trade price observed while held
}

// Txn is the tagged variant over CashTxn/MarketTxn that makes up the
// transaction log. Both implement txnTime so the log stays sortable.
type Txn interface {
	txnTime() time.Time
}

// CashTxn records a standalone cash movement not tied to a fill (e.g. a
// strategy's AddCash/RemoveCash call).
type CashTxn struct {
	Time      time.Time
	CashDelta decimal.Decimal
}

func (c CashTxn) txnTime() time.Time { return c.Time }

// MarketTxn records one fill. SequenceID groups together every fill and
// closeout belonging to the same round-trip position in a ticker.
type MarketTxn struct {
	Time       time.Time
	Ticker     string
	Direction  Direction
	Price      decimal.Decimal
	Shares     int64
	Commission decimal.Decimal
	SequenceID int64
}

func (m MarketTxn) txnTime() time.Time { return m.Time }

// Snapshot is the point-in-time {cash, investment_value, portfolio_value}
// triple recorded at every processed event timestamp.
type Snapshot struct {
	Time            time.Time
	Cash            decimal.Decimal
	InvestmentValue decimal.Decimal
	PortfolioValue  decimal.Decimal
}

type cashPoint struct {
	t     time.Time
	value decimal.Decimal
}

// Portfolio is the kernel's cash timeline, open positions, transaction
// log, and portfolio-value snapshot series. It is owned exclusively by
// the simulation driver.
type Portfolio struct {
	cashTimeline []cashPoint // sorted ascending by t; append-mostly
	positions    map[string]*Position
	transactions []Txn
	snapshots    []Snapshot

	sequenceByTicker map[string]int64
	nextSequenceID   int64
	freeSequenceIDs  []int64
}

// NewPortfolio returns a ledger seeded with initialCash at t.
func NewPortfolio(t time.Time, initialCash decimal.Decimal) *Portfolio {
	p := &Portfolio{
		positions:        make(map[string]*Position),
		sequenceByTicker: make(map[string]int64),
		nextSequenceID:   1,
	}
	p.ModifyCash(t, initialCash)
	return p
}

// ModifyCash records the absolute cash value prevailing at t. t must be >=
// the most recently recorded time; calling it again with the same t
// overwrites that entry (used by the driver to carry cash forward each
// tick without growing the timeline unboundedly).
func (p *Portfolio) ModifyCash(t time.Time, value decimal.Decimal) {
	n := len(p.cashTimeline)
	if n > 0 {
		last := p.cashTimeline[n-1]
		if t.Before(last.t) {
			panicInvariant("cash timeline: modify_cash(%v) precedes last recorded time %v", t, last.t)
		}
		if t.Equal(last.t) {
			p.cashTimeline[n-1].value = value
			return
		}
	}
	p.cashTimeline = append(p.cashTimeline, cashPoint{t: t, value: value})
}

// GetCash returns the cash value prevailing at t: the value at the
// greatest recorded time <= t.
func (p *Portfolio) GetCash(t time.Time) decimal.Decimal {
	n := len(p.cashTimeline)
	if n == 0 {
		return decimal.Zero
	}
	idx := sort.Search(n, func(i int) bool { return p.cashTimeline[i].t.After(t) })
	if idx == 0 {
		return decimal.Zero
	}
	return p.cashTimeline[idx-1].value
}

// CurrentCash is GetCash at the most recently recorded time.
func (p *Portfolio) CurrentCash() decimal.Decimal {
	n := len(p.cashTimeline)
	if n == 0 {
		return decimal.Zero
	}
	return p.cashTimeline[n-1].value
}

// HeldShares returns the current share count for ticker, 0 if no position.
func (p *Portfolio) HeldShares(ticker string) int64 {
	if pos, ok := p.positions[ticker]; ok {
		return pos.Shares
	}
	return 0
}

// Position returns the open position for ticker, if any.
func (p *Portfolio) Position(ticker string) (Position, bool) {
	pos, ok := p.positions[ticker]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// OpenPositions returns all open positions, or only the requested tickers
// if any are given.
func (p *Portfolio) OpenPositions(tickers ...string) []Position {
	if len(tickers) == 0 {
		out := make([]Position, 0, len(p.positions))
		for _, pos := range p.positions {
			out = append(out, *pos)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
		return out
	}
	out := make([]Position, 0, len(tickers))
	for _, tk := range tickers {
		if pos, ok := p.positions[tk]; ok {
			out = append(out, *pos)
		}
	}
	return out
}

// addPosition inserts a new open position for a ticker with no prior
// holding.
func (p *Portfolio) addPosition(t time.Time, ticker string, price decimal.Decimal, shares int64) {
	p.positions[ticker] = &Position{
		Ticker:       ticker,
		EntryTime:    t,
		PurchaseTime: t,
		Time:         t,
		Shares:       shares,
		EntryPrice:   price,
		MarketPrice:  price,
	}
}

// applyFillToPosition folds k shares at price m into the existing position
// for ticker (creating it if absent), using share-weighted average entry
// pricing. Positive k is a buy-side add, negative k is a sell-side
// reduction (the caller passes the signed delta in ticker's own direction,
// i.e. +k grows a long, -k shrinks a long or grows a short).
func (p *Portfolio) applyFillToPosition(t time.Time, ticker string, price decimal.Decimal, delta int64) {
	pos, exists := p.positions[ticker]
	if !exists {
		p.addPosition(t, ticker, price, delta)
		return
	}

	newShares := pos.Shares + delta
	sameSideAdd := (pos.Shares >= 0 && delta > 0) || (pos.Shares <= 0 && delta < 0)

	if !sameSideAdd && abs64(delta) > abs64(pos.Shares) {
		panicInvariant("position %s: fill of %d shares exceeds held %d after the processor's pre-check", ticker, delta, pos.Shares)
	}

	if sameSideAdd {
		// Share-weighted average across the add, per spec.md §4.5 — not
		// the source's size-blind (old+new)/2 average.
		oldAbs := decimal.NewFromInt(abs64(pos.Shares))
		addAbs := decimal.NewFromInt(abs64(delta))
		totalAbs := oldAbs.Add(addAbs)
		if totalAbs.IsPositive() {
			weighted := pos.EntryPrice.Mul(oldAbs).Add(price.Mul(addAbs)).Div(totalAbs)
			pos.EntryPrice = weighted
		}
	}
	pos.Shares = newShares
	pos.Time = t

	if pos.Shares == 0 {
		delete(p.positions, ticker)
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// SetMarketPrice updates the market price of an open position (called on
// TRADE events for the held ticker) and returns whether a position exists.
func (p *Portfolio) SetMarketPrice(ticker string, price decimal.Decimal) bool {
	pos, ok := p.positions[ticker]
	if !ok {
		return false
	}
	pos.MarketPrice = price
	return true
}

// RefreshPositionTimes stamps every open position's Time field to t; the
// driver calls this once per popped event, per spec.md §4.6.
func (p *Portfolio) RefreshPositionTimes(t time.Time) {
	for _, pos := range p.positions {
		pos.Time = t
	}
}

// allocateSequence returns the round-trip sequence id for ticker,
// assigning a fresh one (reusing a freed id if available) on first entry.
func (p *Portfolio) allocateSequence(ticker string) int64 {
	if id, ok := p.sequenceByTicker[ticker]; ok {
		return id
	}
	var id int64
	if n := len(p.freeSequenceIDs); n > 0 {
		id = p.freeSequenceIDs[n-1]
		p.freeSequenceIDs = p.freeSequenceIDs[:n-1]
	} else {
		id = p.nextSequenceID
		p.nextSequenceID++
	}
	p.sequenceByTicker[ticker] = id
	return id
}

// freeSequence returns ticker's sequence id to the free pool once its
// position flattens.
func (p *Portfolio) freeSequence(ticker string) {
	if id, ok := p.sequenceByTicker[ticker]; ok {
		delete(p.sequenceByTicker, ticker)
		p.freeSequenceIDs = append(p.freeSequenceIDs, id)
	}
}

// AddMarketTransaction records a fill, folding it into the position and
// freeing the ticker's sequence id if the fill flattens the position.
func (p *Portfolio) AddMarketTransaction(t time.Time, ticker string, dir Direction, price decimal.Decimal, shares int64, commission decimal.Decimal) {
	seq := p.allocateSequence(ticker)

	delta := shares
	if dir == Sell {
		delta = -shares
	}
	p.applyFillToPosition(t, ticker, price, delta)

	p.transactions = append(p.transactions, MarketTxn{
		Time: t, Ticker: ticker, Direction: dir, Price: price,
		Shares: shares, Commission: commission, SequenceID: seq,
	})

	if _, held := p.positions[ticker]; !held {
		p.freeSequence(ticker)
	}
}

// AddCashTransaction records a standalone cash movement.
func (p *Portfolio) AddCashTransaction(t time.Time, delta decimal.Decimal) {
	p.transactions = append(p.transactions, CashTxn{Time: t, CashDelta: delta})
}

// TransactionLog returns the append-only transaction log in insertion
// order.
func (p *Portfolio) TransactionLog() []Txn {
	out := make([]Txn, len(p.transactions))
	copy(out, p.transactions)
	return out
}

// UpdatePortfolioValues recomputes investment_value as
// Σ position.MarketPrice*position.Shares and writes a new snapshot at t,
// enforcing the cash + investment_value == portfolio_value invariant.
func (p *Portfolio) UpdatePortfolioValues(t time.Time) Snapshot {
	investment := decimal.Zero
	for _, pos := range p.positions {
		investment = investment.Add(pos.MarketPrice.Mul(decimal.NewFromInt(pos.Shares)))
	}
	cash := p.GetCash(t)
	total := cash.Add(investment)

	snap := Snapshot{Time: t, Cash: cash, InvestmentValue: investment, PortfolioValue: total}
	if n := len(p.snapshots); n > 0 && p.snapshots[n-1].Time.Equal(t) {
		p.snapshots[n-1] = snap
	} else {
		p.snapshots = append(p.snapshots, snap)
	}
	return snap
}

// Snapshots returns the dense, ascending snapshot series.
func (p *Portfolio) Snapshots() []Snapshot {
	out := make([]Snapshot, len(p.snapshots))
	copy(out, p.snapshots)
	return out
}

// Holdings returns, for every open position, its weight of total
// investment value (position_value / total_investment_value). Empty map
// when no positions are open.
func (p *Portfolio) Holdings() map[string]decimal.Decimal {
	total := decimal.Zero
	values := make(map[string]decimal.Decimal, len(p.positions))
	for ticker, pos := range p.positions {
		v := pos.MarketPrice.Mul(decimal.NewFromInt(pos.Shares))
		values[ticker] = v
		total = total.Add(v)
	}
	out := make(map[string]decimal.Decimal, len(values))
	if total.IsZero() {
		return out
	}
	for ticker, v := range values {
		out[ticker] = v.Div(total)
	}
	return out
}

// shortMarginMultiplier is Interactive Brokers' Reg-T-style initial margin
// on a short sale, collapsed to the single flat multiplier this kernel
// models (spec.md §9's short-margin Open Question, resolved per
// SPEC_FULL.md §12 in favor of the pandas-Portfolio variant's constant).
var shortMarginMultiplier = decimal.NewFromFloat(1.25)

// OpenShortAllowed reports whether opening a short for proceeds given cash
// on hand satisfies the margin requirement |proceeds| * 1.25 <= cash. Not
// reachable through ordinary Processor.Submit, which rejects any SELL
// whose shares exceed the held quantity before a short could open; kept
// for a future order type that submits shorts directly.
func OpenShortAllowed(proceeds, cash decimal.Decimal) bool {
	required := proceeds.Abs().Mul(shortMarginMultiplier)
	return required.LessThanOrEqual(cash)
}
