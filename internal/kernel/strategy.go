package kernel

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Strategy is the user-supplied callback contract (spec.md §6). TradeLogic
// is required; AtTick and AtEndOfTick are optional and detected via the
// AtTicker / AtEndOfTicker interfaces below — a strategy that doesn't need
// them simply doesn't implement them.
type Strategy interface {
	TradeLogic(ctx context.Context, api API)
}

// AtTicker is an optional Strategy extension invoked before TradeLogic on
// every tick, after the driver's own state updates for that event.
type AtTicker interface {
	AtTick(ctx context.Context, api API)
}

// AtEndOfTicker is an optional Strategy extension invoked after TradeLogic
// on every tick.
type AtEndOfTicker interface {
	AtEndOfTick(ctx context.Context, api API)
}

// API is the strategy-facing query and mutation surface. The Driver
// implements it directly — it is the sole owner of all kernel state.
type API interface {
	// Queries
	Time() time.Time
	Cash() decimal.Decimal
	PortfolioValue() decimal.Decimal
	TotalInvestmentValue() decimal.Decimal
	Shares(ticker string) int64
	OpenPositions(tickers ...string) []Position
	Holdings() map[string]decimal.Decimal
	MarketStatus() MarketStatus
	TransactionLog() []Txn
	NumUnfilledOrders() int

	// Mutations
	AddCash(amount decimal.Decimal) error
	RemoveCash(amount decimal.Decimal) error
	CreateMarketOrder(ticker string, dir Direction, shares int64, tif TimeInForce) *Order
	CreateLimitOrder(ticker string, dir Direction, shares int64, limitPrice decimal.Decimal, tif TimeInForce) *Order
	PlaceOrder(o *Order) error
	CancelUnfilledOrder(o *Order)
	CancelAllUnfilledOrders()
}
