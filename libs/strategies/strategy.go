// Package strategies holds the built-in Strategy implementations and the
// registry that looks them up by name for a backtest run.
package strategies

import (
	"context"

	"jax-backtest-engine/internal/kernel"
)

// Strategy is a registrable alias of kernel.Strategy; kept as a distinct
// name in this package so registry.go doesn't need to import kernel just
// to spell the interface it stores.
type Strategy = kernel.Strategy

// Metadata describes a registered strategy for listing/introspection
// purposes (Registry.Metadata).
type Metadata struct {
	ID          string
	Name        string
	Description string
}

// NoOp is the trivial strategy: it never places an order. Useful as a
// baseline run (spec.md §8 scenario 1) and in tests.
type NoOp struct{}

func (NoOp) TradeLogic(ctx context.Context, api kernel.API) {}

// BuyAndHold buys Shares of Ticker the first time it sees an open position
// slot available (its own order hasn't already filled or gone unfilled)
// and never trades again.
type BuyAndHold struct {
	Ticker string
	Shares int64
	TIF    kernel.TimeInForce

	placed bool
}

func (b *BuyAndHold) TradeLogic(ctx context.Context, api kernel.API) {
	if b.placed {
		return
	}
	if api.Shares(b.Ticker) > 0 {
		b.placed = true
		return
	}
	o := api.CreateMarketOrder(b.Ticker, kernel.Buy, b.Shares, b.TIF)
	if err := api.PlaceOrder(o); err == nil {
		b.placed = true
	}
}
