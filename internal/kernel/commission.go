package kernel

import "github.com/shopspring/decimal"

// Interactive Brokers' published tiered schedule, collapsed to the single
// flat-rate tier this kernel models: $0.01 per share, floored at $1.00 and
// capped at 0.5% of trade value.
var (
	perShareRate  = decimal.NewFromFloat(0.01)
	minCommission = decimal.NewFromInt(1)
	maxPct        = decimal.NewFromFloat(0.005)
)

// Commission is a pure function of price and share count: no state, no
// broker lookup. The caller (config.Session.Validate) is responsible for
// rejecting any broker other than Interactive Brokers before a run starts
// — this is the only schedule the kernel implements.
func Commission(price decimal.Decimal, shares int64, includeCommission bool) decimal.Decimal {
	if !includeCommission {
		return decimal.Zero
	}
	if shares < 0 {
		shares = -shares
	}
	n := decimal.NewFromInt(shares)
	raw := perShareRate.Mul(n)
	capAmt := maxPct.Mul(price).Mul(n)

	// Cap first, then floor, so that a cap below the floor (any notional
	// under $200) resolves to the floor rather than undercharging — matching
	// the source's floor-first exclusive if/elif rather than a naive
	// min/max clamp in the wrong order.
	c := raw
	if c.GreaterThan(capAmt) {
		c = capAmt
	}
	if c.LessThan(minCommission) {
		c = minCommission
	}
	return c
}
