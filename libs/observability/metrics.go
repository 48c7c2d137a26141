package observability

import (
	"context"
	"time"
)

// RecordFill logs one order fill as a structured metric event.
func RecordFill(ctx context.Context, ticker, direction string, shares int64, price, commission float64) {
	LogEvent(ctx, "info", "metric", map[string]any{
		"name":       "order_fill",
		"ticker":     ticker,
		"direction":  direction,
		"shares":     shares,
		"price":      price,
		"commission": commission,
	})
}

// RecordRejection logs a non-fatal order rejection (validation failure,
// insufficient cash, or a FOK that couldn't fill).
func RecordRejection(ctx context.Context, ticker, reason string) {
	LogEvent(ctx, "warn", "metric", map[string]any{
		"name":   "order_rejected",
		"ticker": ticker,
		"reason": reason,
	})
}

// RecordRunDuration logs how long a full backtest run took, and how many
// ticks it processed.
func RecordRunDuration(ctx context.Context, duration time.Duration, ticksProcessed int) {
	LogEvent(ctx, "info", "metric", map[string]any{
		"name":            "run_duration",
		"latency_ms":      duration.Milliseconds(),
		"ticks_processed": ticksProcessed,
	})
}
