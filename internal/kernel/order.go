package kernel

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the side of an order.
type Direction int

const (
	Buy Direction = iota
	Sell
)

func (d Direction) String() string {
	if d == Sell {
		return "SELL"
	}
	return "BUY"
}

// OrderKind distinguishes market orders (execute at top-of-book) from
// limit orders (execute only at a price at least as good as LimitPrice).
type OrderKind int

const (
	Market OrderKind = iota
	Limit
)

// TimeInForce governs what happens to the unfilled remainder of an order.
type TimeInForce int

const (
	GTC TimeInForce = iota // Good-Til-Cancelled: queued until filled or cancelled.
	DAY                    // expires at the next MARKET_CLOSE.
	FOK                    // Fill-Or-Kill: all-or-nothing, single attempt, never queued.
	IOC                    // Immediate-Or-Cancel: fill what's available now, cancel the rest.
	AON                    // All-Or-None: all-or-nothing, may wait in the unfilled book.
)

func (tif TimeInForce) String() string {
	switch tif {
	case GTC:
		return "GTC"
	case DAY:
		return "DAY"
	case FOK:
		return "FOK"
	case IOC:
		return "IOC"
	case AON:
		return "AON"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus tracks fill progress. Shares decreases monotonically via
// partial fills until the order is removed (filled or cancelled).
type OrderStatus int

const (
	Unfilled OrderStatus = iota
	Partial
	Filled
)

// Order is an immutable-at-submission descriptor: once accepted, its
// Direction, Ticker, Kind, LimitPrice and TIF never change. Shares and
// Status mutate as fills are applied.
type Order struct {
	ID         string
	CreatedAt  time.Time
	Direction  Direction
	Ticker     string
	Shares     int64 // remaining quantity
	Original   int64 // quantity at submission
	Kind       OrderKind
	LimitPrice decimal.Decimal // meaningful iff Kind == Limit
	TIF        TimeInForce
	Status     OrderStatus
}

// NewOrder constructs an order with a generated id and Unfilled status.
// shares must be positive; callers validate before calling this.
func NewOrder(t time.Time, dir Direction, ticker string, shares int64, kind OrderKind, limitPrice decimal.Decimal, tif TimeInForce) *Order {
	return &Order{
		ID:         uuid.NewString(),
		CreatedAt:  t,
		Direction:  dir,
		Ticker:     ticker,
		Shares:     shares,
		Original:   shares,
		Kind:       kind,
		LimitPrice: limitPrice,
		TIF:        tif,
		Status:     Unfilled,
	}
}
