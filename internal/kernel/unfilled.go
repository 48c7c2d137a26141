package kernel

// UnfilledBook holds the three TIF queues of orders awaiting a fillable
// quote: GTC, DAY, and AON. Insertion order is preserved within each
// queue; FOK and IOC orders never appear here.
type UnfilledBook struct {
	gtc []*Order
	day []*Order
	aon []*Order
}

// NewUnfilledBook returns an empty book.
func NewUnfilledBook() *UnfilledBook {
	return &UnfilledBook{}
}

func (b *UnfilledBook) queueFor(tif TimeInForce) *[]*Order {
	switch tif {
	case GTC:
		return &b.gtc
	case DAY:
		return &b.day
	case AON:
		return &b.aon
	default:
		return nil
	}
}

// Push appends order to the queue matching its TIF. Orders with any other
// TIF are a caller bug.
func (b *UnfilledBook) Push(o *Order) {
	q := b.queueFor(o.TIF)
	if q == nil {
		panicInvariant("unfilled book: order %s has non-queueable TIF %s", o.ID, o.TIF)
	}
	*q = append(*q, o)
}

// Remove deletes order from whichever queue holds it (a no-op if absent).
func (b *UnfilledBook) Remove(o *Order) {
	for _, q := range []*[]*Order{&b.gtc, &b.day, &b.aon} {
		for i, cand := range *q {
			if cand.ID == o.ID {
				*q = append((*q)[:i], (*q)[i+1:]...)
				return
			}
		}
	}
}

// Contains reports whether order is already queued.
func (b *UnfilledBook) Contains(o *Order) bool {
	for _, q := range [][]*Order{b.gtc, b.day, b.aon} {
		for _, cand := range q {
			if cand.ID == o.ID {
				return true
			}
		}
	}
	return false
}

// ForTicker returns every queued order (across GTC, DAY, AON) for ticker,
// for the driver's requery-on-quote pass.
func (b *UnfilledBook) ForTicker(ticker string) []*Order {
	var out []*Order
	for _, q := range [][]*Order{b.gtc, b.day, b.aon} {
		for _, o := range q {
			if o.Ticker == ticker {
				out = append(out, o)
			}
		}
	}
	return out
}

// FlushDay removes and returns every order in the DAY queue, for the
// MARKET_CLOSE handler.
func (b *UnfilledBook) FlushDay() []*Order {
	out := b.day
	b.day = nil
	return out
}

// Len is the total number of queued orders across all three queues.
func (b *UnfilledBook) Len() int {
	return len(b.gtc) + len(b.day) + len(b.aon)
}
