package kernel

import (
	"container/heap"
	"time"

	"github.com/shopspring/decimal"
)

// EventClass is the primary ordering key in the priority queue. Lower
// values pop earlier. MARGIN_CALL is reserved for a future event kind —
// no EventKind currently carries it, but the priority level is kept so
// the ordering table in spec.md §4.3 is representable without a later
// breaking change.
type EventClass int

const (
	ClassMarginCall EventClass = 1
	ClassOrder      EventClass = 2
	ClassMarket     EventClass = 3
)

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	KindQuote EventKind = iota
	KindTrade
	KindMarketStatus
	KindOrder
)

func classFor(k EventKind) EventClass {
	if k == KindOrder {
		return ClassOrder
	}
	return ClassMarket
}

// MarketStatus is the payload of a KindMarketStatus event.
type MarketStatus int

const (
	MarketOpen MarketStatus = iota
	MarketClose
)

// QuotePayload is the payload of a KindQuote event.
type QuotePayload struct {
	Bid, Ask       decimal.Decimal
	HasBid, HasAsk bool
	BidSize        int64
	AskSize        int64
}

// TradePayload is the payload of a KindTrade event.
type TradePayload struct {
	Price decimal.Decimal
	Size  int64
}

// Event is the tagged variant over {Quote, Trade, MarketStatus, Order},
// each carrying a timestamp. Seq is assigned by the queue on Push and
// breaks ties within an identical (Class, Timestamp).
type Event struct {
	Kind      EventKind
	Class     EventClass
	Timestamp time.Time
	Seq       uint64

	Ticker string // Quote / Trade
	Quote  QuotePayload
	Trade  TradePayload
	Status MarketStatus // MarketStatus
	Order  *Order       // Order
}

func newEvent(kind EventKind, ticker string, t time.Time) Event {
	return Event{Kind: kind, Class: classFor(kind), Ticker: ticker, Timestamp: t}
}

// eventHeap implements container/heap.Interface, ordered by
// (class_priority, timestamp, insertion_seq) — all ascending, so Pop
// always returns the earliest-due, highest-priority, oldest-inserted event.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Class != b.Class {
		return a.Class < b.Class
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Seq < b.Seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// EventQueue is the bounded-priority min-heap described in spec.md §4.3.
// An order submitted at tick time t always executes before a quote/trade
// carrying the same timestamp, because ClassOrder < ClassMarket.
type EventQueue struct {
	h       eventHeap
	nextSeq uint64
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	heap.Init(&q.h)
	return q
}

// Push enqueues e, assigning it the next insertion sequence number.
func (q *EventQueue) Push(e Event) {
	e.Seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.h, &e)
}

// Pop removes and returns the earliest-due event. ok is false if the
// queue is empty.
func (q *EventQueue) Pop() (Event, bool) {
	if q.h.Len() == 0 {
		return Event{}, false
	}
	e := heap.Pop(&q.h).(*Event)
	return *e, true
}

// Len reports the number of pending events.
func (q *EventQueue) Len() int { return q.h.Len() }
