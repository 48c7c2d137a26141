package kernel

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestOrder(ticker string, tif TimeInForce) *Order {
	return NewOrder(time.Now(), Buy, ticker, 1, Market, decimal.Zero, tif)
}

func TestUnfilledBook_PushAndContains(t *testing.T) {
	b := NewUnfilledBook()
	o := newTestOrder("MSFT", GTC)

	if b.Contains(o) {
		t.Fatal("expected empty book to not contain order")
	}
	b.Push(o)
	if !b.Contains(o) {
		t.Fatal("expected book to contain pushed order")
	}
	if b.Len() != 1 {
		t.Errorf("expected len=1, got %d", b.Len())
	}
}

func TestUnfilledBook_PushPanicsOnNonQueueableTIF(t *testing.T) {
	for _, tif := range []TimeInForce{FOK, IOC} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic pushing a %s order", tif)
				}
			}()
			b := NewUnfilledBook()
			b.Push(newTestOrder("MSFT", tif))
		}()
	}
}

func TestUnfilledBook_RemoveIsNoOpWhenAbsent(t *testing.T) {
	b := NewUnfilledBook()
	o := newTestOrder("MSFT", GTC)
	b.Remove(o) // must not panic
	if b.Len() != 0 {
		t.Errorf("expected len=0, got %d", b.Len())
	}
}

func TestUnfilledBook_RemoveDeletesFromCorrectQueue(t *testing.T) {
	b := NewUnfilledBook()
	gtc := newTestOrder("MSFT", GTC)
	day := newTestOrder("MSFT", DAY)
	aon := newTestOrder("MSFT", AON)
	b.Push(gtc)
	b.Push(day)
	b.Push(aon)

	b.Remove(day)
	if b.Contains(day) {
		t.Error("expected day order removed")
	}
	if !b.Contains(gtc) || !b.Contains(aon) {
		t.Error("expected other queues untouched")
	}
	if b.Len() != 2 {
		t.Errorf("expected len=2, got %d", b.Len())
	}
}

func TestUnfilledBook_ForTicker_SpansAllQueues(t *testing.T) {
	b := NewUnfilledBook()
	b.Push(newTestOrder("MSFT", GTC))
	b.Push(newTestOrder("MSFT", DAY))
	b.Push(newTestOrder("MSFT", AON))
	b.Push(newTestOrder("AAPL", GTC))

	got := b.ForTicker("MSFT")
	if len(got) != 3 {
		t.Errorf("expected 3 MSFT orders across queues, got %d", len(got))
	}
}

func TestUnfilledBook_FlushDay_OnlyDayQueue(t *testing.T) {
	b := NewUnfilledBook()
	gtc := newTestOrder("MSFT", GTC)
	day1 := newTestOrder("MSFT", DAY)
	day2 := newTestOrder("AAPL", DAY)
	b.Push(gtc)
	b.Push(day1)
	b.Push(day2)

	flushed := b.FlushDay()
	if len(flushed) != 2 {
		t.Fatalf("expected 2 flushed DAY orders, got %d", len(flushed))
	}
	if b.Len() != 1 {
		t.Errorf("expected only the GTC order to remain, got len=%d", b.Len())
	}
	if !b.Contains(gtc) {
		t.Error("expected GTC order to survive the flush")
	}

	// A second flush on an already-empty DAY queue returns nothing and
	// leaves the rest of the book untouched.
	if second := b.FlushDay(); len(second) != 0 {
		t.Errorf("expected second flush to be empty, got %d", len(second))
	}
	if b.Len() != 1 {
		t.Errorf("expected len still 1 after second flush, got %d", b.Len())
	}
}

func TestUnfilledBook_InsertionOrderPreserved(t *testing.T) {
	b := NewUnfilledBook()
	first := newTestOrder("MSFT", GTC)
	second := newTestOrder("MSFT", GTC)
	third := newTestOrder("MSFT", GTC)
	b.Push(first)
	b.Push(second)
	b.Push(third)

	got := b.ForTicker("MSFT")
	if got[0].ID != first.ID || got[1].ID != second.ID || got[2].ID != third.ID {
		t.Error("expected FIFO insertion order preserved within a TIF queue")
	}
}
