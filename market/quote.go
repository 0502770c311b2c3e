package market

import (
	"errors"
	"sync"
	"time"
)

// Quote is a top-of-book snapshot pushed in by an external feed. Any of
// Bid/Ask/Last/Mid may be zero when the venue did not report that side.
// Size, when non-zero, is the quantity available at the top of book.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
	Last   float64
	Mid    float64
	Size   float64
	Time   time.Time
}

// Ref returns the reference price for an execution on the given side:
// prefer mid, else ask then last for buys, bid then last for sells.
// ok is false when the quote carries no usable price at all.
func (q Quote) Ref(buy bool) (px float64, ok bool) {
	if q.Mid > 0 {
		return q.Mid, true
	}
	if buy {
		if q.Ask > 0 {
			return q.Ask, true
		}
	} else {
		if q.Bid > 0 {
			return q.Bid, true
		}
	}
	if q.Last > 0 {
		return q.Last, true
	}
	return 0, false
}

var ErrNoQuote = errors.New("market: no quote for symbol")

type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Symbol] = q
}

func (qs *QuoteStore) Get(symbol string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[symbol]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}
