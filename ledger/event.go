package ledger

import (
	"math"
	"sort"
	"time"
)

// Kind enumerates the event types the ledger folds. The declaration
// order is the apply order for events sharing a timestamp: corporate
// actions first, then cash, then fills, then marks, so a mark always
// sees the tick's trades and actions before NAV is taken.
type Kind int

const (
	KindSplit Kind = iota
	KindDividend
	KindCash
	KindFill
	KindMark
)

func (k Kind) String() string {
	switch k {
	case KindSplit:
		return "split"
	case KindDividend:
		return "dividend"
	case KindCash:
		return "cash"
	case KindFill:
		return "fill"
	case KindMark:
		return "mark"
	}
	return "unknown"
}

// ParseKind maps the journal's string form back to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "split":
		return KindSplit, true
	case "dividend":
		return KindDividend, true
	case "cash":
		return KindCash, true
	case "fill":
		return KindFill, true
	case "mark":
		return KindMark, true
	}
	return 0, false
}

// Event is a journal entry. ID is the dedupe key: replaying the same
// set of events, in any order, folds to the same ledger. Only the
// fields relevant to Kind are meaningful.
type Event struct {
	ID     string
	Kind   Kind
	Time   time.Time
	Symbol string

	Qty    float64 // fill quantity, signed (+buy, -sell)
	Px     float64 // fill or mark price
	Delta  float64 // cash movement
	Ratio  float64 // split ratio
	Amount float64 // dividend per share
}

func CashEvent(id string, t time.Time, delta float64) Event {
	return Event{ID: id, Kind: KindCash, Time: t, Delta: delta}
}

func FillEvent(id string, t time.Time, symbol string, qty, px float64) Event {
	return Event{ID: id, Kind: KindFill, Time: t, Symbol: symbol, Qty: qty, Px: px}
}

func MarkEvent(id string, t time.Time, symbol string, px float64) Event {
	return Event{ID: id, Kind: KindMark, Time: t, Symbol: symbol, Px: px}
}

func SplitEvent(id string, t time.Time, symbol string, ratio float64) Event {
	return Event{ID: id, Kind: KindSplit, Time: t, Symbol: symbol, Ratio: ratio}
}

func DividendEvent(id string, t time.Time, symbol string, amount float64) Event {
	return Event{ID: id, Kind: KindDividend, Time: t, Symbol: symbol, Amount: amount}
}

// valid reports whether the event is well-formed enough to apply.
// Malformed events are skipped by Recompute, never fatal.
func (e Event) valid() bool {
	if e.ID == "" {
		return false
	}
	switch e.Kind {
	case KindCash:
		return finite(e.Delta)
	case KindFill:
		return e.Symbol != "" && finite(e.Qty) && finite(e.Px) && e.Qty != 0 && e.Px > 0
	case KindMark:
		return e.Symbol != "" && finite(e.Px) && e.Px > 0
	case KindSplit:
		return e.Symbol != "" && finite(e.Ratio) && e.Ratio > 0
	case KindDividend:
		return e.Symbol != "" && finite(e.Amount)
	}
	return false
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// less is the total order events fold in: timestamp, then Kind apply
// priority, then ID. The ID tiebreak makes the order independent of
// the caller's array order even for same-ts same-kind events.
func less(a, b Event) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.ID < b.ID
}

// normalize dedupes by ID (the later occurrence in the input wins) and
// sorts into apply order.
func normalize(events []Event) []Event {
	byID := make(map[string]Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}
	out := make([]Event, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
