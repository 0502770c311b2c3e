package ledger

import (
	"math"
	"sort"
	"time"
)

// snapEps: positions whose magnitude falls below this are treated as
// closed and snapped to exactly zero qty / zero average price.
const snapEps = 1e-12

// Position is a signed holding. Invariant: Qty == 0 implies AvgPx == 0.
type Position struct {
	Symbol string
	Qty    float64
	AvgPx  float64
}

// Ledger is portfolio state produced by folding events in timestamp
// order. It is mutated only through Apply/ApplyFill.
type Ledger struct {
	Cash      float64
	Time      time.Time
	NAV       float64
	positions map[string]*Position
	lastPx    map[string]float64
}

func New(initialCash float64) *Ledger {
	return &Ledger{
		Cash:      initialCash,
		NAV:       initialCash,
		positions: make(map[string]*Position),
		lastPx:    make(map[string]float64),
	}
}

// Position returns a copy of the holding for symbol; the zero Position
// means flat.
func (l *Ledger) Position(symbol string) Position {
	if p, ok := l.positions[symbol]; ok {
		return *p
	}
	return Position{Symbol: symbol}
}

// Positions returns open holdings sorted by symbol.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// LastPrices returns the most recent price seen per symbol, from marks
// and fills alike.
func (l *Ledger) LastPrices() map[string]float64 {
	out := make(map[string]float64, len(l.lastPx))
	for s, px := range l.lastPx {
		out[s] = px
	}
	return out
}

// Gross returns total absolute position notional at last prices.
func (l *Ledger) Gross() float64 {
	var g float64
	for s, p := range l.positions {
		g += math.Abs(p.Qty * l.lastPx[s])
	}
	return g
}

// Revalue recomputes NAV as cash plus mark-to-market position value.
func (l *Ledger) Revalue() {
	nav := l.Cash
	for s, p := range l.positions {
		nav += p.Qty * l.lastPx[s]
	}
	l.NAV = nav
}

// ApplyFill settles a signed fill against the ledger: cash moves by
// -qty*px minus cost (costBps of notional), the position average price
// updates by notional-weighted VWAP when adding in the same direction,
// and resets to the fill price on a flip. No residue survives a cross
// through zero. Returns the realized P&L on any closed quantity and
// the cost charged.
//
// This is the single fill-settlement routine: the replay engine and
// the matching engine both route through it.
func (l *Ledger) ApplyFill(symbol string, qty, px, costBps float64) (realized, cost float64) {
	cost = math.Abs(qty) * px * costBps / 10_000
	l.Cash += -qty*px - cost

	p, ok := l.positions[symbol]
	if !ok {
		p = &Position{Symbol: symbol}
		l.positions[symbol] = p
	}

	switch {
	case p.Qty == 0 || sameSign(p.Qty, qty):
		// Adding to (or opening) a position: VWAP the entry.
		notional := math.Abs(p.Qty)*p.AvgPx + math.Abs(qty)*px
		p.Qty += qty
		p.AvgPx = notional / math.Abs(p.Qty)
	default:
		closed := math.Min(math.Abs(qty), math.Abs(p.Qty))
		if p.Qty > 0 {
			realized = closed * (px - p.AvgPx)
		} else {
			realized = closed * (p.AvgPx - px)
		}
		p.Qty += qty
		if math.Abs(p.Qty) <= snapEps {
			p.Qty, p.AvgPx = 0, 0
		} else if !sameSign(p.Qty, p.Qty-qty) {
			// Flipped through zero: the remainder entered at the fill price.
			p.AvgPx = px
		}
	}

	if math.Abs(p.Qty) <= snapEps {
		delete(l.positions, symbol)
	}
	l.lastPx[symbol] = px
	return realized, cost
}

// Mark records a last price for symbol without touching positions.
// Callers holding a live ledger (the matching engine) use this to
// mark-to-market between fills; the event fold uses apply.
func (l *Ledger) Mark(symbol string, px float64) {
	l.lastPx[symbol] = px
	l.Revalue()
}

// apply folds one already-validated event. costBps applies to fills only.
func (l *Ledger) apply(e Event, costBps float64) {
	switch e.Kind {
	case KindCash:
		l.Cash += e.Delta
	case KindFill:
		l.ApplyFill(e.Symbol, e.Qty, e.Px, costBps)
	case KindMark:
		l.lastPx[e.Symbol] = e.Px
	case KindSplit:
		if p, ok := l.positions[e.Symbol]; ok {
			p.Qty *= e.Ratio
			p.AvgPx /= e.Ratio
		}
	case KindDividend:
		if p, ok := l.positions[e.Symbol]; ok {
			l.Cash += p.Qty * e.Amount
		}
	}
	l.Time = e.Time
	l.Revalue()
}

func sameSign(a, b float64) bool {
	return (a > 0) == (b > 0)
}
