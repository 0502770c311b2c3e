// Package sim is the paper broker: a matching engine that simulates
// order lifecycle against incoming quotes. One engine per portfolio;
// callers drive it from a single logical tick at a time.
package sim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/pkg/id"
)

// fillEps: an order counts as fully filled once the remainder drops
// below this quantity.
const fillEps = 1e-9

const (
	ReasonInsufficientBP = "insufficient buying power"
	ReasonIOCRemainder   = "IOC remainder canceled"
	ReasonFOKUnavailable = "FOK size unavailable"
)

// Config tunes the paper account.
type Config struct {
	Cash        float64
	Leverage    float64 // 1 = cash account
	FeeBps      float64
	SlippageBps float64
}

var _ broker.Broker = (*Engine)(nil)

type Engine struct {
	mu      sync.Mutex
	cfg     Config
	led     *ledger.Ledger
	quotes  *market.QuoteStore
	orders  map[string]*broker.Order
	fills   []broker.Fill
	jour    journal.Journal
	real    float64 // realized P&L
	hw      float64 // equity high-water mark for journaled drawdown
	lastNow time.Time
}

func NewEngine(cfg Config, j journal.Journal) *Engine {
	if cfg.Leverage <= 0 {
		cfg.Leverage = 1
	}
	if j == nil {
		j = journal.Noop{}
	}
	return &Engine{
		cfg:    cfg,
		led:    ledger.New(cfg.Cash),
		quotes: market.NewQuoteStore(),
		orders: make(map[string]*broker.Order),
		jour:   j,
		hw:     cfg.Cash,
	}
}

// Submit validates and registers an order, matching immediately if a
// quote for the symbol is already known. Business failures come back
// as a terminal rejected Order, never an error.
func (e *Engine) Submit(ctx context.Context, req broker.OrderRequest) broker.Order {
	_ = ctx // no blocking work; kept for interface symmetry

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	o := &broker.Order{
		ID:      id.New(),
		Symbol:  req.Symbol,
		Side:    req.Side,
		Type:    req.Type,
		Qty:     req.Qty,
		LimitPx: req.LimitPx,
		TIF:     req.TIF,
		Status:  broker.New,
		Created: now,
		Updated: now,
	}
	e.orders[o.ID] = o

	switch {
	case req.Symbol == "":
		e.rejectLocked(o, "missing symbol")
	case req.Qty <= 0:
		e.rejectLocked(o, "quantity must be positive")
	case req.Type == broker.Limit && req.LimitPx <= 0:
		e.rejectLocked(o, "limit order requires limit price")
	default:
		o.Status = broker.Working
		if q, err := e.quotes.Get(o.Symbol); err == nil {
			e.matchLocked(o, q)
		}
	}
	return *o
}

// Amend patches a working order. Terminal orders cannot be amended.
func (e *Engine) Amend(ctx context.Context, orderID string, patch broker.OrderPatch) (broker.Order, bool) {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok || o.Status.Terminal() {
		return broker.Order{}, false
	}
	if patch.Qty != nil && *patch.Qty > o.FilledQty {
		o.Qty = *patch.Qty
	}
	if patch.LimitPx != nil {
		o.LimitPx = *patch.LimitPx
	}
	if patch.TIF != nil {
		o.TIF = *patch.TIF
	}
	o.Updated = e.now()

	if q, err := e.quotes.Get(o.Symbol); err == nil {
		e.matchLocked(o, q)
	}
	return *o, true
}

// Cancel flips a non-terminal order to canceled. Cancellation is
// cooperative and immediate; there is no in-flight work to abort.
func (e *Engine) Cancel(ctx context.Context, orderID, reason string) (broker.Order, bool) {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok || o.Status.Terminal() {
		return broker.Order{}, false
	}
	if reason == "" {
		reason = "canceled by caller"
	}
	o.Status = broker.Canceled
	o.Reason = reason
	o.Updated = e.now()
	return *o, true
}

// OnQuote stores the quote, triggers matching for every open order on
// the symbol, marks the ledger to market, and journals an equity point.
func (e *Engine) OnQuote(q market.Quote) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !q.Time.IsZero() {
		e.lastNow = q.Time
	}
	e.quotes.Set(q)

	// Deterministic match order: ULIDs sort by submission time.
	ids := make([]string, 0, len(e.orders))
	for oid, o := range e.orders {
		if !o.Status.Terminal() && o.Symbol == q.Symbol {
			ids = append(ids, oid)
		}
	}
	sort.Strings(ids)
	for _, oid := range ids {
		e.matchLocked(e.orders[oid], q)
	}

	e.markLocked(q)
}

// Account returns the derived account view.
func (e *Engine) Account(ctx context.Context) broker.Account {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accountLocked()
}

// Order returns a copy of the order by id.
func (e *Engine) Order(orderID string) (broker.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return broker.Order{}, false
	}
	return *o, true
}

// Orders returns copies of all orders, sorted by id.
func (e *Engine) Orders() []broker.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Fills returns the append-only fill log.
func (e *Engine) Fills() []broker.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]broker.Fill(nil), e.fills...)
}

// Ledger exposes the engine's ledger for mark-to-market readers.
func (e *Engine) Ledger() *ledger.Ledger { return e.led }

func (e *Engine) accountLocked() broker.Account {
	gross := e.led.Gross()
	return broker.Account{
		Cash:        e.led.Cash,
		Equity:      e.led.NAV,
		BuyingPower: e.led.NAV*e.cfg.Leverage - gross,
		RealizedPnL: e.real,
		Positions:   e.led.Positions(),
	}
}

func (e *Engine) now() time.Time {
	if !e.lastNow.IsZero() {
		return e.lastNow
	}
	return time.Now().UTC()
}

func (e *Engine) rejectLocked(o *broker.Order, reason string) {
	o.Status = broker.Rejected
	o.Reason = reason
	o.Updated = e.now()
	metrics.OrdersRejected.Inc()
}

func (e *Engine) markLocked(q market.Quote) {
	px, ok := markPrice(q)
	if !ok {
		return
	}
	e.led.Mark(q.Symbol, px)

	if e.led.NAV > e.hw {
		e.hw = e.led.NAV
	}
	// Journal errors are non-fatal here; the engine never aborts a tick.
	_ = e.jour.RecordEquity(ledger.EquityPoint{
		Time:     q.Time,
		NAV:      e.led.NAV,
		Drawdown: e.led.NAV - e.hw,
	})
}

// markPrice is the mark-to-market price for a quote: mid, else the
// average of bid/ask, else last.
func markPrice(q market.Quote) (float64, bool) {
	switch {
	case q.Mid > 0:
		return q.Mid, true
	case q.Bid > 0 && q.Ask > 0:
		return (q.Bid + q.Ask) / 2, true
	case q.Last > 0:
		return q.Last, true
	}
	return 0, false
}
