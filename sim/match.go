package sim

import (
	"math"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/pkg/id"
)

// matchLocked attempts to execute an open order against a quote.
// Callers hold e.mu.
func (e *Engine) matchLocked(o *broker.Order, q market.Quote) {
	if o.Status.Terminal() {
		return
	}

	buy := o.Side == broker.Buy
	ref, ok := q.Ref(buy)
	if !ok {
		e.expireTIFLocked(o, q.Time)
		return
	}

	// Limit orders fill only once the reference price has crossed.
	if o.Type == broker.Limit {
		crossed := (buy && ref <= o.LimitPx) || (!buy && ref >= o.LimitPx)
		if !crossed {
			e.expireTIFLocked(o, q.Time)
			return
		}
	}

	// Slippage moves the execution against the trader.
	px := ref * (1 + o.Side.Sign()*e.cfg.SlippageBps/10_000)

	avail := o.Remaining()
	if q.Size > 0 && q.Size < avail {
		avail = q.Size
	}

	if o.TIF == broker.FOK && avail < o.Remaining()-fillEps {
		// Fill-or-kill: the book does not advertise full size, so kill
		// rather than fill opportunistically. Quotes with no size
		// information still fill fully (backtest optimism).
		e.killLocked(o, ReasonFOKUnavailable, q.Time)
		return
	}

	// Execution-time buying power check. This is separate from the risk
	// gate, which runs before submission.
	if !e.buyingPowerOKLocked(o.Symbol, avail*o.Side.Sign(), px) {
		if o.FilledQty > 0 {
			e.killLocked(o, ReasonInsufficientBP, q.Time)
		} else {
			e.rejectLocked(o, ReasonInsufficientBP)
		}
		return
	}

	e.settleLocked(o, avail, px, q.Time)
	e.expireTIFLocked(o, q.Time)
}

// settleLocked applies a fill: ledger cash/position via the shared
// apply-fill routine, order VWAP, fill record, journal, metrics.
func (e *Engine) settleLocked(o *broker.Order, qty, px float64, ts time.Time) {
	realized, fee := e.led.ApplyFill(o.Symbol, qty*o.Side.Sign(), px, e.cfg.FeeBps)
	e.real += realized

	o.AvgFillPx = (o.AvgFillPx*o.FilledQty + px*qty) / (o.FilledQty + qty)
	o.FilledQty += qty
	o.Updated = e.tickTime(ts)

	f := broker.Fill{
		ID:      id.New(),
		OrderID: o.ID,
		Symbol:  o.Symbol,
		Side:    o.Side,
		Qty:     qty,
		Price:   px,
		Fee:     fee,
		Time:    o.Updated,
	}
	e.fills = append(e.fills, f)
	_ = e.jour.RecordFill(f)
	metrics.FillsTotal.WithLabelValues(o.Side.String()).Inc()

	e.maybeComplete(o)
}

// maybeComplete moves an order into filled once the remainder is dust,
// or flags it partially filled when some quantity has executed.
func (e *Engine) maybeComplete(o *broker.Order) {
	if o.FilledQty >= o.Qty-fillEps {
		o.Status = broker.Filled
		return
	}
	if o.FilledQty > 0 {
		o.Status = broker.PartiallyFilled
	}
}

// expireTIFLocked cancels whatever an immediate-or-cancel order could
// not fill in this evaluation.
func (e *Engine) expireTIFLocked(o *broker.Order, ts time.Time) {
	if o.Status.Terminal() || o.TIF != broker.IOC {
		return
	}
	if o.Remaining() > fillEps {
		e.killLocked(o, ReasonIOCRemainder, ts)
	}
}

func (e *Engine) killLocked(o *broker.Order, reason string, ts time.Time) {
	o.Status = broker.Canceled
	o.Reason = reason
	o.Updated = e.tickTime(ts)
}

// buyingPowerOKLocked estimates post-trade gross exposure and refuses
// the fill when it would exceed equity times leverage.
func (e *Engine) buyingPowerOKLocked(symbol string, signedQty, px float64) bool {
	pos := e.led.Position(symbol)
	last := e.led.LastPrices()

	gross := math.Abs((pos.Qty + signedQty) * px)
	for s, p := range last {
		if s == symbol {
			continue
		}
		gross += math.Abs(e.led.Position(s).Qty * p)
	}

	fee := math.Abs(signedQty) * px * e.cfg.FeeBps / 10_000
	equity := e.led.NAV - fee
	return gross <= equity*e.cfg.Leverage
}

func (e *Engine) tickTime(ts time.Time) time.Time {
	if !ts.IsZero() {
		return ts
	}
	return e.now()
}
