// Package replay drives quote and order scripts through the risk gate
// and matching engine: mark prices, validate, submit, fold fills, feed
// equity back into drawdown tracking. One runner per portfolio.
package replay

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/sim"
)

// Report summarizes a run.
type Report struct {
	Cash        float64
	Equity      float64
	RealizedPnL float64
	MaxDrawdown float64 // non-positive fraction
	Fills       int
	Submitted   int
	Gated       int // orders pruned by the risk gate
}

type Runner struct {
	cfg  *config.Config
	log  *zap.Logger
	eng  *sim.Engine
	gate *risk.Gate
	jour journal.Journal
}

// New builds a runner from config: journal backend, paper engine, and
// a fresh gate seeded with the configured limits and symbol metadata.
func New(cfg *config.Config, log *zap.Logger) (*Runner, error) {
	if log == nil {
		log = zap.NewNop()
	}

	jour, err := openJournal(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	staleness, err := cfg.Risk.ParseStaleness()
	if err != nil {
		return nil, err
	}
	gate := risk.NewGate(risk.Limits{
		MaxDrawdown:    cfg.Risk.MaxDrawdown,
		MaxGross:       cfg.Risk.MaxGross,
		MaxSingle:      cfg.Risk.MaxSingle,
		CorrelationCap: cfg.Risk.CorrelationCap,
		Staleness:      staleness,
		SectorCaps:     cfg.Risk.SectorCaps,
		RegionCaps:     cfg.Risk.RegionCaps,
	})
	for sym, meta := range cfg.Symbols {
		gate.SetMeta(sym, meta)
	}

	eng := sim.NewEngine(sim.Config{
		Cash:        cfg.Account.Cash,
		Leverage:    cfg.Account.Leverage,
		FeeBps:      cfg.Account.FeeBps,
		SlippageBps: cfg.Account.SlippageBps,
	}, jour)

	return &Runner{cfg: cfg, log: log, eng: eng, gate: gate, jour: jour}, nil
}

func (r *Runner) Engine() *sim.Engine { return r.eng }
func (r *Runner) Gate() *risk.Gate    { return r.gate }

func (r *Runner) Close() error { return r.jour.Close() }

// Run replays quotes in time order, submitting scripted orders once
// their time arrives and the gate admits them.
func (r *Runner) Run(ctx context.Context, quotes []market.Quote, orders []TimedOrder) (Report, error) {
	var rep Report

	sort.SliceStable(quotes, func(i, j int) bool { return quotes[i].Time.Before(quotes[j].Time) })
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].Time.Before(orders[j].Time) })

	hw := r.cfg.Account.Cash
	next := 0

	for _, q := range quotes {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		r.markGate(q)
		r.eng.OnQuote(q)
		r.syncGate()

		acct := r.eng.Account(ctx)
		if acct.Equity > hw {
			hw = acct.Equity
		}
		if hw > 0 {
			if dd := (acct.Equity - hw) / hw; dd < rep.MaxDrawdown {
				rep.MaxDrawdown = dd
			}
		}

		for next < len(orders) && !orders[next].Time.After(q.Time) {
			r.submit(ctx, orders[next], q.Time, &rep)
			next++
		}
	}

	acct := r.eng.Account(ctx)
	rep.Cash = acct.Cash
	rep.Equity = acct.Equity
	rep.RealizedPnL = acct.RealizedPnL
	rep.Fills = len(r.eng.Fills())

	r.log.Info("replay complete",
		zap.Float64("cash", rep.Cash),
		zap.Float64("equity", rep.Equity),
		zap.Float64("realized_pnl", rep.RealizedPnL),
		zap.Float64("max_drawdown", rep.MaxDrawdown),
		zap.Int("fills", rep.Fills),
		zap.Int("submitted", rep.Submitted),
		zap.Int("gated", rep.Gated),
	)
	return rep, nil
}

func (r *Runner) submit(ctx context.Context, to TimedOrder, now time.Time, rep *Report) {
	ok, breach := r.gate.GateTarget(now, to.Req.Symbol, r.targetNotional(to.Req))
	if !ok {
		rep.Gated++
		r.log.Warn("order gated",
			zap.String("symbol", to.Req.Symbol),
			zap.String("code", breach.Code),
			zap.String("reason", breach.Message),
		)
		return
	}

	o := r.eng.Submit(ctx, to.Req)
	rep.Submitted++
	r.log.Debug("order submitted",
		zap.String("id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("side", o.Side.String()),
		zap.String("status", o.Status.String()),
		zap.String("reason", o.Reason),
	)
}

// targetNotional estimates the post-trade notional in the symbol at
// the last known price.
func (r *Runner) targetNotional(req broker.OrderRequest) float64 {
	led := r.eng.Ledger()
	px := led.LastPrices()[req.Symbol]
	if px == 0 && req.Type == broker.Limit {
		px = req.LimitPx
	}
	pos := led.Position(req.Symbol)
	return (pos.Qty + req.Qty*req.Side.Sign()) * px
}

func (r *Runner) markGate(q market.Quote) {
	switch {
	case q.Mid > 0:
		r.gate.Mark(q.Symbol, q.Mid, q.Time)
	case q.Bid > 0 && q.Ask > 0:
		r.gate.Mark(q.Symbol, (q.Bid+q.Ask)/2, q.Time)
	case q.Last > 0:
		r.gate.Mark(q.Symbol, q.Last, q.Time)
	}
}

// syncGate pushes current holdings and equity into the gate after the
// ledger has marked to market.
func (r *Runner) syncGate() {
	led := r.eng.Ledger()
	last := led.LastPrices()
	holdings := make(map[string]float64)
	for _, p := range led.Positions() {
		holdings[p.Symbol] = p.Qty * last[p.Symbol]
	}
	r.gate.SetHoldings(holdings)
	r.gate.RecordEquity(led.NAV)
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "csv":
		return journal.NewCSV(jc.FillsFile, jc.EquityFile)
	default:
		return journal.Noop{}, nil
	}
}
