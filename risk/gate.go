// Package risk is the admission-control layer consulted before trades
// reach the matching engine. A Gate is caller-owned state: construct
// one per portfolio/run, there is no package-level state to
// cross-contaminate concurrent portfolios.
package risk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/metrics"
)

type priceStamp struct {
	px   float64
	seen time.Time
}

// Gate tracks prices, rolling returns, holdings, and the equity
// high-water mark, and evaluates proposed trades against Limits.
// Not safe for concurrent use; drive it from one tick at a time.
type Gate struct {
	limits   Limits
	window   int
	meta     map[string]market.Meta
	prices   map[string]priceStamp
	returns  map[string]*returnRing
	holdings map[string]float64 // current notional per symbol

	equity float64
	hw     float64

	killed     bool
	killReason string
}

func NewGate(limits Limits) *Gate {
	return &Gate{
		limits:   limits,
		window:   DefaultWindow,
		meta:     make(map[string]market.Meta),
		prices:   make(map[string]priceStamp),
		returns:  make(map[string]*returnRing),
		holdings: make(map[string]float64),
	}
}

func (g *Gate) SetLimits(l Limits) { g.limits = l }

func (g *Gate) SetMeta(symbol string, m market.Meta) { g.meta[symbol] = m }

// SetWindow changes the rolling return window for symbols marked after
// the call. Existing buffers keep their length.
func (g *Gate) SetWindow(n int) {
	if n > 0 {
		g.window = n
	}
}

// Mark records a price observation and extends the symbol's rolling
// return buffer.
func (g *Gate) Mark(symbol string, px float64, ts time.Time) {
	if symbol == "" || px <= 0 || math.IsNaN(px) || math.IsInf(px, 0) {
		return
	}
	g.prices[symbol] = priceStamp{px: px, seen: ts}

	r, ok := g.returns[symbol]
	if !ok {
		r = newReturnRing(g.window)
		g.returns[symbol] = r
	}
	r.observe(px)
}

// SetHolding records the current notional held in symbol, used for
// projected gross and bucket exposure. Call once per tick after
// mark-to-market.
func (g *Gate) SetHolding(symbol string, notional float64) {
	if notional == 0 {
		delete(g.holdings, symbol)
		return
	}
	g.holdings[symbol] = notional
}

// SetHoldings replaces the whole holdings view in one call, dropping
// symbols that are now flat.
func (g *Gate) SetHoldings(notional map[string]float64) {
	g.holdings = make(map[string]float64, len(notional))
	for s, n := range notional {
		if n != 0 {
			g.holdings[s] = n
		}
	}
}

// RecordEquity feeds the drawdown tracker. The high-water mark never
// decreases.
func (g *Gate) RecordEquity(nav float64) {
	if math.IsNaN(nav) || math.IsInf(nav, 0) {
		return
	}
	g.equity = nav
	if nav > g.hw {
		g.hw = nav
	}
}

// MDD returns the current drawdown as a non-positive fraction of the
// high-water mark.
func (g *Gate) MDD() float64 {
	if g.hw <= 0 {
		return 0
	}
	dd := (g.equity - g.hw) / g.hw
	if dd > 0 {
		return 0
	}
	return dd
}

// SetKill engages or clears the global override. While engaged every
// gate call fails with code KILL.
func (g *Gate) SetKill(on bool, reason string) {
	g.killed = on
	g.killReason = reason
	if on {
		metrics.KillSwitch.Set(1)
	} else {
		metrics.KillSwitch.Set(0)
	}
}

// GateTarget evaluates moving symbol to targetNotional. Checks run in
// a fixed order and the first failure wins: kill switch, price
// staleness, max drawdown, projected gross, single-name weight, bucket
// caps, universe correlation. ok=true means the trade may proceed.
func (g *Gate) GateTarget(now time.Time, symbol string, targetNotional float64) (bool, *Breach) {
	if b := g.check(now, symbol, targetNotional); b != nil {
		metrics.BreachesTotal.WithLabelValues(b.Code).Inc()
		return false, b
	}
	return true, nil
}

func (g *Gate) check(now time.Time, symbol string, target float64) *Breach {
	if g.killed {
		return g.breach(now, CodeKill, "kill switch engaged: "+g.killReason, nil)
	}

	ps, ok := g.prices[symbol]
	if !ok {
		return g.breach(now, CodeNoPrice, fmt.Sprintf("no price seen for %s", symbol), nil)
	}
	if g.limits.Staleness > 0 && now.Sub(ps.seen) > g.limits.Staleness {
		return g.breach(now, CodeStale,
			fmt.Sprintf("price for %s is %s old", symbol, now.Sub(ps.seen)),
			map[string]float64{"age_ms": float64(now.Sub(ps.seen).Milliseconds())})
	}

	if g.limits.MaxDrawdown > 0 && -g.MDD() >= g.limits.MaxDrawdown {
		return g.breach(now, CodeMDD,
			fmt.Sprintf("drawdown %.2f%% at or beyond limit %.2f%%", -100*g.MDD(), 100*g.limits.MaxDrawdown),
			map[string]float64{"mdd": g.MDD()})
	}

	if g.limits.MaxGross > 0 {
		gross := g.projectedGross(map[string]float64{symbol: target})
		if w := g.weight(gross); w > g.limits.MaxGross {
			return g.breach(now, CodeGross,
				fmt.Sprintf("projected gross %.2fx exceeds %.2fx", w, g.limits.MaxGross),
				map[string]float64{"gross": gross})
		}
	}

	if g.limits.MaxSingle > 0 {
		if w := g.weight(math.Abs(target)); w > g.limits.MaxSingle {
			return g.breach(now, CodeSingle,
				fmt.Sprintf("%s weight %.2f%% exceeds %.2f%%", symbol, 100*w, 100*g.limits.MaxSingle),
				map[string]float64{"weight": w})
		}
	}

	if b := g.checkBuckets(now, symbol, target); b != nil {
		return b
	}

	if g.limits.CorrelationCap > 0 {
		if corr := g.AvgAbsCorrelation(); corr > g.limits.CorrelationCap {
			return g.breach(now, CodeCorr,
				fmt.Sprintf("universe correlation %.2f exceeds cap %.2f", corr, g.limits.CorrelationCap),
				map[string]float64{"corr": corr})
		}
	}

	return nil
}

// checkBuckets enforces sector/region gross caps when configured.
func (g *Gate) checkBuckets(now time.Time, symbol string, target float64) *Breach {
	if len(g.limits.SectorCaps) == 0 && len(g.limits.RegionCaps) == 0 {
		return nil
	}

	m := g.meta[symbol]
	if cap, ok := g.limits.SectorCaps[m.Sector]; ok {
		if w := g.weight(g.bucketGross(symbol, target, func(x market.Meta) string { return x.Sector }, m.Sector)); w > cap {
			return g.breach(now, CodeBucket,
				fmt.Sprintf("sector %s weight %.2f%% exceeds %.2f%%", m.Sector, 100*w, 100*cap),
				map[string]float64{"weight": w})
		}
	}
	if cap, ok := g.limits.RegionCaps[m.Region]; ok {
		if w := g.weight(g.bucketGross(symbol, target, func(x market.Meta) string { return x.Region }, m.Region)); w > cap {
			return g.breach(now, CodeBucket,
				fmt.Sprintf("region %s weight %.2f%% exceeds %.2f%%", m.Region, 100*w, 100*cap),
				map[string]float64{"weight": w})
		}
	}
	return nil
}

// projectedGross sums absolute holdings with the given targets
// overriding current positions.
func (g *Gate) projectedGross(targets map[string]float64) float64 {
	var gross float64
	for s, n := range g.holdings {
		if t, ok := targets[s]; ok {
			gross += math.Abs(t)
			continue
		}
		gross += math.Abs(n)
	}
	for s, t := range targets {
		if _, held := g.holdings[s]; !held {
			gross += math.Abs(t)
		}
	}
	return gross
}

func (g *Gate) bucketGross(symbol string, target float64, key func(market.Meta) string, bucket string) float64 {
	var gross float64
	for s, n := range g.holdings {
		if s == symbol {
			continue
		}
		if key(g.meta[s]) == bucket {
			gross += math.Abs(n)
		}
	}
	return gross + math.Abs(target)
}

func (g *Gate) weight(notional float64) float64 {
	if g.equity <= 0 {
		return math.Inf(1)
	}
	return notional / g.equity
}

// AvgAbsCorrelation computes the mean absolute pairwise Pearson
// correlation across the tracked return universe. This is a
// portfolio-wide regime measure, not conditioned on any candidate
// symbol.
func (g *Gate) AvgAbsCorrelation() float64 {
	symbols := make([]string, 0, len(g.returns))
	for s, r := range g.returns {
		if r.count >= minOverlap {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) < 2 {
		return 0
	}
	sort.Strings(symbols)

	var sum float64
	var pairs int
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			a, b := g.returns[symbols[i]], g.returns[symbols[j]]
			n := a.count
			if b.count < n {
				n = b.count
			}
			sum += math.Abs(pearson(a.tail(n), b.tail(n)))
			pairs++
		}
	}
	return sum / float64(pairs)
}

func (g *Gate) breach(now time.Time, code, msg string, data map[string]float64) *Breach {
	return &Breach{Code: code, Message: msg, Data: data, Time: now}
}
