package risk

import "time"

// Trade is one leg of a rebalance plan: move symbol to the given
// target notional.
type Trade struct {
	Symbol         string
	TargetNotional float64
}

// Plan is a proposed rebalance.
type Plan struct {
	Trades []Trade
}

// PlanResult holds the pruned plan. Callers must submit only Trades,
// never the original plan.
type PlanResult struct {
	OK       bool
	Trades   []Trade
	Breaches []Breach
	EstGross float64
}

// ValidatePlan evaluates every trade independently, keeps the ones
// that pass, and collects one Breach per rejection. It never errors:
// a fully-breached plan comes back with OK=false and no trades.
// EstGross is recomputed over the surviving trades only.
func (g *Gate) ValidatePlan(now time.Time, plan Plan) PlanResult {
	res := PlanResult{OK: true}

	targets := make(map[string]float64, len(plan.Trades))
	for _, t := range plan.Trades {
		ok, b := g.GateTarget(now, t.Symbol, t.TargetNotional)
		if !ok {
			res.OK = false
			res.Breaches = append(res.Breaches, *b)
			continue
		}
		res.Trades = append(res.Trades, t)
		targets[t.Symbol] = t.TargetNotional
	}

	res.EstGross = g.projectedGross(targets)
	return res
}
