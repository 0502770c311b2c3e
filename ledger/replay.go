// Package ledger folds portfolio event journals into ledger state.
//
// Recompute is a pure function: no hidden state, and the same event
// set (in any input order, with duplicates collapsed by id) always
// yields identical output. That determinism is what makes journals
// replayable and runs comparable by fingerprint.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// DefaultEquityCap bounds the equity curve retained by a replay.
const DefaultEquityCap = 100_000

// Options tunes a replay. The zero value means: no cutoff, no trading
// cost, default equity history cap.
type Options struct {
	// EndTime, when set, excludes events stamped after it entirely.
	EndTime time.Time
	// CostBps is the per-fill trading cost in basis points of notional.
	CostBps float64
	// EquityCap bounds the retained equity curve (default 100k points).
	EquityCap int
}

// Stats summarizes a replay.
type Stats struct {
	MaxDrawdown float64 // most negative drawdown seen, <= 0
	Trades      int     // fills applied
	Skipped     int     // malformed events dropped
}

// Result is the output of Recompute.
type Result struct {
	Ledger     *Ledger
	Equity     []EquityPoint
	LastPrices map[string]float64
	Stats      Stats
}

// Recompute replays an event journal from initial cash. Events are
// deduped by id (later occurrence in the input wins), sorted into the
// total apply order, cut off at opt.EndTime, and folded one by one.
// An equity point is appended after every applied event. Malformed
// events are skipped and counted; nothing aborts the replay.
func Recompute(initialCash float64, events []Event, opt Options) Result {
	cap := opt.EquityCap
	if cap <= 0 {
		cap = DefaultEquityCap
	}

	l := New(initialCash)
	ring := NewEquityRing(cap)
	var stats Stats

	hw := l.NAV
	for _, e := range normalize(events) {
		if !opt.EndTime.IsZero() && e.Time.After(opt.EndTime) {
			continue
		}
		if !e.valid() {
			stats.Skipped++
			continue
		}
		l.apply(e, opt.CostBps)
		if e.Kind == KindFill {
			stats.Trades++
		}

		if l.NAV > hw {
			hw = l.NAV
		}
		dd := l.NAV - hw
		if dd < stats.MaxDrawdown {
			stats.MaxDrawdown = dd
		}
		ring.Push(EquityPoint{Time: e.Time, NAV: l.NAV, Drawdown: dd})
	}

	return Result{
		Ledger:     l,
		Equity:     ring.Points(),
		LastPrices: l.LastPrices(),
		Stats:      stats,
	}
}

// ManifestHash fingerprints a replay input: an order-insensitive
// sha256 over the event ids plus the options that change the fold.
// Two runs with equal hashes are replays of the same journal.
func ManifestHash(initialCash float64, events []Event, opt Options) string {
	ids := make([]string, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)

	h := sha256.New()
	fmt.Fprintf(h, "cash=%.12g;cost=%.12g;end=%d;", initialCash, opt.CostBps, opt.EndTime.UnixNano())
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
