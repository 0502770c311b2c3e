package ledger

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(sec int) time.Time {
	return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second)
}

func journalFixture() []Event {
	return []Event{
		CashEvent("e1", ts(0), 5_000),
		FillEvent("e2", ts(1), "AAPL", 10, 100),
		MarkEvent("e3", ts(2), "AAPL", 110),
		FillEvent("e4", ts(3), "AAPL", 10, 110),
		SplitEvent("e5", ts(4), "AAPL", 2),
		MarkEvent("e6", ts(4), "AAPL", 55),
		DividendEvent("e7", ts(5), "AAPL", 0.5),
		FillEvent("e8", ts(6), "AAPL", -30, 60),
		MarkEvent("e9", ts(7), "AAPL", 58),
	}
}

func TestRecomputeIdempotentUnderPermutation(t *testing.T) {
	t.Parallel()

	events := journalFixture()
	base := Recompute(50_000, events, Options{CostBps: 2})

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]Event(nil), events...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Recompute(50_000, shuffled, Options{CostBps: 2})
		assert.Equal(t, base.Ledger.Cash, got.Ledger.Cash)
		assert.Equal(t, base.Ledger.NAV, got.Ledger.NAV)
		assert.Equal(t, base.Ledger.Positions(), got.Ledger.Positions())
		assert.Equal(t, base.Equity, got.Equity)
		assert.Equal(t, base.Stats, got.Stats)
	}
}

func TestRecomputeDedupLastWins(t *testing.T) {
	t.Parallel()

	events := []Event{
		FillEvent("dup", ts(1), "AAPL", 10, 100),
		FillEvent("dup", ts(1), "AAPL", 5, 100),
	}
	res := Recompute(10_000, events, Options{})

	require.Equal(t, 1, res.Stats.Trades)
	assert.InDelta(t, 5, res.Ledger.Position("AAPL").Qty, 1e-12,
		"later occurrence replaces the earlier, not both")
}

func TestRecomputeSameTimestampOrder(t *testing.T) {
	t.Parallel()

	// Mark listed before the split in the input; the fold must apply
	// the split first so NAV sees post-split quantity at the new mark.
	events := []Event{
		MarkEvent("m", ts(5), "AAPL", 50),
		FillEvent("f", ts(1), "AAPL", 10, 100),
		SplitEvent("s", ts(5), "AAPL", 2),
	}
	res := Recompute(1_000, events, Options{})

	p := res.Ledger.Position("AAPL")
	assert.InDelta(t, 20, p.Qty, 1e-12)
	assert.InDelta(t, 50, p.AvgPx, 1e-12)
	assert.InDelta(t, 1_000-1_000+20*50, res.Ledger.NAV, 1e-9)
}

func TestRecomputeEndTimeCutoff(t *testing.T) {
	t.Parallel()

	events := []Event{
		FillEvent("f1", ts(1), "AAPL", 10, 100),
		FillEvent("f2", ts(10), "AAPL", 10, 100),
	}
	res := Recompute(10_000, events, Options{EndTime: ts(5)})

	assert.Equal(t, 1, res.Stats.Trades)
	assert.Len(t, res.Equity, 1, "excluded events do not produce equity points")
}

func TestRecomputeCorporateActionsNoPosition(t *testing.T) {
	t.Parallel()

	events := []Event{
		SplitEvent("s", ts(1), "MSFT", 2),
		DividendEvent("d", ts(2), "MSFT", 1.5),
	}
	res := Recompute(1_000, events, Options{})

	assert.InDelta(t, 1_000, res.Ledger.Cash, 1e-12, "no-ops without an open position")
	assert.Empty(t, res.Ledger.Positions())
}

func TestRecomputeDividendPaysOnQty(t *testing.T) {
	t.Parallel()

	events := []Event{
		FillEvent("f", ts(1), "KO", 100, 60),
		DividendEvent("d", ts(2), "KO", 0.46),
	}
	res := Recompute(10_000, events, Options{})

	assert.InDelta(t, 10_000-6_000+46, res.Ledger.Cash, 1e-9)
}

func TestRecomputeSkipsMalformed(t *testing.T) {
	t.Parallel()

	events := []Event{
		FillEvent("ok", ts(1), "AAPL", 10, 100),
		FillEvent("nan", ts(2), "AAPL", math.NaN(), 100),
		MarkEvent("inf", ts(3), "AAPL", math.Inf(1)),
		{ID: "empty", Kind: KindFill, Time: ts(4), Qty: 1, Px: 10},
	}
	res := Recompute(10_000, events, Options{})

	assert.Equal(t, 1, res.Stats.Trades)
	assert.Equal(t, 3, res.Stats.Skipped)
}

func TestRecomputeDrawdownStats(t *testing.T) {
	t.Parallel()

	events := []Event{
		FillEvent("f", ts(0), "X", 10, 100),
		MarkEvent("m1", ts(1), "X", 120),
		MarkEvent("m2", ts(2), "X", 90),
		MarkEvent("m3", ts(3), "X", 130),
	}
	res := Recompute(1_000, events, Options{})

	// Peak NAV at 120 mark, trough at 90 mark: dd = (90-120)*10.
	assert.InDelta(t, -300, res.Stats.MaxDrawdown, 1e-9)
	for _, p := range res.Equity {
		assert.LessOrEqual(t, p.Drawdown, 0.0)
	}
}

func TestRecomputeEquityBounded(t *testing.T) {
	t.Parallel()

	events := make([]Event, 0, 50)
	for i := 0; i < 50; i++ {
		events = append(events, MarkEvent(string(rune('a'+i%26))+string(rune('0'+i/26)), ts(i), "X", 100))
	}
	res := Recompute(1_000, events, Options{EquityCap: 10})

	require.Len(t, res.Equity, 10)
	assert.Equal(t, ts(49), res.Equity[9].Time, "most recent points retained")
	assert.Equal(t, ts(40), res.Equity[0].Time)
}

func TestManifestHash(t *testing.T) {
	t.Parallel()

	events := journalFixture()
	shuffled := append([]Event(nil), events...)
	shuffled[0], shuffled[3] = shuffled[3], shuffled[0]

	h1 := ManifestHash(50_000, events, Options{CostBps: 2})
	h2 := ManifestHash(50_000, shuffled, Options{CostBps: 2})
	assert.Equal(t, h1, h2, "order-insensitive")

	h3 := ManifestHash(50_000, events[1:], Options{CostBps: 2})
	assert.NotEqual(t, h1, h3, "different event set")

	h4 := ManifestHash(50_000, events, Options{CostBps: 3})
	assert.NotEqual(t, h1, h4, "different config")
}
