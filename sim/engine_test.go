package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
)

type testJournal struct {
	fills  []broker.Fill
	equity []ledger.EquityPoint
	closed bool
}

func (j *testJournal) RecordFill(f broker.Fill) error            { j.fills = append(j.fills, f); return nil }
func (j *testJournal) RecordEquity(p ledger.EquityPoint) error   { j.equity = append(j.equity, p); return nil }
func (j *testJournal) Close() error                              { j.closed = true; return nil }

var _ journal.Journal = (*testJournal)(nil)

func newEngine(t *testing.T, cash float64) (*Engine, *testJournal) {
	t.Helper()
	j := &testJournal{}
	return NewEngine(Config{Cash: cash, Leverage: 1}, j), j
}

func quoteAt(t *testing.T, e *Engine, symbol string, bid, ask, size float64, sec int) {
	t.Helper()
	e.OnQuote(market.Quote{
		Symbol: symbol,
		Bid:    bid,
		Ask:    ask,
		Size:   size,
		Time:   time.Date(2025, 3, 1, 9, 30, sec, 0, time.UTC),
	})
}

func TestMarketOrderFillsAtAskWithSlippage(t *testing.T) {
	e := NewEngine(Config{Cash: 100_000, Leverage: 1, SlippageBps: 10, FeeBps: 1}, nil)
	quoteAt(t, e, "AAPL", 99, 100, 0, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Qty: 10,
	})

	require.Equal(t, broker.Filled, o.Status)
	assert.InDelta(t, 100*(1+0.001), o.AvgFillPx, 1e-9, "buy slips up from ref")
	assert.InDelta(t, 10, o.FilledQty, 1e-12)

	fills := e.Fills()
	require.Len(t, fills, 1)
	assert.InDelta(t, 10*o.AvgFillPx*1e-4, fills[0].Fee, 1e-9, "1 bps fee on notional")
}

func TestSellUsesBid(t *testing.T) {
	e, _ := newEngine(t, 100_000)
	quoteAt(t, e, "AAPL", 99, 100, 0, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Sell, Qty: 5,
	})
	require.Equal(t, broker.Filled, o.Status)
	assert.InDelta(t, 99, o.AvgFillPx, 1e-9)
}

func TestLimitOrderWaitsForCross(t *testing.T) {
	e, _ := newEngine(t, 100_000)
	quoteAt(t, e, "AAPL", 104, 105, 0, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Type: broker.Limit, Qty: 10, LimitPx: 100,
	})
	require.Equal(t, broker.Working, o.Status, "ref 105 has not crossed 100")

	quoteAt(t, e, "AAPL", 98, 99, 0, 1)
	got, ok := e.Order(o.ID)
	require.True(t, ok)
	assert.Equal(t, broker.Filled, got.Status)
	assert.InDelta(t, 99, got.AvgFillPx, 1e-9)
}

func TestRejectedOrders(t *testing.T) {
	e, _ := newEngine(t, 100_000)

	tests := []struct {
		name string
		req  broker.OrderRequest
	}{
		{"zero qty", broker.OrderRequest{Symbol: "A", Side: broker.Buy}},
		{"negative qty", broker.OrderRequest{Symbol: "A", Side: broker.Buy, Qty: -5}},
		{"limit without price", broker.OrderRequest{Symbol: "A", Side: broker.Buy, Type: broker.Limit, Qty: 5}},
		{"missing symbol", broker.OrderRequest{Side: broker.Buy, Qty: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := e.Submit(context.Background(), tt.req)
			assert.Equal(t, broker.Rejected, o.Status)
			assert.NotEmpty(t, o.Reason)
		})
	}
}

func TestInsufficientBuyingPower(t *testing.T) {
	e, _ := newEngine(t, 1_000)
	quoteAt(t, e, "AAPL", 99, 100, 0, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Qty: 100, // 10k notional on 1k equity
	})
	require.Equal(t, broker.Rejected, o.Status)
	assert.Equal(t, ReasonInsufficientBP, o.Reason)
	assert.Empty(t, e.Fills())
}

func TestLeverageExtendsBuyingPower(t *testing.T) {
	e := NewEngine(Config{Cash: 1_000, Leverage: 5}, nil)
	quoteAt(t, e, "AAPL", 99, 100, 0, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Qty: 40, // 4k notional, within 5x
	})
	assert.Equal(t, broker.Filled, o.Status)
}

func TestIOCRemainderCanceled(t *testing.T) {
	e, _ := newEngine(t, 100_000)
	quoteAt(t, e, "AAPL", 99, 100, 4, 0) // only 4 available at top of book

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Type: broker.Limit, Qty: 10, LimitPx: 101, TIF: broker.IOC,
	})

	require.Equal(t, broker.Canceled, o.Status)
	assert.Equal(t, ReasonIOCRemainder, o.Reason)
	assert.InDelta(t, 4, o.FilledQty, 1e-12)
	assert.Less(t, o.FilledQty, o.Qty)
}

func TestIOCUncrossedCancelsWhole(t *testing.T) {
	e, _ := newEngine(t, 100_000)
	quoteAt(t, e, "AAPL", 104, 105, 0, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Type: broker.Limit, Qty: 10, LimitPx: 100, TIF: broker.IOC,
	})
	require.Equal(t, broker.Canceled, o.Status)
	assert.Zero(t, o.FilledQty)
}

func TestFOKKillsOnInsufficientSize(t *testing.T) {
	e, _ := newEngine(t, 100_000)
	quoteAt(t, e, "AAPL", 99, 100, 4, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Qty: 10, TIF: broker.FOK,
	})
	require.Equal(t, broker.Canceled, o.Status)
	assert.Equal(t, ReasonFOKUnavailable, o.Reason)
	assert.Zero(t, o.FilledQty, "fill-or-kill never partial-fills")
}

func TestFOKFillsFullyWhenSizeUnknown(t *testing.T) {
	e, _ := newEngine(t, 100_000)
	quoteAt(t, e, "AAPL", 99, 100, 0, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Qty: 10, TIF: broker.FOK,
	})
	assert.Equal(t, broker.Filled, o.Status)
}

func TestGTCPartialPersistsAcrossQuotes(t *testing.T) {
	e, _ := newEngine(t, 100_000)
	quoteAt(t, e, "AAPL", 99, 100, 4, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Type: broker.Limit, Qty: 10, LimitPx: 101,
	})
	require.Equal(t, broker.PartiallyFilled, o.Status)

	quoteAt(t, e, "AAPL", 99, 100, 10, 1)
	got, _ := e.Order(o.ID)
	assert.Equal(t, broker.Filled, got.Status)
	assert.InDelta(t, 10, got.FilledQty, 1e-12)
	assert.Len(t, e.Fills(), 2)
}

func TestCancelAndTerminality(t *testing.T) {
	e, _ := newEngine(t, 100_000)
	quoteAt(t, e, "AAPL", 104, 105, 0, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Type: broker.Limit, Qty: 10, LimitPx: 100,
	})
	got, ok := e.Cancel(context.Background(), o.ID, "")
	require.True(t, ok)
	assert.Equal(t, broker.Canceled, got.Status)

	// Terminal states are final: no re-cancel, no amend, no fill.
	_, ok = e.Cancel(context.Background(), o.ID, "again")
	assert.False(t, ok)
	_, ok = e.Amend(context.Background(), o.ID, broker.OrderPatch{})
	assert.False(t, ok)

	quoteAt(t, e, "AAPL", 98, 99, 0, 1)
	got, _ = e.Order(o.ID)
	assert.Zero(t, got.FilledQty)
}

func TestAmendLimitTriggersMatch(t *testing.T) {
	e, _ := newEngine(t, 100_000)
	quoteAt(t, e, "AAPL", 104, 105, 0, 0)

	o := e.Submit(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Type: broker.Limit, Qty: 10, LimitPx: 100,
	})
	require.Equal(t, broker.Working, o.Status)

	newLimit := 106.0
	got, ok := e.Amend(context.Background(), o.ID, broker.OrderPatch{LimitPx: &newLimit})
	require.True(t, ok)
	assert.Equal(t, broker.Filled, got.Status)
	assert.InDelta(t, 105, got.AvgFillPx, 1e-9)
}

func TestAccountView(t *testing.T) {
	e, j := newEngine(t, 10_000)
	quoteAt(t, e, "AAPL", 99, 100, 0, 0)

	e.Submit(context.Background(), broker.OrderRequest{Symbol: "AAPL", Side: broker.Buy, Qty: 10})
	quoteAt(t, e, "AAPL", 109, 110, 0, 1)

	acct := e.Account(context.Background())
	assert.InDelta(t, 10_000-10*100, acct.Cash, 1e-9)
	assert.InDelta(t, 9_000+10*109.5, acct.Equity, 1e-9, "marked at mid")
	require.Len(t, acct.Positions, 1)
	assert.InDelta(t, 10, acct.Positions[0].Qty, 1e-12)

	require.NotEmpty(t, j.equity, "equity snapshots journaled per quote")
	last := j.equity[len(j.equity)-1]
	assert.InDelta(t, acct.Equity, last.NAV, 1e-9)
	assert.LessOrEqual(t, last.Drawdown, 0.0)
}

func TestRealizedPnLRoundTrip(t *testing.T) {
	e, _ := newEngine(t, 10_000)
	quoteAt(t, e, "AAPL", 100, 100, 0, 0)

	e.Submit(context.Background(), broker.OrderRequest{Symbol: "AAPL", Side: broker.Buy, Qty: 10})
	quoteAt(t, e, "AAPL", 120, 120, 0, 1)
	e.Submit(context.Background(), broker.OrderRequest{Symbol: "AAPL", Side: broker.Sell, Qty: 10})

	acct := e.Account(context.Background())
	assert.InDelta(t, 200, acct.RealizedPnL, 1e-9)
	assert.Empty(t, acct.Positions)
}
