// Package broker defines the order, fill, and account data model
// shared by the paper matching engine and any live adapter.
package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Sign returns +1 for buys, -1 for sells.
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

type OrderType int

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	if t == Limit {
		return "limit"
	}
	return "market"
}

// TIF is time-in-force.
type TIF int

const (
	GTC TIF = iota
	IOC
	FOK
)

func (t TIF) String() string {
	switch t {
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	}
	return "GTC"
}

type Status int

const (
	New Status = iota
	Working
	PartiallyFilled
	Filled
	Canceled
	Rejected
)

func (s Status) String() string {
	switch s {
	case New:
		return "new"
	case Working:
		return "working"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Canceled:
		return "canceled"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == Filled || s == Canceled || s == Rejected
}

// OrderRequest is what callers submit.
type OrderRequest struct {
	Symbol  string
	Side    Side
	Type    OrderType
	Qty     float64
	LimitPx float64 // required for limit orders
	TIF     TIF
}

// Order is the engine-owned lifecycle record.
// Status machine: new -> working -> {partially_filled -> filled | canceled | rejected}.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      OrderType
	Qty       float64
	LimitPx   float64
	TIF       TIF
	Status    Status
	FilledQty float64
	AvgFillPx float64
	Reason    string
	Created   time.Time
	Updated   time.Time
}

// Remaining is the unfilled quantity.
func (o *Order) Remaining() float64 { return o.Qty - o.FilledQty }

// Fill is an append-only execution record.
type Fill struct {
	ID      string
	OrderID string
	Symbol  string
	Side    Side
	Qty     float64
	Price   float64
	Fee     float64
	Time    time.Time
}

// Account is a derived view, always recomputable from the ledger.
type Account struct {
	Cash        float64
	Equity      float64
	BuyingPower float64
	RealizedPnL float64
	Positions   []ledger.Position
}

// Broker is the execution interface the orchestration layer talks to.
type Broker interface {
	Submit(ctx context.Context, req OrderRequest) Order
	Amend(ctx context.Context, id string, patch OrderPatch) (Order, bool)
	Cancel(ctx context.Context, id, reason string) (Order, bool)
	OnQuote(q market.Quote)
	Account(ctx context.Context) Account
}

// OrderPatch amends a working order; nil fields are left unchanged.
type OrderPatch struct {
	Qty     *float64
	LimitPx *float64
	TIF     *TIF
}
