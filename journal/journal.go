// Package journal persists fills and equity curves. The engine core
// performs no I/O of its own; it records through this interface and a
// backend (SQLite, CSV, or Noop) does the writing.
package journal

import (
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/ledger"
)

type Journal interface {
	RecordFill(broker.Fill) error
	RecordEquity(ledger.EquityPoint) error
	Close() error
}

// Noop discards everything. Useful for tests and pure backtests.
type Noop struct{}

func (Noop) RecordFill(broker.Fill) error          { return nil }
func (Noop) RecordEquity(ledger.EquityPoint) error { return nil }
func (Noop) Close() error                          { return nil }
