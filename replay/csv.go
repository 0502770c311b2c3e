package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
)

// Event CSV columns: id,time,type,symbol,qty,px,delta,ratio,amount
// Quote CSV columns: time,symbol,bid,ask,last,mid,size
// Order CSV columns: time,symbol,side,type,qty,limit,tif

// ReadEventsCSV parses an event journal. Rows that fail to parse are
// returned as a count, not an error: replay semantics skip malformed
// input rather than abort.
func ReadEventsCSV(r io.Reader) (events []ledger.Event, skipped int, err error) {
	rows, err := readAll(r, 9)
	if err != nil {
		return nil, 0, err
	}
	for _, rec := range rows {
		ts, terr := time.Parse(time.RFC3339Nano, rec[1])
		kind, ok := ledger.ParseKind(rec[2])
		if terr != nil || !ok || rec[0] == "" {
			skipped++
			continue
		}
		e := ledger.Event{
			ID:     rec[0],
			Kind:   kind,
			Time:   ts,
			Symbol: rec[3],
			Qty:    num(rec[4]),
			Px:     num(rec[5]),
			Delta:  num(rec[6]),
			Ratio:  num(rec[7]),
			Amount: num(rec[8]),
		}
		events = append(events, e)
	}
	return events, skipped, nil
}

// ReadQuotesCSV parses a quote script.
func ReadQuotesCSV(r io.Reader) ([]market.Quote, error) {
	rows, err := readAll(r, 7)
	if err != nil {
		return nil, err
	}
	quotes := make([]market.Quote, 0, len(rows))
	for i, rec := range rows {
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("quote row %d: bad time %q: %w", i+1, rec[0], err)
		}
		quotes = append(quotes, market.Quote{
			Time:   ts,
			Symbol: rec[1],
			Bid:    num(rec[2]),
			Ask:    num(rec[3]),
			Last:   num(rec[4]),
			Mid:    num(rec[5]),
			Size:   num(rec[6]),
		})
	}
	return quotes, nil
}

// TimedOrder is an order scheduled into the replay timeline.
type TimedOrder struct {
	Time time.Time
	Req  broker.OrderRequest
}

// ReadOrdersCSV parses an order script.
func ReadOrdersCSV(r io.Reader) ([]TimedOrder, error) {
	rows, err := readAll(r, 7)
	if err != nil {
		return nil, err
	}
	orders := make([]TimedOrder, 0, len(rows))
	for i, rec := range rows {
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("order row %d: bad time %q: %w", i+1, rec[0], err)
		}
		req := broker.OrderRequest{
			Symbol:  rec[1],
			Qty:     num(rec[4]),
			LimitPx: num(rec[5]),
		}
		if rec[2] == "sell" {
			req.Side = broker.Sell
		}
		if rec[3] == "limit" {
			req.Type = broker.Limit
		}
		switch rec[6] {
		case "IOC":
			req.TIF = broker.IOC
		case "FOK":
			req.TIF = broker.FOK
		}
		orders = append(orders, TimedOrder{Time: ts, Req: req})
	}
	return orders, nil
}

// OpenEventsCSV reads an event journal from a file path.
func OpenEventsCSV(path string) ([]ledger.Event, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return ReadEventsCSV(f)
}

// readAll reads a CSV and strips the header row when present.
func readAll(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 {
		if _, err := time.Parse(time.RFC3339Nano, rows[0][0]); err != nil && rows[0][0] != "" {
			// First row is a header (events put the id first, so also
			// treat a non-numeric/non-time leading cell named like a
			// header as one).
			if rows[0][0] == "id" || rows[0][0] == "time" {
				rows = rows[1:]
			}
		}
	}
	return rows, nil
}

func num(s string) float64 {
	if s == "" {
		return 0
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return x
}
