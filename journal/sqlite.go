package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/ledger"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordFill(f broker.Fill) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(fill_id, order_id, symbol, side, qty, price, fee, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OrderID, f.Symbol, f.Side.String(), f.Qty, f.Price, f.Fee, f.Time,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(p ledger.EquityPoint) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, nav, drawdown)
		VALUES (?, ?, ?)`,
		p.Time, p.NAV, p.Drawdown,
	)
	return err
}

// ListFills returns all recorded fills ordered by id (ULIDs sort by time).
func (j *SQLiteJournal) ListFills() ([]broker.Fill, error) {
	rows, err := j.db.Query(`
		SELECT fill_id, order_id, symbol, side, qty, price, fee, time
		FROM fills ORDER BY fill_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []broker.Fill
	for rows.Next() {
		var f broker.Fill
		var side string
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Symbol, &side, &f.Qty, &f.Price, &f.Fee, &f.Time); err != nil {
			return nil, err
		}
		if side == "sell" {
			f.Side = broker.Sell
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
