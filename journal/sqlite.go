package journal

import (
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(r OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO orders
		(order_id, symbol, side, type, status, quantity, filled_quantity, fill_price, realized_pl, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OrderID, r.Symbol, r.Side, r.Type, r.Status, r.Quantity,
		r.FilledQuantity, r.FillPrice, r.RealizedPL, r.Reason, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, margin_used, margin_available, daily_loss)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, e.Balance, e.Equity, e.MarginUsed, e.MarginAvailable, e.DailyLoss,
	)
	return err
}

// ListOrders returns the most recent terminal orders, newest first.
func (j *SQLite) ListOrders(limit int) ([]OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(`
		SELECT order_id, symbol, side, type, status, quantity, filled_quantity,
		       fill_price, realized_pl, reason, created_at, updated_at
		FROM orders ORDER BY order_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		if err := rows.Scan(&r.OrderID, &r.Symbol, &r.Side, &r.Type, &r.Status,
			&r.Quantity, &r.FilledQuantity, &r.FillPrice, &r.RealizedPL,
			&r.Reason, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// ErrNotFound is returned by Load when a settings key has never been saved.
var ErrNotFound = errors.New("settings key not found")

// Save stores v as JSON under key in the settings table. This is the
// pass-through persistence for risk settings and the watchlist; the engine
// does not depend on it for correctness.
func (j *SQLite) Save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, string(data))
	return err
}

// Load unmarshals the JSON stored under key into v.
func (j *SQLite) Load(key string, v any) error {
	var data string
	err := j.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), v)
}
