package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"etf-mm-bot/internal/state"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS commands (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		order_id INTEGER NOT NULL,
		side TEXT NOT NULL DEFAULT '',
		price INTEGER NOT NULL DEFAULT 0,
		volume INTEGER NOT NULL DEFAULT 0,
		delivered INTEGER NOT NULL,
		at_ms INTEGER NOT NULL
	)`)
	return err
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (s *Store) AppendCommand(ctx context.Context, rec state.CommandRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO commands (run_id, kind, order_id, side, price, volume, delivered, at_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Kind, int64(rec.OrderID), rec.Side, rec.Price, rec.Volume, rec.Delivered, rec.AtMS)
	return err
}

// Commands returns the latest records of a run in insertion order. A
// non-positive limit returns all of them.
func (s *Store) Commands(ctx context.Context, runID string, limit int) ([]state.CommandRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, kind, order_id, side, price, volume, delivered, at_ms FROM (
		SELECT * FROM commands WHERE run_id = ? ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []state.CommandRecord
	for rows.Next() {
		var (
			rec     state.CommandRecord
			orderID int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Kind, &orderID, &rec.Side, &rec.Price, &rec.Volume, &rec.Delivered, &rec.AtMS); err != nil {
			return nil, err
		}
		rec.OrderID = uint64(orderID)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
