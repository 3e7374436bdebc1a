// Package localcache keeps an on-disk copy of the fill-up collection so the
// worker can start and serve metrics while the remote database is unreachable.
package localcache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/fuel-mileage-worker/internal/fuel"

	// register sqlite driver
	_ "modernc.org/sqlite"
)

// Store is a SQLite backed entry cache
type Store struct {
	db *sql.DB
}

// New opens (or creates) the cache at the given path
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("[CACHE] create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("[CACHE] open sqlite db: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[CACHE] enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS fuel_entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	filled_at TEXT NOT NULL,
	odometer REAL NOT NULL,
	fuel_amount REAL NOT NULL,
	fuel_price REAL NOT NULL,
	station TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("[CACHE] apply schema: %w", err)
	}
	return nil
}

// Close releases underlying database resources
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadEntries returns the cached entries in the order they were first stored
func (s *Store) LoadEntries(ctx context.Context) ([]fuel.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, filled_at, odometer, fuel_amount, fuel_price, station, created_at, updated_at
FROM fuel_entries
ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query cached entries: %w", err)
	}
	defer rows.Close()

	entries := make([]fuel.Entry, 0)
	for rows.Next() {
		var (
			e                              fuel.Entry
			id, filled, created, updatedAt string
		)
		if err := rows.Scan(&id, &filled, &e.Odometer, &e.FuelAmount, &e.FuelPrice, &e.Station, &created, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan cached entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse cached entry id %q: %w", id, err)
		}
		if e.Date, err = parseTime(filled); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertEntry stores or overwrites a single entry
func (s *Store) UpsertEntry(ctx context.Context, entry fuel.Entry) error {
	return upsert(ctx, s.db, entry)
}

// DeleteEntry removes a single entry
func (s *Store) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fuel_entries WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete cached entry: %w", err)
	}
	return nil
}

// ReplaceEntries swaps the whole cache content for entries
func (s *Store) ReplaceEntries(ctx context.Context, entries []fuel.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fuel_entries`); err != nil {
		return fmt.Errorf("clear cached entries: %w", err)
	}
	for _, e := range entries {
		if err := upsert(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, e fuel.Entry) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO fuel_entries(id, filled_at, odometer, fuel_amount, fuel_price, station, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	filled_at = excluded.filled_at,
	odometer = excluded.odometer,
	fuel_amount = excluded.fuel_amount,
	fuel_price = excluded.fuel_price,
	station = excluded.station,
	updated_at = excluded.updated_at`,
		e.ID.String(),
		formatTime(e.Date),
		e.Odometer,
		e.FuelAmount,
		e.FuelPrice,
		e.Station,
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert cached entry %s: %w", e.ID, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cached timestamp %q: %w", value, err)
	}
	return t, nil
}
