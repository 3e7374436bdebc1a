package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/fuel-mileage-worker/internal/db"
	"github.com/septivank/fuel-mileage-worker/internal/fuel"
)

const schema = `
	CREATE TABLE IF NOT EXISTS fuel_entries (
		id          UUID PRIMARY KEY,
		filled_at   TIMESTAMPTZ NOT NULL,
		odometer    DOUBLE PRECISION NOT NULL,
		fuel_amount DOUBLE PRECISION NOT NULL,
		fuel_price  DOUBLE PRECISION NOT NULL,
		station     TEXT,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fuel_entries_filled_at ON fuel_entries (filled_at);
`

// Repository is the PostgreSQL backed remote entry store
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the fuel_entries table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ListEntries returns every stored fill-up ordered by date
func (r *Repository) ListEntries(ctx context.Context) ([]fuel.Entry, error) {
	query := `
		SELECT id, filled_at, odometer, fuel_amount, fuel_price, station, created_at, updated_at
		FROM fuel_entries
		ORDER BY filled_at, created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fuel entries: %w", err)
	}
	defer rows.Close()

	var entries []fuel.Entry
	for rows.Next() {
		var row db.FuelEntry
		if err := rows.Scan(
			&row.ID,
			&row.FilledAt,
			&row.Odometer,
			&row.FuelAmount,
			&row.FuelPrice,
			&row.Station,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fuel entry: %w", err)
		}
		entries = append(entries, row.ToEntry())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

// UpsertEntry inserts a fill-up or overwrites the stored version
func (r *Repository) UpsertEntry(ctx context.Context, entry fuel.Entry) error {
	row := db.FromEntry(entry)
	query := `
		INSERT INTO fuel_entries (
			id, filled_at, odometer, fuel_amount, fuel_price, station, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			filled_at   = EXCLUDED.filled_at,
			odometer    = EXCLUDED.odometer,
			fuel_amount = EXCLUDED.fuel_amount,
			fuel_price  = EXCLUDED.fuel_price,
			station     = EXCLUDED.station,
			updated_at  = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		row.ID,
		row.FilledAt,
		row.Odometer,
		row.FuelAmount,
		row.FuelPrice,
		row.Station,
		row.CreatedAt,
		row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fuel entry: %w", err)
	}
	return nil
}

// DeleteEntry hard deletes a fill-up. Deleting a missing row is not an error.
func (r *Repository) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM fuel_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete fuel entry: %w", err)
	}
	return nil
}
