package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/septivank/fuel-mileage-worker/internal/fuel"
)

// FuelEntry represents a fill-up row in the database
type FuelEntry struct {
	ID         uuid.UUID
	FilledAt   time.Time
	Odometer   float64
	FuelAmount float64
	FuelPrice  float64
	Station    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FromEntry converts a domain entry into its row form
func FromEntry(e fuel.Entry) FuelEntry {
	var station *string
	if e.Station != "" {
		station = &e.Station
	}
	return FuelEntry{
		ID:         e.ID,
		FilledAt:   e.Date,
		Odometer:   e.Odometer,
		FuelAmount: e.FuelAmount,
		FuelPrice:  e.FuelPrice,
		Station:    station,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// ToEntry converts the row back into a domain entry
func (r FuelEntry) ToEntry() fuel.Entry {
	e := fuel.Entry{
		ID:         r.ID,
		Date:       r.FilledAt,
		Odometer:   r.Odometer,
		FuelAmount: r.FuelAmount,
		FuelPrice:  r.FuelPrice,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Station != nil {
		e.Station = *r.Station
	}
	return e
}
