package fuel

import (
	"time"

	"github.com/google/uuid"
)

// Entry represents a single fill-up
type Entry struct {
	ID         uuid.UUID `json:"id"`
	Date       time.Time `json:"date"`
	Odometer   float64   `json:"odometer"`
	FuelAmount float64   `json:"fuel_amount"`
	FuelPrice  float64   `json:"fuel_price"`
	Station    string    `json:"station,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Input holds the caller supplied fields of a new entry
type Input struct {
	Date       time.Time `json:"date"`
	Odometer   float64   `json:"odometer"`
	FuelAmount float64   `json:"fuel_amount"`
	FuelPrice  float64   `json:"fuel_price"`
	Station    string    `json:"station,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Date       *time.Time `json:"date,omitempty"`
	Odometer   *float64   `json:"odometer,omitempty"`
	FuelAmount *float64   `json:"fuel_amount,omitempty"`
	FuelPrice  *float64   `json:"fuel_price,omitempty"`
	Station    *string    `json:"station,omitempty"`
}

// IsEmpty reports whether the patch carries no field at all
func (p Patch) IsEmpty() bool {
	return p.Date == nil && p.Odometer == nil && p.FuelAmount == nil &&
		p.FuelPrice == nil && p.Station == nil
}

// Apply returns a copy of e with the present patch fields replaced
func (p Patch) Apply(e Entry) Entry {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Odometer != nil {
		e.Odometer = *p.Odometer
	}
	if p.FuelAmount != nil {
		e.FuelAmount = *p.FuelAmount
	}
	if p.FuelPrice != nil {
		e.FuelPrice = *p.FuelPrice
	}
	if p.Station != nil {
		e.Station = *p.Station
	}
	return e
}

// NewEntry builds an entry from validated input
func NewEntry(id uuid.UUID, in Input, now time.Time) Entry {
	return Entry{
		ID:         id,
		Date:       in.Date,
		Odometer:   in.Odometer,
		FuelAmount: in.FuelAmount,
		FuelPrice:  in.FuelPrice,
		Station:    in.Station,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Cost is the amount paid for this fill-up
func (e Entry) Cost() float64 {
	return e.FuelAmount * e.FuelPrice
}

// EfficiencyRecord is the efficiency of the stretch ending at EntryID
type EfficiencyRecord struct {
	EntryID    uuid.UUID `json:"entry_id"`
	Efficiency float64   `json:"efficiency"`
	Distance   float64   `json:"distance"`
	FuelUsed   float64   `json:"fuel_used"`
}
