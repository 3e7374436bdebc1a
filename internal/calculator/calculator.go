// Package calculator derives efficiency and cost metrics from fill-up history.
//
// Every function works on a copy of its input sorted by ascending odometer.
// Readings must strictly increase in that order, and their dates must not go
// backwards: a fill-up dated after another but with a lower reading is as
// invalid as two equal readings. Callers should expect ErrNonMonotonicOdometer
// for a history whose readings are in order but whose dates are not: every
// metric stays unavailable until the misdated entry is corrected.
// The first entry of that order is the baseline: its odometer anchors the
// distance, but its fuel and cost were consumed before the tracked period and
// are left out of the aggregates. Fewer than two entries is not an error; the
// aggregate is reported as nil and the per-entry sequence as empty.
package calculator

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/septivank/fuel-mileage-worker/internal/fuel"
)

// Summary holds the aggregates of one sequence of entries
type Summary struct {
	EntryCount             int      `json:"entry_count"`
	TotalDistance          float64  `json:"total_distance"`
	TotalFuel              float64  `json:"total_fuel"`
	TotalCost              float64  `json:"total_cost"`
	AverageEfficiency      *float64 `json:"average_efficiency"`
	AverageCostPerDistance *float64 `json:"average_cost_per_distance"`
}

// AverageEfficiency returns distance travelled per unit of fuel over the whole history
func AverageEfficiency(entries []fuel.Entry) (*float64, error) {
	summary, err := Summarize(entries)
	if err != nil {
		return nil, err
	}
	return summary.AverageEfficiency, nil
}

// AverageCostPerDistance returns money spent per unit of distance over the whole history
func AverageCostPerDistance(entries []fuel.Entry) (*float64, error) {
	summary, err := Summarize(entries)
	if err != nil {
		return nil, err
	}
	return summary.AverageCostPerDistance, nil
}

// PerEntryEfficiency returns one record per entry after the baseline, in odometer order
func PerEntryEfficiency(entries []fuel.Entry) ([]fuel.EfficiencyRecord, error) {
	sorted, err := prepare(entries)
	if err != nil {
		return nil, err
	}
	if len(sorted) < 2 {
		return []fuel.EfficiencyRecord{}, nil
	}

	records := make([]fuel.EfficiencyRecord, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		distance := sorted[i].Odometer - sorted[i-1].Odometer
		fuelUsed := sorted[i].FuelAmount
		records = append(records, fuel.EfficiencyRecord{
			EntryID:    sorted[i].ID,
			Efficiency: distance / fuelUsed,
			Distance:   distance,
			FuelUsed:   fuelUsed,
		})
	}
	return records, nil
}

// Summarize computes every aggregate in a single pass
func Summarize(entries []fuel.Entry) (Summary, error) {
	summary := Summary{EntryCount: len(entries)}

	sorted, err := prepare(entries)
	if err != nil {
		return Summary{}, err
	}
	if len(sorted) < 2 {
		return summary, nil
	}

	for _, e := range sorted[1:] {
		summary.TotalFuel += e.FuelAmount
		summary.TotalCost += e.Cost()
	}
	summary.TotalDistance = sorted[len(sorted)-1].Odometer - sorted[0].Odometer

	efficiency := summary.TotalDistance / summary.TotalFuel
	costPerDistance := summary.TotalCost / summary.TotalDistance
	summary.AverageEfficiency = &efficiency
	summary.AverageCostPerDistance = &costPerDistance

	return summary, nil
}

// prepare returns a sorted copy of entries after checking the shared
// preconditions. Sequences shorter than two are returned unchecked.
func prepare(entries []fuel.Entry) ([]fuel.Entry, error) {
	if len(entries) < 2 {
		return entries, nil
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b fuel.Entry) int {
		return cmp.Compare(a.Odometer, b.Odometer)
	})

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if !(cur.Odometer > prev.Odometer) {
			return nil, nonMonotonic(prev, cur)
		}
		// A higher reading dated before a lower one means the odometer went
		// backwards between those fill-ups.
		if cur.Date.Before(prev.Date) {
			return nil, nonMonotonic(cur, prev)
		}
	}

	for _, e := range sorted {
		if !(e.FuelAmount > 0) {
			return nil, fmt.Errorf("%w: entry %s has %v", fuel.ErrInvalidFuelAmount, e.ID, e.FuelAmount)
		}
	}

	return sorted, nil
}

func nonMonotonic(prev, cur fuel.Entry) *fuel.NonMonotonicError {
	return &fuel.NonMonotonicError{
		PreviousID:       prev.ID,
		PreviousOdometer: prev.Odometer,
		CurrentID:        cur.ID,
		CurrentOdometer:  cur.Odometer,
	}
}
