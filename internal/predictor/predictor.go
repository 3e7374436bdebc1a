package predictor

import (
	"fmt"

	"github.com/septivank/fuel-mileage-worker/internal/fuel"
)

// EstimateRange projects the distance a full tank covers at the given efficiency.
// A nil efficiency means there is not enough history and yields nil.
func EstimateRange(efficiency *float64, tankCapacity float64) (*float64, error) {
	if !(tankCapacity > 0) {
		return nil, fmt.Errorf("%w, got %v", fuel.ErrInvalidTankCapacity, tankCapacity)
	}
	if efficiency == nil {
		return nil, nil
	}

	estimate := *efficiency * tankCapacity
	return &estimate, nil
}

// EstimateFullTankCost projects what the distance of one full tank costs
func EstimateFullTankCost(costPerDistance, efficiency *float64, tankCapacity float64) (*float64, error) {
	distance, err := EstimateRange(efficiency, tankCapacity)
	if err != nil {
		return nil, err
	}
	if distance == nil || costPerDistance == nil {
		return nil, nil
	}

	estimate := *distance * *costPerDistance
	return &estimate, nil
}
