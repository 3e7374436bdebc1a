package predictor_test

import (
	"errors"
	"math"
	"testing"

	"github.com/septivank/fuel-mileage-worker/internal/fuel"
	"github.com/septivank/fuel-mileage-worker/internal/predictor"
)

func ptr(v float64) *float64 {
	return &v
}

func TestEstimateRange(t *testing.T) {
	result, err := predictor.EstimateRange(ptr(15), 50)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result == nil || *result != 750 {
		t.Errorf("Expected range 750, got %v", result)
	}
}

func TestEstimateRange_UndefinedEfficiency(t *testing.T) {
	result, err := predictor.EstimateRange(nil, 50)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil range, got %v", *result)
	}
}

func TestEstimateRange_ZeroEfficiencyIsDefined(t *testing.T) {
	result, err := predictor.EstimateRange(ptr(0), 50)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result == nil || *result != 0 {
		t.Errorf("Expected range 0, got %v", result)
	}
}

func TestEstimateRange_InvalidTankCapacity(t *testing.T) {
	for _, capacity := range []float64{0, -10, math.NaN()} {
		for _, efficiency := range []*float64{ptr(15), nil} {
			_, err := predictor.EstimateRange(efficiency, capacity)
			if !errors.Is(err, fuel.ErrInvalidTankCapacity) {
				t.Errorf("capacity %v, efficiency %v: expected ErrInvalidTankCapacity, got %v", capacity, efficiency, err)
			}
		}
	}
}

func TestEstimateFullTankCost(t *testing.T) {
	result, err := predictor.EstimateFullTankCost(ptr(0.1), ptr(15), 50)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result == nil || math.Abs(*result-75) > 1e-9 {
		t.Errorf("Expected cost 75, got %v", result)
	}
}

func TestEstimateFullTankCost_Undefined(t *testing.T) {
	if result, err := predictor.EstimateFullTankCost(nil, ptr(15), 50); err != nil || result != nil {
		t.Errorf("Expected nil without error for undefined cost, got %v, %v", result, err)
	}
	if result, err := predictor.EstimateFullTankCost(ptr(0.1), nil, 50); err != nil || result != nil {
		t.Errorf("Expected nil without error for undefined efficiency, got %v, %v", result, err)
	}
}

func TestEstimateFullTankCost_InvalidTankCapacity(t *testing.T) {
	_, err := predictor.EstimateFullTankCost(nil, nil, 0)
	if !errors.Is(err, fuel.ErrInvalidTankCapacity) {
		t.Errorf("Expected ErrInvalidTankCapacity, got %v", err)
	}
}
