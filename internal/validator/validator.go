package validator

import (
	"fmt"
	"time"

	"github.com/septivank/fuel-mileage-worker/internal/fuel"
)

// Clock returns the current instant
type Clock func() time.Time

// Validator enforces the write-time invariants of a fill-up
type Validator struct {
	now Clock
}

// NewValidator creates a new validator. A nil clock falls back to time.Now.
func NewValidator(clock Clock) *Validator {
	if clock == nil {
		clock = time.Now
	}
	return &Validator{
		now: clock,
	}
}

// ValidateForCreate validates a complete candidate entry
func (v *Validator) ValidateForCreate(in fuel.Input) error {
	if err := checkOdometer(in.Odometer); err != nil {
		return err
	}
	if err := checkFuelAmount(in.FuelAmount); err != nil {
		return err
	}
	if err := checkFuelPrice(in.FuelPrice); err != nil {
		return err
	}
	return v.checkDate(in.Date)
}

// ValidateForUpdate validates only the fields present in the patch
func (v *Validator) ValidateForUpdate(p fuel.Patch) error {
	if p.Odometer != nil {
		if err := checkOdometer(*p.Odometer); err != nil {
			return err
		}
	}
	if p.FuelAmount != nil {
		if err := checkFuelAmount(*p.FuelAmount); err != nil {
			return err
		}
	}
	if p.FuelPrice != nil {
		if err := checkFuelPrice(*p.FuelPrice); err != nil {
			return err
		}
	}
	if p.Date != nil {
		return v.checkDate(*p.Date)
	}
	return nil
}

// The negated comparisons below also reject NaN.

func checkOdometer(value float64) error {
	if !(value > 0) {
		return fmt.Errorf("%w, got %v", fuel.ErrInvalidOdometer, value)
	}
	return nil
}

func checkFuelAmount(value float64) error {
	if !(value > 0) {
		return fmt.Errorf("%w, got %v", fuel.ErrInvalidFuelAmount, value)
	}
	return nil
}

func checkFuelPrice(value float64) error {
	if !(value > 0) {
		return fmt.Errorf("%w, got %v", fuel.ErrInvalidFuelPrice, value)
	}
	return nil
}

func (v *Validator) checkDate(date time.Time) error {
	now := v.now()
	if date.After(now) {
		return fmt.Errorf("%w: %s is after %s", fuel.ErrFutureDate,
			date.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return nil
}
