package validator_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/septivank/fuel-mileage-worker/internal/fuel"
	"github.com/septivank/fuel-mileage-worker/internal/validator"
)

var fixedNow = time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC)

func newTestValidator() *validator.Validator {
	return validator.NewValidator(func() time.Time { return fixedNow })
}

func validInput() fuel.Input {
	return fuel.Input{
		Date:       fixedNow.Add(-time.Hour),
		Odometer:   10500,
		FuelAmount: 35,
		FuelPrice:  1.6,
		Station:    "Shell Kemang",
	}
}

func TestValidateForCreate_ValidInput(t *testing.T) {
	if err := newTestValidator().ValidateForCreate(validInput()); err != nil {
		t.Errorf("Expected valid input, got: %v", err)
	}
}

func TestValidateForCreate_DateEqualToNowIsAccepted(t *testing.T) {
	in := validInput()
	in.Date = fixedNow

	if err := newTestValidator().ValidateForCreate(in); err != nil {
		t.Errorf("Expected date equal to now to be accepted, got: %v", err)
	}
}

func TestValidateForCreate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fuel.Input)
		want   error
	}{
		{"zero odometer", func(in *fuel.Input) { in.Odometer = 0 }, fuel.ErrInvalidOdometer},
		{"negative odometer", func(in *fuel.Input) { in.Odometer = -1 }, fuel.ErrInvalidOdometer},
		{"NaN odometer", func(in *fuel.Input) { in.Odometer = math.NaN() }, fuel.ErrInvalidOdometer},
		{"zero fuel amount", func(in *fuel.Input) { in.FuelAmount = 0 }, fuel.ErrInvalidFuelAmount},
		{"negative fuel price", func(in *fuel.Input) { in.FuelPrice = -1.5 }, fuel.ErrInvalidFuelPrice},
		{"future date", func(in *fuel.Input) { in.Date = fixedNow.Add(time.Second) }, fuel.ErrFutureDate},
		{"odometer checked first", func(in *fuel.Input) {
			in.Odometer = 0
			in.FuelPrice = 0
		}, fuel.ErrInvalidOdometer},
	}

	v := newTestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			err := v.ValidateForCreate(in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if !fuel.IsValidationError(err) {
				t.Errorf("Expected a validation error, got %v", err)
			}
		})
	}
}

func TestValidateForUpdate_OnlyPresentFieldsChecked(t *testing.T) {
	v := newTestValidator()
	price := 1.7

	if err := v.ValidateForUpdate(fuel.Patch{FuelPrice: &price}); err != nil {
		t.Errorf("Expected valid patch, got: %v", err)
	}
	if err := v.ValidateForUpdate(fuel.Patch{}); err != nil {
		t.Errorf("Expected empty patch to pass validation, got: %v", err)
	}
}

func TestValidateForUpdate_InvalidFields(t *testing.T) {
	v := newTestValidator()
	zero := 0.0
	future := fixedNow.Add(24 * time.Hour)

	if err := v.ValidateForUpdate(fuel.Patch{FuelAmount: &zero}); !errors.Is(err, fuel.ErrInvalidFuelAmount) {
		t.Errorf("Expected ErrInvalidFuelAmount, got %v", err)
	}
	if err := v.ValidateForUpdate(fuel.Patch{Date: &future}); !errors.Is(err, fuel.ErrFutureDate) {
		t.Errorf("Expected ErrFutureDate, got %v", err)
	}
}

func TestNewValidator_NilClockUsesWallClock(t *testing.T) {
	v := validator.NewValidator(nil)

	in := validInput()
	in.Date = time.Now().Add(time.Hour)
	if err := v.ValidateForCreate(in); !errors.Is(err, fuel.ErrFutureDate) {
		t.Errorf("Expected ErrFutureDate, got %v", err)
	}
}
