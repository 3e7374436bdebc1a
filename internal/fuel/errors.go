package fuel

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// Write-time validation
	ErrInvalidOdometer   = errors.New("fuel: odometer must be positive")
	ErrInvalidFuelAmount = errors.New("fuel: fuel amount must be positive")
	ErrInvalidFuelPrice  = errors.New("fuel: fuel price must be positive")
	ErrFutureDate        = errors.New("fuel: date is in the future")

	// Collection state
	ErrNonMonotonicOdometer = errors.New("fuel: odometer readings are not strictly increasing")

	// Prediction
	ErrInvalidTankCapacity = errors.New("fuel: tank capacity must be positive")

	ErrEntryNotFound = errors.New("fuel: entry not found")
)

// NonMonotonicError identifies the adjacent pair (after sorting by odometer)
// whose readings do not increase.
type NonMonotonicError struct {
	PreviousID       uuid.UUID
	PreviousOdometer float64
	CurrentID        uuid.UUID
	CurrentOdometer  float64
}

func (e *NonMonotonicError) Error() string {
	return fmt.Sprintf("%s: entry %s (%.1f) does not exceed entry %s (%.1f)",
		ErrNonMonotonicOdometer, e.CurrentID, e.CurrentOdometer, e.PreviousID, e.PreviousOdometer)
}

func (e *NonMonotonicError) Unwrap() error {
	return ErrNonMonotonicOdometer
}

// IsValidationError reports whether err is one of the write-time or data-shaped
// failure kinds. Such errors are deterministic and must not be retried.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidOdometer) ||
		errors.Is(err, ErrInvalidFuelAmount) ||
		errors.Is(err, ErrInvalidFuelPrice) ||
		errors.Is(err, ErrFutureDate) ||
		errors.Is(err, ErrNonMonotonicOdometer) ||
		errors.Is(err, ErrInvalidTankCapacity)
}
