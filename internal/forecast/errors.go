package forecast

import (
	"errors"
	"fmt"
)

const (
	// MinDays and MaxDays bound the forecast horizon.
	MinDays = 1
	MaxDays = 365
)

// ErrInvalidHorizon is wrapped by every horizon ValidationError.
var ErrInvalidHorizon = errors.New("forecast horizon must be between 1 and 365 days")

// ValidationError represents a rejected forecast request
type ValidationError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateHorizon rejects horizons outside [MinDays, MaxDays]. Out of range
// values are never clamped.
func ValidateHorizon(days int) error {
	if days < MinDays || days > MaxDays {
		return &ValidationError{Field: "days", Value: days, Err: ErrInvalidHorizon}
	}
	return nil
}
