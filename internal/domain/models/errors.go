package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable means the data provider could not serve the request
	// after retries; the circuit breaker governs recovery.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrServiceUnavailable is returned without a network attempt while the
	// circuit breaker is open.
	ErrServiceUnavailable = errors.New("service unavailable: circuit open")

	// ErrInsufficientData marks a series too short for a given metric; the
	// metric degrades to zero rather than failing the tick.
	ErrInsufficientData = errors.New("insufficient data")
)

// DimensionMismatchError reports misaligned return series. It aborts the
// computation for the affected symbols only, never the whole tick.
type DimensionMismatchError struct {
	Want int
	Got  int
	Name string
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch for %s: want %d observations, got %d", e.Name, e.Want, e.Got)
}

// IsDimensionMismatch reports whether err is a DimensionMismatchError.
func IsDimensionMismatch(err error) bool {
	var dm *DimensionMismatchError
	return errors.As(err, &dm)
}
