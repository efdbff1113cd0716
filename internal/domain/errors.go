package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest rejects malformed optimization or route input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidTransition protects the route state machine.
	ErrInvalidTransition = errors.New("invalid transition")

	ErrInvalidConstraint = errors.New("invalid capacity constraint")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrNegativeQuantity  = errors.New("negative quantity")

	// ErrStoreUnavailable means the record store failed or timed out.
	// Safe to retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrNotFound = errors.New("not found")

	// ErrConflict means a conditional write lost to a concurrent writer.
	ErrConflict = errors.New("concurrent update")
)

// QuantityError is returned when a delta is rejected.
// It unwraps to ErrCapacityExceeded or ErrNegativeQuantity.
type QuantityError struct {
	Err        error
	VehicleID  string
	MaterialID string
	Current    float64
	Delta      float64
	Attempted  float64
	Max        float64 // zero when no constraint exists
}

func (e *QuantityError) Error() string {
	if errors.Is(e.Err, ErrCapacityExceeded) {
		return fmt.Sprintf(
			"%v: vehicle=%s material=%s current=%g delta=%g attempted=%g max=%g",
			e.Err, e.VehicleID, e.MaterialID, e.Current, e.Delta, e.Attempted, e.Max,
		)
	}
	return fmt.Sprintf(
		"%v: vehicle=%s material=%s current=%g delta=%g attempted=%g",
		e.Err, e.VehicleID, e.MaterialID, e.Current, e.Delta, e.Attempted,
	)
}

func (e *QuantityError) Unwrap() error { return e.Err }

// TransitionError unwraps to ErrInvalidTransition.
type TransitionError struct {
	RouteID string
	From    RouteStatus
	To      RouteStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: route %s cannot move from %q to %q", ErrInvalidTransition, e.RouteID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
