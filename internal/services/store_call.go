package services

import (
	"context"
	"errors"
	"fleet-ops-service/internal/domain"
	"fmt"
	"time"
)

// callStore runs fn against the record store under a bounded deadline.
// Domain outcomes reported by the store (not found, lost status race, lost
// inventory write) pass through; every other failure, timeouts included, becomes ErrStoreUnavailable.
// Stores must honor ctx for the deadline to take effect.
func callStore(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	storeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(storeCtx)
	if err == nil {
		return nil
	}

	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
