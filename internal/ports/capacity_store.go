package ports

import (
	"context"
	"fleet-ops-service/internal/domain"
)

// Port: durable storage for capacity constraints and on-board inventory.
type CapacityStore interface {
	// Return (nil, nil) when no constraint exists for the key.
	GetConstraint(ctx context.Context, vehicleID, materialID string) (*domain.CapacityConstraint, error)
	UpsertConstraint(ctx context.Context, c domain.CapacityConstraint) error
	// Return all constraints configured for a vehicle.
	ListConstraints(ctx context.Context, vehicleID string) ([]domain.CapacityConstraint, error)

	// Return a zero-quantity record when nothing is stored for the key.
	GetInventory(ctx context.Context, vehicleID, materialID string) (domain.InventoryRecord, error)
	// Write quantity only if the stored value still equals expected,
	// otherwise fail with domain.ErrConflict.
	SetInventory(ctx context.Context, vehicleID, materialID string, expected, quantity float64) error
}
