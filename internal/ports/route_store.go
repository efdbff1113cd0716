package ports

import (
	"context"
	"fleet-ops-service/internal/domain"
)

// Port: durable storage for MobileRoute records.
type RouteStore interface {
	// Return domain.ErrNotFound when no route has the given id.
	GetRoute(ctx context.Context, id string) (*domain.MobileRoute, error)
	CreateRoute(ctx context.Context, route *domain.MobileRoute) error
	// Persist the new status only if the stored status still equals oldStatus.
	// Return domain.ErrInvalidTransition when it does not.
	UpdateRouteStatus(ctx context.Context, id string, oldStatus, newStatus domain.RouteStatus) error
	// Return domain.ErrNotFound when the route has no waypoint for orderID.
	UpdateWaypointStatus(ctx context.Context, id string, orderID string, status domain.WaypointStatus) error
}
