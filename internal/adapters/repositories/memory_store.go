package repositories

import (
	"context"
	"errors"
	"fleet-ops-service/internal/domain"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process RouteStore and CapacityStore used for local
// runs and tests. Values are copied on the way in and out so callers never
// share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	routes      map[string]*domain.MobileRoute
	constraints map[string]domain.CapacityConstraint
	inventory   map[string]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		routes:      make(map[string]*domain.MobileRoute),
		constraints: make(map[string]domain.CapacityConstraint),
		inventory:   make(map[string]float64),
	}
}

func capacityKey(vehicleID, materialID string) string {
	return vehicleID + "|" + materialID
}

func (s *MemoryStore) GetRoute(ctx context.Context, id string) (*domain.MobileRoute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.routes[id]
	if !ok {
		return nil, fmt.Errorf("route %q: %w", id, domain.ErrNotFound)
	}
	return cloneRoute(r), nil
}

func (s *MemoryStore) CreateRoute(ctx context.Context, route *domain.MobileRoute) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if route == nil || route.ID == "" {
		return errors.New("create route: route id must be non-empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.routes[route.ID]; exists {
		return fmt.Errorf("create route: route %q already exists", route.ID)
	}
	s.routes[route.ID] = cloneRoute(route)
	return nil
}

func (s *MemoryStore) UpdateRouteStatus(ctx context.Context, id string, oldStatus, newStatus domain.RouteStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routes[id]
	if !ok {
		return fmt.Errorf("route %q: %w", id, domain.ErrNotFound)
	}
	if r.Status != oldStatus {
		return fmt.Errorf("route %q status is %q, expected %q: %w", id, r.Status, oldStatus, domain.ErrInvalidTransition)
	}
	r.Status = newStatus
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) UpdateWaypointStatus(ctx context.Context, id string, orderID string, status domain.WaypointStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routes[id]
	if !ok {
		return fmt.Errorf("route %q: %w", id, domain.ErrNotFound)
	}
	for i := range r.Waypoints {
		if r.Waypoints[i].OrderID == orderID {
			r.Waypoints[i].Status = status
			r.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("route %q order %q: %w", id, orderID, domain.ErrNotFound)
}

func (s *MemoryStore) GetConstraint(ctx context.Context, vehicleID, materialID string) (*domain.CapacityConstraint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.constraints[capacityKey(vehicleID, materialID)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) UpsertConstraint(ctx context.Context, c domain.CapacityConstraint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.constraints[capacityKey(c.VehicleID, c.MaterialID)] = c
	return nil
}

func (s *MemoryStore) ListConstraints(ctx context.Context, vehicleID string) ([]domain.CapacityConstraint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CapacityConstraint, 0)
	for _, c := range s.constraints {
		if c.VehicleID == vehicleID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.CapacityConstraint) int {
		return strings.Compare(a.MaterialID, b.MaterialID)
	})
	return out, nil
}

func (s *MemoryStore) GetInventory(ctx context.Context, vehicleID, materialID string) (domain.InventoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.InventoryRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.InventoryRecord{
		VehicleID:       vehicleID,
		MaterialID:      materialID,
		CurrentQuantity: s.inventory[capacityKey(vehicleID, materialID)],
	}, nil
}

func (s *MemoryStore) SetInventory(ctx context.Context, vehicleID, materialID string, expected, quantity float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if quantity < 0 {
		return fmt.Errorf("set inventory: negative quantity %g", quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := capacityKey(vehicleID, materialID)
	if current := s.inventory[key]; current != expected {
		return fmt.Errorf("set inventory %s/%s: stored %g, expected %g: %w", vehicleID, materialID, current, expected, domain.ErrConflict)
	}
	s.inventory[key] = quantity
	return nil
}

func cloneRoute(r *domain.MobileRoute) *domain.MobileRoute {
	out := *r
	out.Waypoints = slices.Clone(r.Waypoints)
	if r.EndLocation != nil {
		end := *r.EndLocation
		out.EndLocation = &end
	}
	return &out
}
