package services

import (
	"context"
	"fleet-ops-service/internal/adapters/repositories"
	"fleet-ops-service/internal/domain"
	"sync"
)

type publishedEvent struct {
	topic   string
	payload any
}

// recordingNotifier captures events synchronously.
type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *recordingNotifier) Publish(topic string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{topic: topic, payload: payload})
}

func (n *recordingNotifier) Events() []publishedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]publishedEvent, len(n.events))
	copy(out, n.events)
	return out
}

// blockingRouteStore never answers GetRoute before the deadline.
type blockingRouteStore struct {
	*repositories.MemoryStore
}

func (s blockingRouteStore) GetRoute(ctx context.Context, id string) (*domain.MobileRoute, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// racingRouteStore simulates another writer winning the status update.
type racingRouteStore struct {
	*repositories.MemoryStore
}

func (s racingRouteStore) UpdateRouteStatus(ctx context.Context, id string, oldStatus, newStatus domain.RouteStatus) error {
	return domain.ErrInvalidTransition
}

// blockingCapacityStore never answers constraint reads before the deadline.
type blockingCapacityStore struct {
	*repositories.MemoryStore
}

func (s blockingCapacityStore) GetConstraint(ctx context.Context, vehicleID, materialID string) (*domain.CapacityConstraint, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s blockingCapacityStore) ListConstraints(ctx context.Context, vehicleID string) ([]domain.CapacityConstraint, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// conflictingCapacityStore loses the first `conflicts` inventory writes to a
// simulated writer in another process that adds `foreign` units each time.
type conflictingCapacityStore struct {
	*repositories.MemoryStore

	mu        sync.Mutex
	conflicts int
	foreign   float64
	writes    int
}

func (s *conflictingCapacityStore) SetInventory(ctx context.Context, vehicleID, materialID string, expected, quantity float64) error {
	s.mu.Lock()
	s.writes++
	lose := s.conflicts > 0
	if lose {
		s.conflicts--
	}
	s.mu.Unlock()

	if lose {
		if err := s.MemoryStore.SetInventory(ctx, vehicleID, materialID, expected, expected+s.foreign); err != nil {
			return err
		}
	}
	return s.MemoryStore.SetInventory(ctx, vehicleID, materialID, expected, quantity)
}

func (s *conflictingCapacityStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
