package services

import (
	"context"
	"errors"
	"fleet-ops-service/internal/domain"
	"fleet-ops-service/internal/platform/metrics"
	"fleet-ops-service/internal/platform/obs"
	"fleet-ops-service/internal/ports"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateRouteInput struct {
	DriverID      string
	Name          string
	RouteDate     time.Time
	StartLocation domain.Coordinates
	EndLocation   *domain.Coordinates
	Waypoints     []domain.Waypoint
}

// RouteLifecycle owns route status changes. All status writes go through
// Transition, serialized per route id.
type RouteLifecycle struct {
	store        ports.RouteStore
	notifier     Notifier
	logger       *zap.Logger
	metrics      *metrics.Metrics
	storeTimeout time.Duration
	locks        *keyedMutex

	now   func() time.Time
	newID func() string
}

func NewRouteLifecycle(
	store ports.RouteStore,
	notifier Notifier,
	logger *zap.Logger,
	m *metrics.Metrics,
	storeTimeout time.Duration,
) *RouteLifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &RouteLifecycle{
		store:        store,
		notifier:     notifier,
		logger:       logger,
		metrics:      m,
		storeTimeout: storeTimeout,
		locks:        newKeyedMutex(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Create stores a new route in the planned state.
func (l *RouteLifecycle) Create(ctx context.Context, in CreateRouteInput) (_ *domain.MobileRoute, err error) {
	defer obs.Time(ctx, l.logger, "route.Create")(&err)

	driverID := strings.TrimSpace(in.DriverID)
	if driverID == "" {
		return nil, fmt.Errorf("create route: %w: driver id is required", domain.ErrInvalidRequest)
	}
	if err := in.StartLocation.Validate(); err != nil {
		return nil, fmt.Errorf("create route: %w: start location: %v", domain.ErrInvalidRequest, err)
	}
	if in.EndLocation != nil {
		if err := in.EndLocation.Validate(); err != nil {
			return nil, fmt.Errorf("create route: %w: end location: %v", domain.ErrInvalidRequest, err)
		}
	}

	waypoints := make([]domain.Waypoint, 0, len(in.Waypoints))
	for i, w := range in.Waypoints {
		if err := w.Location.Validate(); err != nil {
			return nil, fmt.Errorf("create route: %w: waypoint %d: %v", domain.ErrInvalidRequest, i, err)
		}
		if strings.TrimSpace(w.OrderID) == "" {
			return nil, fmt.Errorf("create route: %w: waypoint %d: order id is required", domain.ErrInvalidRequest, i)
		}
		if w.ServiceTime < 0 {
			return nil, fmt.Errorf("create route: %w: waypoint %d: negative service time", domain.ErrInvalidRequest, i)
		}
		if w.Status == "" {
			w.Status = domain.WaypointPending
		}
		if !w.Status.Valid() {
			return nil, fmt.Errorf("create route: %w: waypoint %d: unknown status %q", domain.ErrInvalidRequest, i, w.Status)
		}
		waypoints = append(waypoints, w)
	}

	now := l.now().UTC()
	routeDate := in.RouteDate
	if routeDate.IsZero() {
		routeDate = now
	}

	route := &domain.MobileRoute{
		ID:            l.newID(),
		DriverID:      driverID,
		Name:          strings.TrimSpace(in.Name),
		RouteDate:     routeDate,
		StartLocation: in.StartLocation,
		EndLocation:   in.EndLocation,
		Waypoints:     waypoints,
		Status:        domain.RoutePlanned,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = callStore(ctx, l.storeTimeout, "create route", func(ctx context.Context) error {
		return l.store.CreateRoute(ctx, route)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("route created",
		zap.String("route_id", route.ID),
		zap.String("driver_id", route.DriverID),
		zap.Int("waypoints", len(route.Waypoints)),
	)

	return route, nil
}

func (l *RouteLifecycle) Get(ctx context.Context, routeID string) (*domain.MobileRoute, error) {
	var route *domain.MobileRoute
	err := callStore(ctx, l.storeTimeout, "get route", func(ctx context.Context) error {
		var err error
		route, err = l.store.GetRoute(ctx, routeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return route, nil
}

// Transition moves a route to newStatus if the state graph allows it, then
// publishes mobile.route.status_changed.
func (l *RouteLifecycle) Transition(
	ctx context.Context,
	routeID string,
	newStatus domain.RouteStatus,
) (_ *domain.MobileRoute, err error) {
	defer obs.Time(ctx, l.logger, "route.Transition")(&err)

	unlock := l.locks.Lock(routeID)
	defer unlock()

	route, err := l.Get(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("transition route: %w", err)
	}

	oldStatus := route.Status
	if !oldStatus.CanTransitionTo(newStatus) {
		l.metrics.RouteTransitions.WithLabelValues(string(oldStatus), string(newStatus), "rejected").Inc()
		return nil, &domain.TransitionError{RouteID: routeID, From: oldStatus, To: newStatus}
	}

	err = callStore(ctx, l.storeTimeout, "transition route", func(ctx context.Context) error {
		return l.store.UpdateRouteStatus(ctx, routeID, oldStatus, newStatus)
	})
	if errors.Is(err, domain.ErrInvalidTransition) {
		// Another writer changed the status between our read and write.
		l.metrics.RouteTransitions.WithLabelValues(string(oldStatus), string(newStatus), "conflict").Inc()
		return nil, &domain.TransitionError{RouteID: routeID, From: oldStatus, To: newStatus}
	}
	if err != nil {
		return nil, err
	}

	route.Status = newStatus
	route.UpdatedAt = l.now().UTC()
	l.metrics.RouteTransitions.WithLabelValues(string(oldStatus), string(newStatus), "applied").Inc()

	l.notifier.Publish(domain.TopicRouteStatusChanged, domain.RouteStatusChanged{
		RouteID:   routeID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})

	l.logger.Info("route status changed",
		zap.String("route_id", routeID),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(newStatus)),
	)

	return route, nil
}

// UpdateWaypoint records driver progress on a pending waypoint of an
// in-progress route. Route status is not affected.
func (l *RouteLifecycle) UpdateWaypoint(
	ctx context.Context,
	routeID string,
	orderID string,
	status domain.WaypointStatus,
) (_ *domain.MobileRoute, err error) {
	defer obs.Time(ctx, l.logger, "route.UpdateWaypoint")(&err)

	if status != domain.WaypointVisited && status != domain.WaypointSkipped {
		return nil, fmt.Errorf("update waypoint: %w: status must be visited or skipped, got %q", domain.ErrInvalidRequest, status)
	}

	unlock := l.locks.Lock(routeID)
	defer unlock()

	route, err := l.Get(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("update waypoint: %w", err)
	}

	if route.Status != domain.RouteInProgress {
		return nil, fmt.Errorf(
			"update waypoint: %w: route %s is %q, waypoints change only while in_progress",
			domain.ErrInvalidTransition, routeID, route.Status,
		)
	}

	idx := -1
	for i, w := range route.Waypoints {
		if w.OrderID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("update waypoint: order %q on route %s: %w", orderID, routeID, domain.ErrNotFound)
	}
	if current := route.Waypoints[idx].Status; current != domain.WaypointPending {
		return nil, fmt.Errorf(
			"update waypoint: %w: order %q is already %q",
			domain.ErrInvalidTransition, orderID, current,
		)
	}

	err = callStore(ctx, l.storeTimeout, "update waypoint", func(ctx context.Context) error {
		return l.store.UpdateWaypointStatus(ctx, routeID, orderID, status)
	})
	if err != nil {
		return nil, err
	}

	route.Waypoints[idx].Status = status
	route.UpdatedAt = l.now().UTC()

	return route, nil
}
