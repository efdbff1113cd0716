package services

import (
	"context"
	"errors"
	"fleet-ops-service/internal/adapters/repositories"
	"fleet-ops-service/internal/domain"
	"fleet-ops-service/internal/platform/metrics"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestRouteInput() CreateRouteInput {
	return CreateRouteInput{
		DriverID:      "driver-1",
		Name:          "morning run",
		StartLocation: domain.Coordinates{Lat: -34.6037, Lng: -58.3816},
		Waypoints: []domain.Waypoint{
			{OrderID: "o1", Location: domain.Coordinates{Lat: -34.5925, Lng: -58.3975}, ServiceTime: 10},
			{OrderID: "o2", Location: domain.Coordinates{Lat: -34.6158, Lng: -58.4333}, ServiceTime: 15},
		},
	}
}

func TestRouteLifecycleCreateAndTransition(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	m := metrics.NewNop()
	l := NewRouteLifecycle(repositories.NewMemoryStore(), notifier, nil, m, time.Second)

	route, err := l.Create(ctx, newTestRouteInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if route.Status != domain.RoutePlanned {
		t.Fatalf("status = %q, want planned", route.Status)
	}
	if route.ID == "" || route.RouteDate.IsZero() {
		t.Fatalf("expected id and route date to be set: %+v", route)
	}
	for _, w := range route.Waypoints {
		if w.Status != domain.WaypointPending {
			t.Fatalf("waypoint %s status = %q, want pending", w.OrderID, w.Status)
		}
	}

	updated, err := l.Transition(ctx, route.ID, domain.RouteInProgress)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != domain.RouteInProgress {
		t.Fatalf("status = %q, want in_progress", updated.Status)
	}

	events := notifier.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].topic != domain.TopicRouteStatusChanged {
		t.Fatalf("topic = %q", events[0].topic)
	}
	want := domain.RouteStatusChanged{RouteID: route.ID, OldStatus: domain.RoutePlanned, NewStatus: domain.RouteInProgress}
	if events[0].payload != want {
		t.Fatalf("payload = %+v, want %+v", events[0].payload, want)
	}

	_, err = l.Transition(ctx, route.ID, domain.RoutePlanned)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	var te *domain.TransitionError
	if !errors.As(err, &te) || te.From != domain.RouteInProgress || te.To != domain.RoutePlanned {
		t.Fatalf("expected TransitionError in_progress->planned, got %v", err)
	}
	if len(notifier.Events()) != 1 {
		t.Fatal("rejected transition must not publish")
	}

	stored, err := l.Get(ctx, route.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.RouteInProgress {
		t.Fatalf("stored status = %q, want in_progress", stored.Status)
	}

	if got := testutil.ToFloat64(m.RouteTransitions.WithLabelValues("planned", "in_progress", "applied")); got != 1 {
		t.Fatalf("applied transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RouteTransitions.WithLabelValues("in_progress", "planned", "rejected")); got != 1 {
		t.Fatalf("rejected transitions = %v, want 1", got)
	}
}

func TestRouteLifecycleTerminalStatesAreClosed(t *testing.T) {
	ctx := context.Background()
	l := NewRouteLifecycle(repositories.NewMemoryStore(), &recordingNotifier{}, nil, nil, time.Second)

	route, err := l.Create(ctx, newTestRouteInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := l.Transition(ctx, route.ID, domain.RouteCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for _, to := range []domain.RouteStatus{domain.RoutePlanned, domain.RouteInProgress, domain.RouteCompleted, domain.RouteCancelled} {
		if _, err := l.Transition(ctx, route.ID, to); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("cancelled -> %s: expected ErrInvalidTransition, got %v", to, err)
		}
	}
}

func TestRouteLifecycleConcurrentTransitionsApplyOnce(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	l := NewRouteLifecycle(repositories.NewMemoryStore(), notifier, nil, nil, time.Second)

	route, err := l.Create(ctx, newTestRouteInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Transition(ctx, route.ID, domain.RouteInProgress); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", succeeded)
	}
	if len(notifier.Events()) != 1 {
		t.Fatalf("events = %d, want 1", len(notifier.Events()))
	}
}

func TestRouteLifecycleLostStatusRace(t *testing.T) {
	ctx := context.Background()
	store := racingRouteStore{MemoryStore: repositories.NewMemoryStore()}
	notifier := &recordingNotifier{}
	l := NewRouteLifecycle(store, notifier, nil, nil, time.Second)

	route, err := l.Create(ctx, newTestRouteInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = l.Transition(ctx, route.ID, domain.RouteInProgress)
	var te *domain.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if len(notifier.Events()) != 0 {
		t.Fatal("lost race must not publish")
	}
}

func TestRouteLifecycleStoreUnavailable(t *testing.T) {
	store := blockingRouteStore{MemoryStore: repositories.NewMemoryStore()}
	l := NewRouteLifecycle(store, &recordingNotifier{}, nil, nil, 20*time.Millisecond)

	_, err := l.Transition(context.Background(), "r1", domain.RouteInProgress)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", err)
	}
}

func TestRouteLifecycleUnknownRoute(t *testing.T) {
	l := NewRouteLifecycle(repositories.NewMemoryStore(), &recordingNotifier{}, nil, nil, time.Second)

	_, err := l.Transition(context.Background(), "missing", domain.RouteInProgress)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRouteLifecycleCreateRejectsInvalidInput(t *testing.T) {
	l := NewRouteLifecycle(repositories.NewMemoryStore(), &recordingNotifier{}, nil, nil, time.Second)

	noDriver := newTestRouteInput()
	noDriver.DriverID = " "
	badStart := newTestRouteInput()
	badStart.StartLocation = domain.Coordinates{Lat: 100}
	noOrder := newTestRouteInput()
	noOrder.Waypoints[0].OrderID = ""

	for name, in := range map[string]CreateRouteInput{"no driver": noDriver, "bad start": badStart, "no order": noOrder} {
		if _, err := l.Create(context.Background(), in); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}
}

func TestRouteLifecycleUpdateWaypoint(t *testing.T) {
	ctx := context.Background()
	l := NewRouteLifecycle(repositories.NewMemoryStore(), &recordingNotifier{}, nil, nil, time.Second)

	route, err := l.Create(ctx, newTestRouteInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := l.UpdateWaypoint(ctx, route.ID, "o1", domain.WaypointVisited); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("planned route: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := l.Transition(ctx, route.ID, domain.RouteInProgress); err != nil {
		t.Fatalf("start: %v", err)
	}

	updated, err := l.UpdateWaypoint(ctx, route.ID, "o1", domain.WaypointVisited)
	if err != nil {
		t.Fatalf("update waypoint: %v", err)
	}
	if updated.Waypoints[0].Status != domain.WaypointVisited {
		t.Fatalf("o1 = %q, want visited", updated.Waypoints[0].Status)
	}
	if updated.Status != domain.RouteInProgress {
		t.Fatalf("route status changed to %q", updated.Status)
	}

	if _, err := l.UpdateWaypoint(ctx, route.ID, "o1", domain.WaypointSkipped); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("visited waypoint: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := l.UpdateWaypoint(ctx, route.ID, "o9", domain.WaypointVisited); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown order: expected ErrNotFound, got %v", err)
	}
	if _, err := l.UpdateWaypoint(ctx, route.ID, "o2", domain.WaypointPending); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("pending target: expected ErrInvalidRequest, got %v", err)
	}

	stored, _ := l.Get(ctx, route.ID)
	if stored.Waypoints[0].Status != domain.WaypointVisited || stored.Waypoints[1].Status != domain.WaypointPending {
		t.Fatalf("unexpected stored waypoints: %+v", stored.Waypoints)
	}
}
