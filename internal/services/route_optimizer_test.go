package services

import (
	"context"
	"errors"
	"fleet-ops-service/internal/adapters/distance"
	"fleet-ops-service/internal/domain"
	"math"
	"slices"
	"testing"
	"time"
)

func labeled(label string) domain.Coordinates {
	return domain.Coordinates{Lat: 0, Lng: 0, Label: label}
}

func newTestOptimizer(t *testing.T, pairs []distance.MockPair) *RouteOptimizer {
	t.Helper()
	o := NewRouteOptimizer(distance.NewMockDistanceProvider(pairs, 2), nil, nil)
	o.now = func() time.Time { return time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC) }
	return o
}

func TestRouteOptimizerNearestNeighbor(t *testing.T) {
	pairs := []distance.MockPair{
		{From: "HUB", To: "A", Km: 1},
		{From: "HUB", To: "B", Km: 2},
		{From: "HUB", To: "C", Km: 1.5},
		{From: "A", To: "B", Km: 0.8},
		{From: "A", To: "C", Km: 0.7},
		{From: "B", To: "C", Km: 0.9},
	}
	o := newTestOptimizer(t, pairs)

	req := domain.RouteOptimizationRequest{
		StartLocation: labeled("HUB"),
		Waypoints: []domain.Waypoint{
			{OrderID: "b", Location: labeled("B"), ServiceTime: 15},
			{OrderID: "c", Location: labeled("C"), ServiceTime: 5},
			{OrderID: "a", Location: labeled("A"), ServiceTime: 10},
		},
	}

	res, err := o.Optimize(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := []string{}
	for _, w := range res.OptimizedWaypoints {
		got = append(got, w.OrderID)
		if w.Status != domain.WaypointPending {
			t.Fatalf("waypoint %s status = %q, want pending", w.OrderID, w.Status)
		}
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "c" || got[2] != "b" {
		t.Fatalf("order = %v, want [a c b]", got)
	}

	if math.Abs(res.TotalDistance-2.6) > 1e-9 {
		t.Fatalf("distance = %v, want 2.6", res.TotalDistance)
	}
	// 2.6 km at 2 min/km plus 30 min of service.
	if math.Abs(res.TotalDuration-35.2) > 1e-9 {
		t.Fatalf("duration = %v, want 35.2", res.TotalDuration)
	}

	wantETA := time.Date(2026, 1, 1, 8, 35, 12, 0, time.UTC)
	if d := res.EstimatedCompletionTime.Sub(wantETA); d > time.Millisecond || d < -time.Millisecond {
		t.Fatalf("eta = %v, want %v", res.EstimatedCompletionTime, wantETA)
	}

	// The request slice is left untouched.
	if req.Waypoints[0].OrderID != "b" || len(req.Waypoints) != 3 {
		t.Fatalf("request waypoints mutated: %+v", req.Waypoints)
	}
}

func TestRouteOptimizerIncludesEndLeg(t *testing.T) {
	pairs := []distance.MockPair{
		{From: "HUB", To: "A", Km: 1},
		{From: "A", To: "DEPOT", Km: 3},
	}
	o := newTestOptimizer(t, pairs)

	end := labeled("DEPOT")
	res, err := o.Optimize(context.Background(), domain.RouteOptimizationRequest{
		StartLocation: labeled("HUB"),
		EndLocation:   &end,
		Waypoints:     []domain.Waypoint{{OrderID: "a", Location: labeled("A")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalDistance != 4 {
		t.Fatalf("distance = %v, want 4", res.TotalDistance)
	}
	if res.TotalDuration != 8 {
		t.Fatalf("duration = %v, want 8", res.TotalDuration)
	}
}

func TestRouteOptimizerTieBreaksOnInputOrder(t *testing.T) {
	pairs := []distance.MockPair{
		{From: "HUB", To: "A", Km: 1},
		{From: "HUB", To: "B", Km: 1},
		{From: "A", To: "B", Km: 2},
	}
	o := newTestOptimizer(t, pairs)

	for _, first := range []string{"A", "B"} {
		second := "B"
		if first == "B" {
			second = "A"
		}
		res, err := o.Optimize(context.Background(), domain.RouteOptimizationRequest{
			StartLocation: labeled("HUB"),
			Waypoints: []domain.Waypoint{
				{OrderID: first, Location: labeled(first)},
				{OrderID: second, Location: labeled(second)},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.OptimizedWaypoints[0].OrderID != first {
			t.Fatalf("with %s listed first, got %s first", first, res.OptimizedWaypoints[0].OrderID)
		}
	}
}

func TestRouteOptimizerHaversineScenarios(t *testing.T) {
	provider, err := distance.NewHaversineProvider(distance.DefaultAverageSpeedKmh)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	o := NewRouteOptimizer(provider, nil, nil)

	start := domain.Coordinates{Lat: -34.6037, Lng: -58.3816}
	waypoints := []domain.Waypoint{
		{OrderID: "1", Location: domain.Coordinates{Lat: -34.5925, Lng: -58.3975}, ServiceTime: 10},
		{OrderID: "2", Location: domain.Coordinates{Lat: -34.6158, Lng: -58.4333}, ServiceTime: 15},
		{OrderID: "3", Location: domain.Coordinates{Lat: -34.6092, Lng: -58.3732}, ServiceTime: 5},
	}

	t.Run("three waypoints", func(t *testing.T) {
		before := time.Now()
		res, err := o.Optimize(context.Background(), domain.RouteOptimizationRequest{StartLocation: start, Waypoints: waypoints})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.OptimizedWaypoints) != 3 {
			t.Fatalf("expected 3 waypoints, got %d", len(res.OptimizedWaypoints))
		}
		if res.TotalDistance <= 0 || res.TotalDuration <= 0 {
			t.Fatalf("expected positive totals, got %v km / %v min", res.TotalDistance, res.TotalDuration)
		}
		if res.TotalDuration < 30 {
			t.Fatalf("duration %v must include 30 min of service", res.TotalDuration)
		}
		if !res.EstimatedCompletionTime.After(before) {
			t.Fatalf("eta %v not after %v", res.EstimatedCompletionTime, before)
		}

		assertPermutation(t, waypoints, res.OptimizedWaypoints)

		again, err := o.Optimize(context.Background(), domain.RouteOptimizationRequest{StartLocation: start, Waypoints: waypoints})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := range res.OptimizedWaypoints {
			if res.OptimizedWaypoints[i].OrderID != again.OptimizedWaypoints[i].OrderID {
				t.Fatal("optimization is not deterministic")
			}
		}
	})

	t.Run("single waypoint", func(t *testing.T) {
		res, err := o.Optimize(context.Background(), domain.RouteOptimizationRequest{StartLocation: start, Waypoints: waypoints[:1]})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.OptimizedWaypoints) != 1 {
			t.Fatalf("expected 1 waypoint, got %d", len(res.OptimizedWaypoints))
		}
		want := distance.Haversine(start, waypoints[0].Location)
		if math.Abs(res.TotalDistance-want) > 1e-9 {
			t.Fatalf("distance = %v, want %v", res.TotalDistance, want)
		}
	})

	t.Run("repeated order ids", func(t *testing.T) {
		repeated := append([]domain.Waypoint{}, waypoints...)
		repeated = append(repeated, domain.Waypoint{OrderID: "1", Location: domain.Coordinates{Lat: -34.62, Lng: -58.41}, ServiceTime: 5})

		res, err := o.Optimize(context.Background(), domain.RouteOptimizationRequest{StartLocation: start, Waypoints: repeated})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertPermutation(t, repeated, res.OptimizedWaypoints)
	})

	t.Run("single waypoint at start without end", func(t *testing.T) {
		res, err := o.Optimize(context.Background(), domain.RouteOptimizationRequest{
			StartLocation: start,
			Waypoints:     []domain.Waypoint{{OrderID: "here", Location: start}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.TotalDistance != 0 || res.TotalDuration != 0 {
			t.Fatalf("totals = %v km / %v min, want 0 / 0", res.TotalDistance, res.TotalDuration)
		}
		if len(res.OptimizedWaypoints) != 1 || res.OptimizedWaypoints[0].OrderID != "here" {
			t.Fatalf("unexpected waypoints: %+v", res.OptimizedWaypoints)
		}
	})
}

// assertPermutation compares order ids as multisets.
func assertPermutation(t *testing.T, in, out []domain.Waypoint) {
	t.Helper()

	ids := func(ws []domain.Waypoint) []string {
		out := make([]string, 0, len(ws))
		for _, w := range ws {
			out = append(out, w.OrderID)
		}
		slices.Sort(out)
		return out
	}
	if want, got := ids(in), ids(out); !slices.Equal(want, got) {
		t.Fatalf("result is not a permutation of the input: got %v, want %v", got, want)
	}
}

func TestRouteOptimizerRejectsInvalidInput(t *testing.T) {
	o := newTestOptimizer(t, nil)

	tests := []struct {
		name string
		req  domain.RouteOptimizationRequest
	}{
		{name: "no waypoints", req: domain.RouteOptimizationRequest{StartLocation: labeled("HUB")}},
		{name: "bad start", req: domain.RouteOptimizationRequest{
			StartLocation: domain.Coordinates{Lat: 120},
			Waypoints:     []domain.Waypoint{{OrderID: "a", Location: labeled("A")}},
		}},
		{name: "negative service time", req: domain.RouteOptimizationRequest{
			StartLocation: labeled("HUB"),
			Waypoints:     []domain.Waypoint{{OrderID: "a", Location: labeled("A"), ServiceTime: -1}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Optimize(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}

	o.maxWaypoints = 2
	_, err := o.Optimize(context.Background(), domain.RouteOptimizationRequest{
		StartLocation: labeled("HUB"),
		Waypoints: []domain.Waypoint{
			{OrderID: "a", Location: labeled("A")},
			{OrderID: "b", Location: labeled("B")},
			{OrderID: "c", Location: labeled("C")},
		},
	})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest over the waypoint limit, got %v", err)
	}
}

func TestRouteOptimizerHonorsCancellation(t *testing.T) {
	o := newTestOptimizer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Optimize(ctx, domain.RouteOptimizationRequest{
		StartLocation: labeled("HUB"),
		Waypoints:     []domain.Waypoint{{OrderID: "a", Location: labeled("A")}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
