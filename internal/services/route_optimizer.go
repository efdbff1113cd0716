package services

import (
	"context"
	"errors"
	"fleet-ops-service/internal/domain"
	"fleet-ops-service/internal/platform/metrics"
	"fleet-ops-service/internal/platform/obs"
	"fleet-ops-service/internal/ports"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxWaypoints bounds a single optimization request. The heuristic is
// O(n²) in the number of waypoints and is meant for routes of tens of stops.
const DefaultMaxWaypoints = 1000

// RouteOptimizer orders waypoints with a greedy nearest-neighbor heuristic.
// It has no side effects besides logging and metrics and is safe for concurrent use.
type RouteOptimizer struct {
	provider     ports.DistanceProvider
	logger       *zap.Logger
	metrics      *metrics.Metrics
	maxWaypoints int
	now          func() time.Time
}

func NewRouteOptimizer(provider ports.DistanceProvider, logger *zap.Logger, m *metrics.Metrics) *RouteOptimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &RouteOptimizer{
		provider:     provider,
		logger:       logger,
		metrics:      m,
		maxWaypoints: DefaultMaxWaypoints,
		now:          time.Now,
	}
}

// Optimize plans the visiting order of req.Waypoints starting at req.StartLocation.
//
// At each step the closest remaining waypoint is chosen. Equidistant candidates
// resolve to the one that appears first in the request, so results are
// deterministic. When req.EndLocation is set the final leg to it is included
// in distance and duration. The ordering is not globally optimal.
func (o *RouteOptimizer) Optimize(
	ctx context.Context,
	req domain.RouteOptimizationRequest,
) (_ *domain.RouteOptimizationResult, err error) {
	defer obs.Time(ctx, o.logger, "route.Optimize")(&err)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		o.metrics.RouteOptimizations.WithLabelValues(outcome).Inc()
	}()

	if err := o.validate(req); err != nil {
		return nil, err
	}

	remaining := make([]domain.Waypoint, len(req.Waypoints))
	copy(remaining, req.Waypoints)

	ordered := make([]domain.Waypoint, 0, len(remaining))
	current := req.StartLocation
	totalDistance := 0.0
	totalDuration := 0.0

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("optimize route: %w", err)
		}

		bestIdx := -1
		bestDistance := math.Inf(1)

		// Strict comparison keeps the first-seen waypoint on ties.
		for i, w := range remaining {
			d := o.provider.Distance(current, w.Location)
			if d < bestDistance {
				bestDistance = d
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			return nil, errors.New("optimize route: failed to select next waypoint")
		}

		next := remaining[bestIdx]
		next.Status = domain.WaypointPending

		totalDistance += bestDistance
		totalDuration += o.provider.TravelMinutes(bestDistance) + next.ServiceTime

		ordered = append(ordered, next)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		current = next.Location
	}

	if req.EndLocation != nil {
		back := o.provider.Distance(current, *req.EndLocation)
		totalDistance += back
		totalDuration += o.provider.TravelMinutes(back)
	}

	return &domain.RouteOptimizationResult{
		OptimizedWaypoints:      ordered,
		TotalDistance:           totalDistance,
		TotalDuration:           totalDuration,
		EstimatedCompletionTime: o.now().Add(minutesToDuration(totalDuration)),
	}, nil
}

func (o *RouteOptimizer) validate(req domain.RouteOptimizationRequest) error {
	if len(req.Waypoints) == 0 {
		return fmt.Errorf("optimize route: %w: at least one waypoint is required", domain.ErrInvalidRequest)
	}
	if len(req.Waypoints) > o.maxWaypoints {
		return fmt.Errorf(
			"optimize route: %w: %d waypoints exceeds limit of %d",
			domain.ErrInvalidRequest, len(req.Waypoints), o.maxWaypoints,
		)
	}
	if err := req.StartLocation.Validate(); err != nil {
		return fmt.Errorf("optimize route: %w: start location: %v", domain.ErrInvalidRequest, err)
	}
	if req.EndLocation != nil {
		if err := req.EndLocation.Validate(); err != nil {
			return fmt.Errorf("optimize route: %w: end location: %v", domain.ErrInvalidRequest, err)
		}
	}
	for i, w := range req.Waypoints {
		if err := w.Location.Validate(); err != nil {
			return fmt.Errorf("optimize route: %w: waypoint %d: %v", domain.ErrInvalidRequest, i, err)
		}
		if w.ServiceTime < 0 || math.IsNaN(w.ServiceTime) || math.IsInf(w.ServiceTime, 0) {
			return fmt.Errorf(
				"optimize route: %w: waypoint %d: service time must be a non-negative number",
				domain.ErrInvalidRequest, i,
			)
		}
	}
	return nil
}

func minutesToDuration(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}
