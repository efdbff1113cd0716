package domain

import "time"

type WaypointStatus string

const (
	WaypointPending WaypointStatus = "pending"
	WaypointVisited WaypointStatus = "visited"
	WaypointSkipped WaypointStatus = "skipped"
)

func (s WaypointStatus) Valid() bool {
	switch s {
	case WaypointPending, WaypointVisited, WaypointSkipped:
		return true
	}
	return false
}

// Represents a single stop a route must visit.
// ServiceTime is the dwell time at the stop, in minutes.
type Waypoint struct {
	Location    Coordinates    `json:"location"`
	OrderID     string         `json:"order_id"`
	ServiceTime float64        `json:"service_time"`
	Status      WaypointStatus `json:"status"`
}

type RouteStatus string

const (
	RoutePlanned    RouteStatus = "planned"
	RouteInProgress RouteStatus = "in_progress"
	RouteCompleted  RouteStatus = "completed"
	RouteCancelled  RouteStatus = "cancelled"
)

// allowedTransitions is the complete route state graph.
// completed and cancelled are terminal.
var allowedTransitions = map[RouteStatus][]RouteStatus{
	RoutePlanned:    {RouteInProgress, RouteCancelled},
	RouteInProgress: {RouteCompleted, RouteCancelled},
}

func (s RouteStatus) Valid() bool {
	switch s {
	case RoutePlanned, RouteInProgress, RouteCompleted, RouteCancelled:
		return true
	}
	return false
}

func (s RouteStatus) Terminal() bool {
	return s == RouteCompleted || s == RouteCancelled
}

// CanTransitionTo reports whether next is directly reachable from s.
func (s RouteStatus) CanTransitionTo(next RouteStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// A driver's planned route. Status changes only through the route lifecycle service.
type MobileRoute struct {
	ID            string       `json:"id"`
	DriverID      string       `json:"driver_id"`
	Name          string       `json:"name"`
	RouteDate     time.Time    `json:"route_date"`
	StartLocation Coordinates  `json:"start_location"`
	EndLocation   *Coordinates `json:"end_location,omitempty"`
	Waypoints     []Waypoint   `json:"waypoints"`
	Status        RouteStatus  `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Input for ordering waypoints. Waypoint order is irrelevant.
// When EndLocation is nil no return leg is costed.
type RouteOptimizationRequest struct {
	StartLocation Coordinates
	EndLocation   *Coordinates
	Waypoints     []Waypoint
}

// Output of the route optimizer.
// OptimizedWaypoints is always a permutation of the request waypoints.
type RouteOptimizationResult struct {
	OptimizedWaypoints      []Waypoint
	TotalDistance           float64 // kilometers
	TotalDuration           float64 // minutes, service time included
	EstimatedCompletionTime time.Time
}
