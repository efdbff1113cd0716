package dto

import (
	"fleet-ops-service/internal/domain"
	"time"
)

type WaypointRequest struct {
	Location    domain.Coordinates `json:"location"`
	OrderID     string             `json:"order_id"`
	ServiceTime float64            `json:"service_time"`
}

type OptimizeRouteRequest struct {
	StartLocation *domain.Coordinates `json:"start_location"`
	EndLocation   *domain.Coordinates `json:"end_location"`
	Waypoints     []WaypointRequest   `json:"waypoints"`
}

type OptimizeRouteResponse struct {
	OptimizedWaypoints      []domain.Waypoint `json:"optimized_waypoints"`
	TotalDistance           float64           `json:"total_distance"`
	TotalDuration           float64           `json:"total_duration"`
	EstimatedCompletionTime time.Time         `json:"estimated_completion_time"`
}

type CreateRouteRequest struct {
	DriverID      string              `json:"driver_id"`
	Name          string              `json:"name"`
	RouteDate     *time.Time          `json:"route_date"`
	StartLocation *domain.Coordinates `json:"start_location"`
	EndLocation   *domain.Coordinates `json:"end_location"`
	Waypoints     []WaypointRequest   `json:"waypoints"`
}

type TransitionRequest struct {
	Status domain.RouteStatus `json:"status"`
}

type WaypointStatusRequest struct {
	Status domain.WaypointStatus `json:"status"`
}

func ToWaypoints(in []WaypointRequest) []domain.Waypoint {
	out := make([]domain.Waypoint, 0, len(in))
	for _, w := range in {
		out = append(out, domain.Waypoint{
			Location:    w.Location,
			OrderID:     w.OrderID,
			ServiceTime: w.ServiceTime,
			Status:      domain.WaypointPending,
		})
	}
	return out
}
