package handlers

import (
	"context"
	"fleet-ops-service/internal/api/dto"
	"fleet-ops-service/internal/domain"
	"fleet-ops-service/internal/services"
	"net/http"
	"time"
)

type RouteOptimizer interface {
	Optimize(ctx context.Context, req domain.RouteOptimizationRequest) (*domain.RouteOptimizationResult, error)
}

type RouteLifecycle interface {
	Create(ctx context.Context, in services.CreateRouteInput) (*domain.MobileRoute, error)
	Get(ctx context.Context, routeID string) (*domain.MobileRoute, error)
	Transition(ctx context.Context, routeID string, newStatus domain.RouteStatus) (*domain.MobileRoute, error)
	UpdateWaypoint(ctx context.Context, routeID, orderID string, status domain.WaypointStatus) (*domain.MobileRoute, error)
}

type RouteHandler struct {
	Optimizer RouteOptimizer
	Lifecycle RouteLifecycle
}

// Optimize orders the posted waypoints without persisting anything.
func (h *RouteHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req dto.OptimizeRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StartLocation == nil {
		writeError(w, r, http.StatusBadRequest, "start_location is required")
		return
	}

	res, err := h.Optimizer.Optimize(r.Context(), domain.RouteOptimizationRequest{
		StartLocation: *req.StartLocation,
		EndLocation:   req.EndLocation,
		Waypoints:     dto.ToWaypoints(req.Waypoints),
	})
	if err != nil {
		writeServiceError(w, r, "optimize route", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.OptimizeRouteResponse{
		OptimizedWaypoints:      res.OptimizedWaypoints,
		TotalDistance:           res.TotalDistance,
		TotalDuration:           res.TotalDuration,
		EstimatedCompletionTime: res.EstimatedCompletionTime,
	})
}

func (h *RouteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StartLocation == nil {
		writeError(w, r, http.StatusBadRequest, "start_location is required")
		return
	}

	var routeDate time.Time
	if req.RouteDate != nil {
		routeDate = *req.RouteDate
	}

	route, err := h.Lifecycle.Create(r.Context(), services.CreateRouteInput{
		DriverID:      req.DriverID,
		Name:          req.Name,
		RouteDate:     routeDate,
		StartLocation: *req.StartLocation,
		EndLocation:   req.EndLocation,
		Waypoints:     dto.ToWaypoints(req.Waypoints),
	})
	if err != nil {
		writeServiceError(w, r, "create route", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, route)
}

func (h *RouteHandler) Get(w http.ResponseWriter, r *http.Request) {
	route, err := h.Lifecycle.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "get route", err)
		return
	}

	writeJSON(w, r, http.StatusOK, route)
}

func (h *RouteHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req dto.TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeError(w, r, http.StatusBadRequest, "status must be one of planned, in_progress, completed, cancelled")
		return
	}

	route, err := h.Lifecycle.Transition(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeServiceError(w, r, "transition route", err)
		return
	}

	writeJSON(w, r, http.StatusOK, route)
}

func (h *RouteHandler) UpdateWaypoint(w http.ResponseWriter, r *http.Request) {
	var req dto.WaypointStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	route, err := h.Lifecycle.UpdateWaypoint(r.Context(), r.PathValue("id"), r.PathValue("orderID"), req.Status)
	if err != nil {
		writeServiceError(w, r, "update waypoint", err)
		return
	}

	writeJSON(w, r, http.StatusOK, route)
}
