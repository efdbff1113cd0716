package handlers

import (
	"context"
	"fleet-ops-service/internal/api/dto"
	"fleet-ops-service/internal/domain"
	"net/http"
)

type LocationReporter interface {
	Report(ctx context.Context, driverID string, sample domain.LocationSample) error
}

type DriverHandler struct {
	Relay LocationReporter
}

// ReportLocation relays a live GPS sample to the event bus.
func (h *DriverHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	var req dto.LocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, r, http.StatusBadRequest, "lat and lng are required")
		return
	}

	sample := domain.LocationSample{Lat: *req.Lat, Lng: *req.Lng, IsOnline: req.IsOnline}
	if req.Timestamp != nil {
		sample.Timestamp = *req.Timestamp
	}

	if err := h.Relay.Report(r.Context(), r.PathValue("driver"), sample); err != nil {
		writeServiceError(w, r, "report location", err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
