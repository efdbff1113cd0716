package handlers

import (
	"context"
	"fleet-ops-service/internal/api/dto"
	"fleet-ops-service/internal/domain"
	"net/http"
	"strconv"
)

type CapacityLedger interface {
	SetConstraint(ctx context.Context, vehicleID, materialID string, maxQuantity float64, unit string) (domain.CapacityConstraint, error)
	CheckCapacity(ctx context.Context, vehicleID, materialID string, additional float64) (domain.CapacityCheck, error)
	ApplyDelta(ctx context.Context, vehicleID, materialID string, delta float64) (domain.InventoryRecord, error)
	LowStockAlerts(ctx context.Context, vehicleID string) ([]domain.LowStockAlert, error)
}

// CapacityHandler exposes per-vehicle material constraints and inventory.
type CapacityHandler struct {
	Ledger CapacityLedger
}

func (h *CapacityHandler) SetConstraint(w http.ResponseWriter, r *http.Request) {
	var req dto.SetConstraintRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.Ledger.SetConstraint(r.Context(), r.PathValue("vehicle"), r.PathValue("material"), req.MaxQuantity, req.Unit)
	if err != nil {
		writeServiceError(w, r, "set constraint", err)
		return
	}

	writeJSON(w, r, http.StatusOK, c)
}

func (h *CapacityHandler) Check(w http.ResponseWriter, r *http.Request) {
	additional := 0.0
	if raw := r.URL.Query().Get("additional"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "additional must be a number")
			return
		}
		additional = v
	}

	check, err := h.Ledger.CheckCapacity(r.Context(), r.PathValue("vehicle"), r.PathValue("material"), additional)
	if err != nil {
		writeServiceError(w, r, "check capacity", err)
		return
	}

	writeJSON(w, r, http.StatusOK, check)
}

func (h *CapacityHandler) ApplyDelta(w http.ResponseWriter, r *http.Request) {
	var req dto.DeltaRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Delta == nil {
		writeError(w, r, http.StatusBadRequest, "delta is required")
		return
	}

	rec, err := h.Ledger.ApplyDelta(r.Context(), r.PathValue("vehicle"), r.PathValue("material"), *req.Delta)
	if err != nil {
		writeServiceError(w, r, "apply delta", err)
		return
	}

	writeJSON(w, r, http.StatusOK, rec)
}

func (h *CapacityHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Ledger.LowStockAlerts(r.Context(), r.PathValue("vehicle"))
	if err != nil {
		writeServiceError(w, r, "low stock alerts", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ListAlertsResponse{Alerts: alerts})
}
