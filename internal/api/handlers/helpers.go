package handlers

import (
	"encoding/json"
	"errors"
	"fleet-ops-service/internal/api/dto"
	"fleet-ops-service/internal/domain"
	"fleet-ops-service/internal/platform/obs"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obs.Logger(r.Context()).Warn("encode failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeJSON reads exactly one JSON object into v. On failure it writes the
// 400 response itself and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var qe *domain.QuantityError
	if errors.As(err, &qe) {
		writeJSON(w, r, http.StatusConflict, dto.QuantityErrorResponse{
			Error:     qe.Err.Error(),
			Current:   qe.Current,
			Delta:     qe.Delta,
			Attempted: qe.Attempted,
			Max:       qe.Max,
		})
		return
	}

	var te *domain.TransitionError
	if errors.As(err, &te) {
		writeJSON(w, r, http.StatusConflict, dto.TransitionErrorResponse{
			Error: err.Error(),
			From:  te.From,
			To:    te.To,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidConstraint):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrStoreUnavailable):
		obs.Logger(r.Context()).Error(op+" failed", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "store unavailable")
	default:
		obs.Logger(r.Context()).Error(op+" failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
