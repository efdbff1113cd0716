package dto

import "fleet-ops-service/internal/domain"

type SetConstraintRequest struct {
	MaxQuantity float64 `json:"max_quantity"`
	Unit        string  `json:"unit"`
}

type DeltaRequest struct {
	Delta *float64 `json:"delta"`
}

type ListAlertsResponse struct {
	Alerts []domain.LowStockAlert `json:"alerts"`
}

// QuantityErrorResponse carries the values behind a rejected delta.
type QuantityErrorResponse struct {
	Error     string  `json:"error"`
	Current   float64 `json:"current"`
	Delta     float64 `json:"delta"`
	Attempted float64 `json:"attempted"`
	Max       float64 `json:"max,omitempty"`
}

type TransitionErrorResponse struct {
	Error string             `json:"error"`
	From  domain.RouteStatus `json:"from"`
	To    domain.RouteStatus `json:"to"`
}
