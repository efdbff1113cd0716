package ports

import "fleet-ops-service/internal/domain"

// Contract for estimating travel distance and duration between coordinates.
type DistanceProvider interface {
	// Return the travel distance in kilometers between two coordinates.
	Distance(a, b domain.Coordinates) float64
	// Return the estimated travel time in minutes for a distance in kilometers.
	TravelMinutes(km float64) float64
}
