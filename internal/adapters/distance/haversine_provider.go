package distance

import (
	"errors"
	"fleet-ops-service/internal/domain"
	"math"
)

const (
	earthRadiusKm = 6371.0

	// Typical urban delivery speed used when none is configured.
	DefaultAverageSpeedKmh = 30.0
)

// HaversineProvider implements DistanceProvider with great-circle distance
// and a linear speed model. It holds no mutable state and is safe for concurrent use.
type HaversineProvider struct {
	speedKmh float64
}

func NewHaversineProvider(averageSpeedKmh float64) (*HaversineProvider, error) {
	if averageSpeedKmh <= 0 || math.IsNaN(averageSpeedKmh) || math.IsInf(averageSpeedKmh, 0) {
		return nil, errors.New("haversine provider: average speed must be a positive finite number")
	}
	return &HaversineProvider{speedKmh: averageSpeedKmh}, nil
}

// Distance returns the great-circle distance between a and b in kilometers.
func (h *HaversineProvider) Distance(a, b domain.Coordinates) float64 {
	return Haversine(a, b)
}

// TravelMinutes converts a distance to minutes at the configured speed.
func (h *HaversineProvider) TravelMinutes(km float64) float64 {
	if km <= 0 {
		return 0
	}
	return km / h.speedKmh * 60
}

// Haversine returns the great-circle distance in kilometers. Identical points yield 0.
func Haversine(a, b domain.Coordinates) float64 {
	if a.Lat == b.Lat && a.Lng == b.Lng {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Rounding can push h slightly past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
