package distance

import (
	"fleet-ops-service/internal/domain"
)

// MockPair fixes the distance between two labelled coordinates.
type MockPair struct {
	From, To string
	Km       float64
}

// MockDistanceProvider returns fixed distances keyed by coordinate labels.
// Pairs are symmetric; unknown pairs fall back to haversine distance.
type MockDistanceProvider struct {
	m           map[string]float64
	minutesPerK float64
}

func NewMockDistanceProvider(pairs []MockPair, minutesPerKm float64) *MockDistanceProvider {
	m := make(map[string]float64, 2*len(pairs))
	for _, p := range pairs {
		m[p.From+"|"+p.To] = p.Km
		m[p.To+"|"+p.From] = p.Km
	}
	return &MockDistanceProvider{m: m, minutesPerK: minutesPerKm}
}

func (p *MockDistanceProvider) Distance(a, b domain.Coordinates) float64 {
	if a.Label != "" && a.Label == b.Label {
		return 0
	}
	if km, ok := p.m[a.Label+"|"+b.Label]; ok {
		return km
	}
	return Haversine(a, b)
}

func (p *MockDistanceProvider) TravelMinutes(km float64) float64 {
	return km * p.minutesPerK
}
