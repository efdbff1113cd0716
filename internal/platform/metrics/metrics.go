package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service collectors. Collectors are registered on the
// registerer passed to New so tests can use an isolated registry.
type Metrics struct {
	InventoryDeltas    *prometheus.CounterVec
	RouteTransitions   *prometheus.CounterVec
	RouteOptimizations *prometheus.CounterVec
	Notifications      *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		InventoryDeltas: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_inventory_deltas_total",
				Help: "Inventory delta attempts by outcome",
			},
			[]string{"outcome"},
		),
		RouteTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_route_transitions_total",
				Help: "Route status transitions by source and target status",
			},
			[]string{"from", "to", "outcome"},
		),
		RouteOptimizations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_route_optimizations_total",
				Help: "Route optimization requests by outcome",
			},
			[]string{"outcome"},
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_notifications_total",
				Help: "Event bus publications by topic and outcome",
			},
			[]string{"topic", "outcome"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fleet_http_request_duration_seconds",
				Help:    "Histogram of response times",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// NewNop returns collectors registered on a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
