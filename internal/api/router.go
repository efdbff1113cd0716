package api

import (
	"fleet-ops-service/internal/api/handlers"
	"fleet-ops-service/internal/platform/metrics"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the services the HTTP layer needs.
type Deps struct {
	Optimizer handlers.RouteOptimizer
	Lifecycle handlers.RouteLifecycle
	Ledger    handlers.CapacityLedger
	Relay     handlers.LocationReporter

	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewNop()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()

	routes := &handlers.RouteHandler{Optimizer: d.Optimizer, Lifecycle: d.Lifecycle}
	capacity := &handlers.CapacityHandler{Ledger: d.Ledger}
	drivers := &handlers.DriverHandler{Relay: d.Relay}

	mux.HandleFunc("GET /health", handlers.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /routes/optimize", routes.Optimize)
	mux.HandleFunc("POST /routes", routes.Create)
	mux.HandleFunc("GET /routes/{id}", routes.Get)
	mux.HandleFunc("POST /routes/{id}/transition", routes.Transition)
	mux.HandleFunc("POST /routes/{id}/waypoints/{orderID}", routes.UpdateWaypoint)

	mux.HandleFunc("PUT /vehicles/{vehicle}/materials/{material}/constraint", capacity.SetConstraint)
	mux.HandleFunc("GET /vehicles/{vehicle}/materials/{material}/capacity", capacity.Check)
	mux.HandleFunc("POST /vehicles/{vehicle}/materials/{material}/delta", capacity.ApplyDelta)
	mux.HandleFunc("GET /vehicles/{vehicle}/alerts", capacity.Alerts)

	mux.HandleFunc("POST /drivers/{driver}/location", drivers.ReportLocation)

	return observe(d.Logger, d.Metrics, mux)
}
