package Metrics

import (
	"sync"

	"FalconFreight/Models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated registry served on /metrics
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "falcon_http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "falcon_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path"},
	)

	// TripTransitions counts trip operations by outcome (ok, conflict, invalid, ...)
	TripTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "falcon_trip_transitions_total", Help: "Trip lifecycle operations by outcome."},
		[]string{"operation", "result"},
	)
	FuelMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "falcon_fuel_movements_total", Help: "Fuel ledger writes by kind, source and outcome."},
		[]string{"kind", "source", "result"},
	)
	FuelStockLiters = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "falcon_fuel_stock_liters", Help: "Depot liters after the last ledger write."},
	)

	SweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "falcon_billing_sweep_runs_total", Help: "Billing sweep runs by outcome."},
		[]string{"result"},
	)
	SweepOverdue = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "falcon_billing_sweep_overdue_total", Help: "Trips newly marked overdue."},
	)
	SweepNotifications = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "falcon_billing_sweep_notifications_total", Help: "Overdue notifications created."},
	)
	SweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "falcon_billing_sweep_trip_failures_total", Help: "Trips the sweep failed to update."},
	)
)

var regOnce sync.Once

// RegisterDefault registers every collector once on Registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			HTTPRequests,
			HTTPDuration,
			TripTransitions,
			FuelMovements,
			FuelStockLiters,
			SweepRuns,
			SweepOverdue,
			SweepNotifications,
			SweepFailures,
		)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Result maps an operation error to a short label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case Models.IsValidation(err):
		return "invalid"
	case Models.IsNotFound(err):
		return "not_found"
	case Models.IsConflict(err):
		return "conflict"
	case Models.IsInsufficientStock(err):
		return "insufficient_stock"
	case Models.IsForbidden(err):
		return "forbidden"
	}
	return "error"
}
