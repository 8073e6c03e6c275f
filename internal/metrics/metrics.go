// Package metrics holds the Prometheus collectors of the server. Collectors
// are registered with the default registry and exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gophmaps_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Authorization Metrics
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophmaps_authz_decisions_total",
			Help: "Authorization decisions by resolved role, action and outcome",
		},
		[]string{"role", "action", "decision"}, // decision: allow, forbidden, not_found
	)

	// Media Lifecycle Metrics
	MediaTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophmaps_media_transitions_total",
			Help: "Media asset state transitions",
		},
		[]string{"from", "to"},
	)

	SweepDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophmaps_sweep_deletions_total",
			Help: "Orphaned media processed by the deletion sweeper",
		},
		[]string{"result"}, // deleted, failed
	)

	ReconcileRemovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophmaps_reconcile_removals_total",
			Help: "Rows and objects removed by reconciliation passes",
		},
		[]string{"kind"}, // stale_pending, orphaned, unreferenced_object
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gophmaps_reconcile_duration_seconds",
			Help:    "Duration of reconciliation passes",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	// Object Store Metrics
	StorageRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophmaps_storage_requests_total",
			Help: "Object store calls by operation and outcome",
		},
		[]string{"operation", "outcome"}, // outcome: ok, not_found, unavailable, fatal
	)

	StorageBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gophmaps_storage_breaker_state",
			Help: "Object store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func RecordAuthzDecision(role, action, decision string) {
	AuthzDecisions.WithLabelValues(role, action, decision).Inc()
}

func RecordMediaTransition(from, to string) {
	MediaTransitions.WithLabelValues(from, to).Inc()
}

func RecordSweep(deleted bool) {
	if deleted {
		SweepDeletions.WithLabelValues("deleted").Inc()
		return
	}
	SweepDeletions.WithLabelValues("failed").Inc()
}

func RecordReconcileRemoval(kind string, n int) {
	ReconcileRemovals.WithLabelValues(kind).Add(float64(n))
}

func RecordStorageRequest(operation, outcome string) {
	StorageRequests.WithLabelValues(operation, outcome).Inc()
}
