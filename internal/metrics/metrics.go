// Package metrics exposes the prometheus counters and histograms the
// reconciler emits for each run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	permissionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dac_reconciler_permissions_created_total",
			Help: "Total number of permissions granted across all runs.",
		},
	)

	permissionsRevokedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dac_reconciler_permissions_revoked_total",
			Help: "Total number of permissions revoked across all runs.",
		},
	)

	reconcileErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dac_reconciler_errors_total",
			Help: "Total number of per-item errors encountered, by phase.",
		},
		[]string{"phase"},
	)

	reconcileDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dac_reconciler_duration_seconds",
			Help:    "Duration of a reconciliation phase in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
)

func init() {
	prometheus.MustRegister(permissionsCreatedTotal)
	prometheus.MustRegister(permissionsRevokedTotal)
	prometheus.MustRegister(reconcileErrorsTotal)
	prometheus.MustRegister(reconcileDurationSeconds)
}

// Handler returns the http.Handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPermissionsCreated increments the total by n.
func RecordPermissionsCreated(n int) {
	permissionsCreatedTotal.Add(float64(n))
}

// RecordPermissionsRevoked increments the total by n.
func RecordPermissionsRevoked(n int) {
	permissionsRevokedTotal.Add(float64(n))
}

// RecordErrors increments the per-phase error counter by n.
func RecordErrors(phase string, n int) {
	if n <= 0 {
		return
	}
	reconcileErrorsTotal.WithLabelValues(phase).Add(float64(n))
}

// ObservePhaseDuration records how long phase took, in seconds.
func ObservePhaseDuration(phase string, seconds float64) {
	reconcileDurationSeconds.WithLabelValues(phase).Observe(seconds)
}
