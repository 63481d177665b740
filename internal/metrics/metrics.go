// Package metrics exposes Prometheus collectors for draws and session transitions.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	draws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prizedraw",
			Subsystem: "draw",
			Name:      "attempts_total",
			Help:      "Total number of draw attempts by outcome.",
		},
		[]string{"outcome"},
	)

	winners = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prizedraw",
			Subsystem: "draw",
			Name:      "winners_total",
			Help:      "Total number of winners committed per prize tier.",
		},
		[]string{"prize_id"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prizedraw",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Total number of draw session transitions by target status.",
		},
		[]string{"status"},
	)

	persistenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prizedraw",
			Subsystem: "storage",
			Name:      "write_failures_total",
			Help:      "Total number of failed durable writes by key.",
		},
		[]string{"key"},
	)
)

// Draw outcomes.
const (
	OutcomeCommitted    = "committed"
	OutcomeQuota        = "quota_exhausted"
	OutcomeInsufficient = "insufficient_pool"
	OutcomeFailed       = "failed"
)

func init() {
	Registry.MustRegister(
		draws,
		winners,
		transitions,
		persistenceFailures,
		collectors.NewGoCollector(),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordDraw counts one draw attempt.
func RecordDraw(outcome string) {
	draws.WithLabelValues(outcome).Inc()
}

// RecordWinners counts committed winners for a tier.
func RecordWinners(prizeID, n int) {
	winners.WithLabelValues(strconv.Itoa(prizeID)).Add(float64(n))
}

// RecordTransition counts a session transition into status.
func RecordTransition(status string) {
	transitions.WithLabelValues(status).Inc()
}

// RecordPersistenceFailure counts a failed durable write.
func RecordPersistenceFailure(key string) {
	persistenceFailures.WithLabelValues(key).Inc()
}
