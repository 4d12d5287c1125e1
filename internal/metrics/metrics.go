// Package metrics provides Prometheus metrics for alertflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "alertflow"
)

// Ingestion metrics
var (
	// AlertsIngested counts processed reports by transition kind.
	AlertsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "alerts_total",
			Help:      "Total alert reports processed, by transition kind",
		},
		[]string{"kind"}, // opened, duplicate, severity, status
	)

	// IngestConflicts counts optimistic-concurrency retries that exhausted.
	IngestConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "conflicts_total",
			Help:      "Total ingests that failed after bounded conflict retries",
		},
	)
)

// Dispatch metrics
var (
	// NotificationsSent counts send attempts by channel type and result.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "notifications_total",
			Help:      "Total notification send attempts",
		},
		[]string{"channel_type", "result"}, // ok, error
	)

	// NotificationsSuppressed counts dispatches vetoed by a blackout.
	NotificationsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "suppressed_total",
			Help:      "Total dispatches suppressed by blackout windows",
		},
	)

	// NotificationsDelayed counts delayed-notification markers scheduled.
	NotificationsDelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "delayed_total",
			Help:      "Total delayed notifications scheduled",
		},
	)

	// EscalationsFired counts escalation cadence re-fires.
	EscalationsFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "escalations_total",
			Help:      "Total escalation re-fires dispatched",
		},
	)
)

// Sweep metrics
var (
	// SweepDuration tracks sweep latency by sweep name.
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Sweep latency in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"sweep"}, // delayed, escalation, reactivate
	)

	// RulesReactivated counts rules flipped back on by the reactivate sweep.
	RulesReactivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "rules_reactivated_total",
			Help:      "Total notification rules reactivated",
		},
	)
)

// Info metric
var (
	// BuildInfo exposes build information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
