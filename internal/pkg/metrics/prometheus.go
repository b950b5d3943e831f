package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scan metrics
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftguard",
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of environment scans",
		},
		[]string{"status"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "driftguard",
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Duration of environment scans in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	scanResourceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "driftguard",
			Subsystem: "scan",
			Name:      "resource_failures_total",
			Help:      "Total number of per-resource failures during scans",
		},
	)

	// Drift lifecycle metrics
	driftTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftguard",
			Subsystem: "drift",
			Name:      "transitions_total",
			Help:      "Total number of drift lifecycle transitions",
		},
		[]string{"transition"},
	)

	unresolvedDrifts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "driftguard",
			Subsystem: "drift",
			Name:      "unresolved_count",
			Help:      "Number of unresolved drift events",
		},
		[]string{"environment"},
	)

	// Analysis and recommendation metrics
	causeAnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftguard",
			Subsystem: "analysis",
			Name:      "completed_total",
			Help:      "Total number of cause analyses",
		},
		[]string{"category"},
	)

	recommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftguard",
			Subsystem: "recommendation",
			Name:      "generated_total",
			Help:      "Total number of recommendations generated",
		},
		[]string{"type", "priority"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftguard",
			Subsystem: "notification",
			Name:      "sent_total",
			Help:      "Total number of severity threshold notifications",
		},
		[]string{"status"},
	)
)

// RecordScan records a completed environment scan
func RecordScan(status string, duration time.Duration) {
	scansTotal.WithLabelValues(status).Inc()
	scanDuration.Observe(duration.Seconds())
}

// RecordScanResourceFailure records a per-resource failure inside a scan
func RecordScanResourceFailure() {
	scanResourceFailures.Inc()
}

// RecordDriftTransition records a lifecycle transition (opened, refreshed, closed, resolved)
func RecordDriftTransition(transition string) {
	driftTransitionsTotal.WithLabelValues(transition).Inc()
}

// SetUnresolvedDrifts sets the unresolved drift gauge for an environment
func SetUnresolvedDrifts(environment string, count float64) {
	unresolvedDrifts.WithLabelValues(environment).Set(count)
}

// RecordCauseAnalysis records a completed cause analysis
func RecordCauseAnalysis(category string) {
	causeAnalysesTotal.WithLabelValues(category).Inc()
}

// RecordRecommendation records a generated recommendation
func RecordRecommendation(recType, priority string) {
	recommendationsTotal.WithLabelValues(recType, priority).Inc()
}

// RecordNotification records a severity threshold notification attempt
func RecordNotification(status string) {
	notificationsTotal.WithLabelValues(status).Inc()
}
