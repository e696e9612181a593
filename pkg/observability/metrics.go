// Package observability provides Prometheus collectors for the orchestration
// engine and the HTTP surface.
package observability

import "github.com/prometheus/client_golang/prometheus"

// BackendBuckets defines histogram buckets suited for external-call
// latencies, ranging from 50ms to 60s.
var BackendBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

var (
	// TurnsTotal counts completed turns by committed route and outcome
	// (answered, handoff, awaiting_reply).
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_turns_total",
			Help: "Completed turns",
		},
		[]string{"route", "outcome"},
	)

	// TransitionsTotal counts state machine transitions by node.
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_transitions_total",
			Help: "State machine transitions",
		},
		[]string{"node"},
	)

	// ClarificationsTotal counts clarification passes.
	ClarificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_clarifications_total",
			Help: "Clarification loop passes",
		},
	)

	// BackendRetriesTotal counts dispatcher retries by route.
	BackendRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_backend_retries_total",
			Help: "Backend retry attempts",
		},
		[]string{"route"},
	)

	// BackendLatency records backend adapter latency in seconds by route and status.
	BackendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchboard_backend_latency_seconds",
			Help:    "Backend adapter latency",
			Buckets: BackendBuckets,
		},
		[]string{"route", "status"},
	)

	// ClassifierLatency records classifier latency in seconds by status.
	ClassifierLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchboard_classifier_latency_seconds",
			Help:    "Classifier latency",
			Buckets: BackendBuckets,
		},
		[]string{"status"},
	)
)

// Register adds all collectors to the given registry. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		TurnsTotal,
		TransitionsTotal,
		ClarificationsTotal,
		BackendRetriesTotal,
		BackendLatency,
		ClassifierLatency,
	)
}
