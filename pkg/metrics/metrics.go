package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patternloft_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// RightsChecks counts access-control evaluations and their outcome (allow|deny|error).
	RightsChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patternloft_rights_checks_total",
			Help: "Total number of resource rights checks",
		},
		[]string{"resource_type", "result"},
	)

	// PatternUploads counts pattern file metadata registrations.
	PatternUploads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "patternloft_pattern_uploads_total",
			Help: "Total number of pattern file uploads recorded",
		},
	)

	// OrphanSweeps tracks rows removed by the maintenance sweeper, by kind
	// (pattern|tag|file|grant).
	OrphanSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patternloft_orphan_sweeps_total",
			Help: "Rows removed by the orphaned access-control sweeper",
		},
		[]string{"kind"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patternloft_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
