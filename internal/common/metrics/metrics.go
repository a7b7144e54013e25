// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	IntakeEventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_events_handled_total",
			Help: "Inbound events processed, by outcome",
		},
		[]string{"outcome"},
	)

	IntakeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_state_transitions_total",
			Help: "Conversation state transitions",
		},
		[]string{"from", "to"},
	)

	IntakeFinalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_finalizations_total",
			Help: "Sub-flow completions written to the ledger, by service type and result",
		},
		[]string{"service_type", "result"},
	)

	IntakeDisqualifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_disqualifications_total",
			Help: "Sub-flow attempts that ended without a request",
		},
		[]string{"service_type"},
	)

	IntakeIngestFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_attachment_ingest_failures_total",
			Help: "Attachments that could not be fetched or stored",
		},
	)

	IntakeIngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_attachment_ingest_duration_seconds",
			Help:    "Time spent re-hosting one attachment",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	IntakeLockContention = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_identity_lock_contention_total",
			Help: "Identity lock acquisitions that had to wait or timed out",
		},
		[]string{"result"},
	)

	IntakeDuplicateEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_duplicate_events_total",
			Help: "Redelivered inbound events answered from the reply cache",
		},
	)
)
