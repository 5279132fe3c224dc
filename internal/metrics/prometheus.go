package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal counts finished executions by terminal status.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codebasse_executions_total",
			Help: "Total number of code executions",
		},
		[]string{"status"},
	)

	// ExecutionDuration tracks how long submitted programs ran, in seconds.
	ExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codebasse_execution_duration_seconds",
			Help:    "Wall-clock run time of submitted programs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	// CompileDuration tracks compiler wall-clock time in seconds.
	CompileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codebasse_compile_duration_seconds",
			Help:    "Wall-clock compile time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// QueueWait tracks how long submissions waited for a free worker.
	QueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codebasse_queue_wait_seconds",
			Help:    "Time spent waiting for admission to the worker pool",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	// QueueDepth is the number of submissions waiting for a worker.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codebasse_queue_depth",
			Help: "Number of submissions waiting for a free worker",
		},
	)

	// WorkersActive tracks the number of currently active workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codebasse_workers_active",
			Help: "Number of workers currently running an execution",
		},
	)

	// WorkspacesActive is the number of workspace directories currently held.
	WorkspacesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codebasse_workspaces_active",
			Help: "Number of workspace directories currently allocated",
		},
	)

	// WorkspaceCleanupFailures counts workspaces that could not be removed.
	WorkspaceCleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codebasse_workspace_cleanup_failures_total",
			Help: "Total number of workspace directories that failed to be removed",
		},
	)

	// SandboxFailures counts sandbox infrastructure failures (not user code errors).
	SandboxFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codebasse_sandbox_failures_total",
			Help: "Total number of sandbox infrastructure failures",
		},
		[]string{"backend"},
	)

	// TraceEntries tracks how many variable writes each execution reported.
	TraceEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codebasse_trace_entries",
			Help:    "Number of trace entries per execution",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// EventsPublished counts execution events by outcome.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codebasse_events_published_total",
			Help: "Total number of execution events handed to the broker",
		},
		[]string{"result"},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codebasse_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)
