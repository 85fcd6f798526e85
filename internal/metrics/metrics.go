// Package metrics exposes Prometheus instrumentation for the extraction
// pipeline. Counters are registered at init via promauto and updated from the
// services; the HTTP server serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProjectsProcessedTotal counts pipeline outcomes per project.
	ProjectsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tm_extractor_projects_processed_total",
			Help: "Projects processed by the submission pipeline",
		},
		[]string{"status"}, // submitted, skipped, failed
	)

	// APIRequestsTotal counts outbound calls to the two upstream services.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tm_extractor_api_requests_total",
			Help: "Outbound API requests by endpoint and outcome",
		},
		[]string{"endpoint", "status"}, // endpoint=snapshot/task_status/project/active_projects, status=success/failure
	)

	// RetriesTotal counts retry attempts after a failed call.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tm_extractor_retries_total",
			Help: "Retry attempts by endpoint",
		},
		[]string{"endpoint"},
	)

	// RateLimitWaitsTotal counts dedicated rate-limit waits on the POST path.
	RateLimitWaitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tm_extractor_rate_limit_waits_total",
			Help: "Long waits taken after a 429/502 from the raw-data API",
		},
	)

	// TaskPollsTotal counts status polls issued by the tracker.
	TaskPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tm_extractor_task_polls_total",
			Help: "Task status polls issued by the tracker",
		},
	)

	// TasksTrackedTotal counts tracked tasks by final outcome.
	TasksTrackedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tm_extractor_tasks_tracked_total",
			Help: "Tracked tasks by terminal outcome",
		},
		[]string{"status"}, // success, failure
	)

	// TaskDurationSeconds observes per-task wall time from first to last poll.
	TaskDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tm_extractor_task_duration_seconds",
			Help:    "Wall time spent tracking a task until terminal status",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
		},
	)
)
