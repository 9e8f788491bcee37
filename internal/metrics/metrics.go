// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textpulse_messages_sent_total",
		Help: "Messages accepted by the SMS provider.",
	})

	MessagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textpulse_messages_failed_total",
		Help: "Messages that terminally failed after retries.",
	})

	MessagesRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textpulse_messages_retried_total",
		Help: "Per-message retry attempts.",
	})

	BatchesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textpulse_batches_sent_total",
		Help: "Transport batches submitted to the provider.",
	})

	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textpulse_jobs_enqueued_total",
		Help: "Campaign jobs enqueued.",
	})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "textpulse_jobs_completed_total",
		Help: "Campaign jobs reaching a terminal status.",
	}, []string{"status"})

	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textpulse_scheduler_sweeps_total",
		Help: "Scheduler sweep iterations executed.",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "textpulse_scheduler_sweep_duration_seconds",
		Help:    "Duration of scheduler sweep iterations.",
		Buckets: prometheus.DefBuckets,
	})

	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "textpulse_tasks_processed_total",
		Help: "Scheduled tasks processed by the sweep, by type and outcome.",
	}, []string{"type", "outcome"})
)
