// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Path labels for NotificationsRecorded.
const (
	PathStandalone = "standalone"
	PathMerged     = "merged"
)

// Result labels for CountCache.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
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

	NotificationsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_recorded_total",
			Help: "Owner notifications recorded, by whether the event opened a burst or merged into one",
		},
		[]string{"path"},
	)

	BurstsRewritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_bursts_rewritten_total",
			Help: "Counter rows replaced while aggregating a burst",
		},
	)

	GroupNotificationsFannedOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "group_notifications_fanned_out_total",
			Help: "Per-member group notification rows inserted",
		},
	)

	NotificationsMarkedRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_marked_read_total",
			Help: "Notifications flipped from unread to read",
		},
		[]string{"scope"},
	)

	CountCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_count_cache_total",
			Help: "Badge count cache lookups by result",
		},
		[]string{"result"},
	)

	TxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_tx_retries_total",
			Help: "Transactions rerun after a serialization failure or deadlock",
		},
	)
)
