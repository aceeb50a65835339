package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_jobs_processed_total",
		Help: "The total number of jobs processed by terminal status",
	}, []string{"status"})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analyzer_job_duration_seconds",
		Help:    "Duration of a full job run from dequeue to terminal state",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	CommentsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analyzer_comments_fetched_total",
		Help: "The total number of comments fetched from the source platform",
	})

	ClassifierBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_classifier_batches_total",
		Help: "The total number of classifier chunk calls by outcome",
	}, []string{"outcome"})

	ClassifierRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analyzer_classifier_request_duration_seconds",
		Help:    "Duration of classification oracle requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	ClassifierFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analyzer_classifier_fallbacks_total",
		Help: "The total number of comments that received the fallback sentiment",
	})

	QueueRedeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analyzer_queue_redeliveries_total",
		Help: "The total number of job messages redelivered after a failure",
	})

	QueueDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analyzer_queue_dead_lettered_total",
		Help: "The total number of job messages routed to the dead-letter list",
	})

	JobsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analyzer_jobs_expired_total",
		Help: "The total number of jobs purged past their retention deadline",
	})
)

// Classifier batch outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomePartial = "partial"
)
