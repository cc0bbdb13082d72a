package metrics

import (
	"time"

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

	CreditScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "credit_score_value",
			Help:    "Distribution of computed credit scores",
			Buckets: prometheus.LinearBuckets(300, 50, 13),
		},
	)

	CreditScoresByBand = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_scores_total",
			Help: "Computed credit scores by risk band and eligibility label",
		},
		[]string{"risk_band", "eligibility_label"},
	)

	ScoreCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_score_cache_lookups_total",
			Help: "Score cache lookups by result",
		},
		[]string{"result"},
	)

	LoanRoutes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_routes_total",
			Help: "Loan applications routed by outcome",
		},
		[]string{"route", "priority"},
	)

	LoanDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_decisions_total",
			Help: "Officer decisions on loan applications",
		},
		[]string{"decision"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Decision notifications by channel and status",
		},
		[]string{"channel", "status"},
	)
)

// TrackJob marks a job active and returns a function that records its
// outcome. Pass an empty error code for success.
func TrackJob(taskType string) func(errorCode string) {
	start := time.Now()
	WorkerJobsActive.WithLabelValues(taskType).Inc()

	return func(errorCode string) {
		WorkerJobsActive.WithLabelValues(taskType).Dec()
		WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		if errorCode != "" {
			WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
			return
		}
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	}
}
