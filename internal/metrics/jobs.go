package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsEnqueuedTotal, jobsClaimedTotal, jobsFinishedTotal, jobsRetriedTotal) }

var (
	jobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_enqueued_total",
			Help: "Jobs enqueued, labeled by job type.",
		},
		[]string{"type"},
	)

	jobsClaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_claimed_total",
			Help: "Jobs claimed by workers, labeled by job type.",
		},
		[]string{"type"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_finished_total",
			Help: "Jobs reaching a terminal status, labeled by job type and status.",
		},
		[]string{"type", "status"}, // 'succeeded', 'failed'
	)

	jobsRetriedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_retried_total",
			Help: "Jobs re-enqueued for another attempt, labeled by job type.",
		},
		[]string{"type"},
	)
)

func IncJobEnqueued(jobType string) {
	jobsEnqueuedTotal.WithLabelValues(norm(jobType)).Inc()
}

func AddJobsClaimed(jobType string, n int) {
	jobsClaimedTotal.WithLabelValues(norm(jobType)).Add(float64(n))
}

func IncJobFinished(jobType, status string) {
	jobsFinishedTotal.WithLabelValues(norm(jobType), norm(status)).Inc()
}

func IncJobRetried(jobType string) {
	jobsRetriedTotal.WithLabelValues(norm(jobType)).Inc()
}
