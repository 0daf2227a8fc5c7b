package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// Job outcomes reported under river_jobs_completed_total.
const (
	JobSucceeded = "success"
	JobFailed    = "error"
)

var (
	RiverJobsQueued = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "river_jobs_queued_total",
			Help:      "Jobs inserted into the River queue",
		},
		[]string{"kind"},
	)

	RiverJobsInFlight = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "river_jobs_in_flight",
			Help:      "River jobs currently being worked",
		},
		[]string{"kind"},
	)

	// Asset releases are a single unlink; sweeps walk the upload directory.
	RiverJobDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "river_job_duration_seconds",
			Help:      "River job attempt duration in seconds",
			Buckets:   []float64{.005, .025, .1, .5, 1, 5, 30, 120},
		},
		[]string{"kind"},
	)

	RiverJobsCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "river_jobs_completed_total",
			Help:      "River job attempts by outcome",
		},
		[]string{"kind", "result"},
	)
)

// RiverMetricsHook reports queue activity through River's insert and work hooks.
type RiverMetricsHook struct {
	river.HookDefaults
}

func NewRiverMetricsHook() *RiverMetricsHook {
	return &RiverMetricsHook{}
}

func (h *RiverMetricsHook) InsertBegin(_ context.Context, params *rivertype.JobInsertParams) error {
	RiverJobsQueued.WithLabelValues(params.Kind).Inc()
	return nil
}

func (h *RiverMetricsHook) WorkBegin(_ context.Context, job *rivertype.JobRow) error {
	RiverJobsInFlight.WithLabelValues(job.Kind).Inc()
	return nil
}

// WorkEnd measures from the attempt start River stamped on the row.
func (h *RiverMetricsHook) WorkEnd(_ context.Context, job *rivertype.JobRow, err error) error {
	RiverJobsInFlight.WithLabelValues(job.Kind).Dec()
	if job.AttemptedAt != nil {
		RiverJobDuration.WithLabelValues(job.Kind).Observe(time.Since(*job.AttemptedAt).Seconds())
	}

	outcome := JobSucceeded
	if err != nil {
		outcome = JobFailed
	}
	RiverJobsCompleted.WithLabelValues(job.Kind, outcome).Inc()
	return nil
}
