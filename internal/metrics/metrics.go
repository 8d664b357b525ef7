package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eleven-am/govod/internal/domain"
)

const namespace = "govod"

type Metrics struct {
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	ActiveJobs    prometheus.Gauge
	Rejected      prometheus.Counter
	Duplicates    prometheus.Counter
}

// New registers the pipeline collectors on reg. A nil reg uses a private
// registry so repeated construction never collides.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 3, 10),
		}, []string{"stage", "outcome"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Failed pipeline stages by failure kind.",
		}, []string{"stage", "kind"}),
		ActiveJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Assets currently being ingested.",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Sources that failed validation.",
		}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_sources_total",
			Help:      "Sources whose content digest was already known.",
		}),
	}
}

// Observe records one stage run that began at start and ended with err.
func (m *Metrics) Observe(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.StageFailures.WithLabelValues(stage, Kind(err)).Inc()
	}
	m.StageDuration.WithLabelValues(stage, outcome).Observe(time.Since(start).Seconds())
}

// Kind labels err for the failures counter.
func Kind(err error) string {
	var f *domain.Failure
	var pe *domain.ProcessError
	var se *domain.ProcessSpawnError
	switch {
	case errors.Is(err, domain.ErrCancelled):
		return "cancelled"
	case errors.As(err, &f):
		return string(f.Kind)
	case errors.As(err, &pe):
		return "process"
	case errors.As(err, &se):
		return "spawn"
	default:
		return "other"
	}
}
