package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics records metadata for obligation handler runs.
type SchedulerMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewSchedulerMetrics registers the scheduler metrics on the provided registerer.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	if reg == nil {
		return &SchedulerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "obligation_duration_seconds",
		Help:    "Duration of obligation handler runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "obligation_success",
		Help: "Successful obligation handler runs.",
	}, []string{"kind"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "obligation_failure",
		Help: "Failed obligation handler runs.",
	}, []string{"kind"})
	reg.MustRegister(duration, success, failure)
	return &SchedulerMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named obligation kind.
func (m *SchedulerMetrics) ObserveDuration(kind string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named obligation kind.
func (m *SchedulerMetrics) IncSuccess(kind string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailure increments the failure counter for the named obligation kind.
func (m *SchedulerMetrics) IncFailure(kind string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(kind string) string {
	if kind == "" {
		return "unknown"
	}
	return kind
}
