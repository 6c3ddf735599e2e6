package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AutosaveMetrics records quotation persistence outcomes.
type AutosaveMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewAutosaveMetrics registers the autosave metrics on the provided registerer.
func NewAutosaveMetrics(reg prometheus.Registerer) *AutosaveMetrics {
	if reg == nil {
		return &AutosaveMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quotation_save_duration_seconds",
		Help:    "Duration of quotation document saves in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"storage"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotation_save_success",
		Help: "Successful quotation document saves.",
	}, []string{"storage"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotation_save_failure",
		Help: "Failed quotation document saves.",
	}, []string{"storage"})
	reg.MustRegister(duration, success, failure)
	return &AutosaveMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration of a save against the named storage.
func (m *AutosaveMetrics) ObserveDuration(storage string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(storage)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named storage.
func (m *AutosaveMetrics) IncSuccess(storage string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(storage)).Inc()
}

// IncFailure increments the failure counter for the named storage.
func (m *AutosaveMetrics) IncFailure(storage string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(storage)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
