package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records outcomes of settlement runs.
type SettlementMetrics struct {
	duration       *prometheus.HistogramVec
	completed      *prometheus.CounterVec
	partialFailure *prometheus.CounterVec
	retried        prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of settlement runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_completed_total",
		Help: "Settlements that ran all three steps to completion.",
	}, []string{"category"})
	partialFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_partial_failure_total",
		Help: "Settlements that stopped at a step, labeled by the failed step.",
	}, []string{"step"})
	retried := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_retry_total",
		Help: "Settlement runs that resumed a previously failed receipt.",
	})
	reg.MustRegister(duration, completed, partialFailure, retried)
	return &SettlementMetrics{
		duration:       duration,
		completed:      completed,
		partialFailure: partialFailure,
		retried:        retried,
	}
}

// ObserveDuration records how long the run took, labeled by outcome.
func (m *SettlementMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncCompleted increments the completion counter for the expense category.
func (m *SettlementMetrics) IncCompleted(category string) {
	if m == nil || m.completed == nil {
		return
	}
	m.completed.WithLabelValues(normalizeLabel(category)).Inc()
}

// IncPartialFailure increments the partial-failure counter for the step.
func (m *SettlementMetrics) IncPartialFailure(step string) {
	if m == nil || m.partialFailure == nil {
		return
	}
	m.partialFailure.WithLabelValues(normalizeLabel(step)).Inc()
}

// IncRetried counts resumed settlement runs.
func (m *SettlementMetrics) IncRetried() {
	if m == nil || m.retried == nil {
		return
	}
	m.retried.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
