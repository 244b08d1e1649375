package reconciler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records reconcile attempts for Prometheus.
type Metrics struct {
	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the reconcile metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blackbox_operator",
			Name:      "reconcile_attempts_total",
			Help:      "Reconcile attempts by trigger.",
		}, []string{"trigger"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blackbox_operator",
			Name:      "reconcile_outcomes_total",
			Help:      "Terminal outcomes of reconcile attempts.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blackbox_operator",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconcile attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.outcomes, m.duration)
	}
	return m
}

func (m *Metrics) observe(trigger Trigger, outcome Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(string(trigger)).Inc()
	m.outcomes.WithLabelValues(string(outcome)).Inc()
	m.duration.Observe(d.Seconds())
}
