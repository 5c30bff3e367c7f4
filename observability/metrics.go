package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics records submission activity on the relay HTTP surface.
type RelayMetrics struct {
	submissions *prometheus.CounterVec
	settlements prometheus.Counter
	latency     prometheus.Histogram
}

var (
	relayMetricsOnce sync.Once
	relayRegistry    *RelayMetrics
)

// Relay returns the lazily-initialised relay metrics registry.
func Relay() *RelayMetrics {
	relayMetricsOnce.Do(func() {
		relayRegistry = &RelayMetrics{
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swaprelay",
				Subsystem: "relay",
				Name:      "submissions_total",
				Help:      "Total signed swap submissions segmented by outcome.",
			}, []string{"outcome"}),
			settlements: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "swaprelay",
				Subsystem: "relay",
				Name:      "settlements_total",
				Help:      "Total successfully settled swaps.",
			}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "swaprelay",
				Subsystem: "relay",
				Name:      "submission_duration_seconds",
				Help:      "Latency distribution for swap submission handling.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(relayRegistry.submissions, relayRegistry.settlements, relayRegistry.latency)
	})
	return relayRegistry
}

// ObserveSubmission records one submission attempt with its outcome label.
func (m *RelayMetrics) ObserveSubmission(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
	m.latency.Observe(time.Since(start).Seconds())
}

// ObserveSettlement counts one successful settlement.
func (m *RelayMetrics) ObserveSettlement() {
	if m == nil {
		return
	}
	m.settlements.Inc()
}
