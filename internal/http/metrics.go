package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// Metrics holds the client's prometheus collectors. Collectors built with a
// nil registerer are usable but not exported.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Retries  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deploy",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "HTTP requests sent, by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "deploy",
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deploy",
				Subsystem: "client",
				Name:      "retries_total",
				Help:      "Re-attempts after transient failures, by method",
			},
			[]string{"method"},
		),
	}
}

func (m *Metrics) observe(method string, kind deploy.OutcomeKind, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.Requests.WithLabelValues(method, kind.String()).Inc()
	m.Duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveRetry counts one re-attempt.
func (m *Metrics) ObserveRetry(method string) {
	if m == nil {
		return
	}

	m.Retries.WithLabelValues(method).Inc()
}
