// Package instrument adapts the retry orchestrator's and circuit breaker's
// observer callbacks onto Prometheus metrics and OpenTelemetry traces.
package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver records retry attempts and breaker transitions as
// Prometheus metrics. Construct with NewPrometheusObserver and register
// with a prometheus.Registerer before wiring its methods into
// retry.Config/breaker.Config callbacks.
type PrometheusObserver struct {
	name string

	retryAttempts   *prometheus.CounterVec
	retryGiveUps    *prometheus.CounterVec
	retryDelay      *prometheus.HistogramVec
	breakerOpens    prometheus.Counter
	breakerCloses   prometheus.Counter
	breakerHalfOpen prometheus.Counter
}

// NewPrometheusObserver builds and registers the metrics, all labeled with
// name (the circuit/operation this observer instruments).
func NewPrometheusObserver(name string, reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		name: name,
		retryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilient_http_retry_attempts_total",
			Help: "Number of retry attempts that failed and triggered another attempt.",
		}, []string{"operation"}),
		retryGiveUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilient_http_retry_give_ups_total",
			Help: "Number of retry loops that gave up without succeeding.",
		}, []string{"operation"}),
		retryDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resilient_http_retry_delay_seconds",
			Help:    "Computed inter-attempt delay, in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		breakerOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "resilient_http_breaker_opens_total",
			Help:        "Number of times the circuit breaker transitioned to open.",
			ConstLabels: prometheus.Labels{"operation": name},
		}),
		breakerCloses: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "resilient_http_breaker_closes_total",
			Help:        "Number of times the circuit breaker transitioned to closed.",
			ConstLabels: prometheus.Labels{"operation": name},
		}),
		breakerHalfOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "resilient_http_breaker_half_opens_total",
			Help:        "Number of times the circuit breaker transitioned to half-open.",
			ConstLabels: prometheus.Labels{"operation": name},
		}),
	}

	reg.MustRegister(o.retryAttempts, o.retryGiveUps, o.retryDelay, o.breakerOpens, o.breakerCloses, o.breakerHalfOpen)
	return o
}

// OnRetry matches retry.Config.OnRetry's signature.
func (o *PrometheusObserver) OnRetry(_ error, _ int, delay time.Duration) {
	o.retryAttempts.WithLabelValues(o.name).Inc()
	o.retryDelay.WithLabelValues(o.name).Observe(delay.Seconds())
}

// OnFailure matches retry.Config.OnFailure's signature.
func (o *PrometheusObserver) OnFailure(_ error, _ int) {
	o.retryGiveUps.WithLabelValues(o.name).Inc()
}

// OnOpen matches breaker.Config.OnOpen's signature.
func (o *PrometheusObserver) OnOpen() { o.breakerOpens.Inc() }

// OnClose matches breaker.Config.OnClose's signature.
func (o *PrometheusObserver) OnClose() { o.breakerCloses.Inc() }

// OnHalfOpen matches breaker.Config.OnHalfOpen's signature.
func (o *PrometheusObserver) OnHalfOpen() { o.breakerHalfOpen.Inc() }
