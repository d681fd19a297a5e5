// Package metrics exposes Prometheus instrumentation for the auth pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records auth lifecycle events. It satisfies service.Metrics.
type Collector struct {
	registry *prometheus.Registry

	loginSuccess  prometheus.Counter
	loginFailure  *prometheus.CounterVec
	authRejects   *prometheus.CounterVec
	sessionsSwept prometheus.Counter
}

// NewCollector builds a Collector with its own registry, pre-registered
// with the standard Go and process collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: registry,
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waypost_login_success_total",
			Help: "Number of successful logins.",
		}),
		loginFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waypost_login_failure_total",
			Help: "Number of failed login attempts by reason.",
		}, []string{"reason"}),
		authRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waypost_auth_reject_total",
			Help: "Number of rejected authenticated requests by reason.",
		}, []string{"reason"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waypost_sessions_swept_total",
			Help: "Number of expired or revoked session rows deleted by the sweeper.",
		}),
	}

	registry.MustRegister(c.loginSuccess, c.loginFailure, c.authRejects, c.sessionsSwept)
	return c
}

// RecordLoginSuccess increments the successful login counter
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure increments the failed login counter for the reason
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFailure.WithLabelValues(reason).Inc()
}

// RecordAuthReject increments the rejected request counter for the reason
func (c *Collector) RecordAuthReject(reason string) {
	c.authRejects.WithLabelValues(reason).Inc()
}

// RecordSessionsSwept adds the number of rows removed by a sweep pass
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// Handler returns the HTTP handler serving the /metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
