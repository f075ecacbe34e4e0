// Package metrics exposes Prometheus collectors for the auth service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthMetrics records auth outcomes and HTTP latency.
type AuthMetrics struct {
	registry *prometheus.Registry

	signUps       *prometheus.CounterVec
	signIns       *prometheus.CounterVec
	sessionsSwept prometheus.Counter
	httpDuration  *prometheus.HistogramVec
}

// New registers the auth collectors on a fresh registry.
func New() *AuthMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &AuthMetrics{
		registry: reg,
		signUps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_signups_total",
			Help: "Total number of sign-up attempts by result",
		}, []string{"result"}),
		signIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_signins_total",
			Help: "Total number of sign-in attempts by result",
		}, []string{"result"}),
		sessionsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_swept_total",
			Help: "Total number of expired sessions removed by the janitor",
		}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveSignUp counts a sign-up attempt.
func (m *AuthMetrics) ObserveSignUp(result string) {
	m.signUps.WithLabelValues(result).Inc()
}

// ObserveSignIn counts a sign-in attempt.
func (m *AuthMetrics) ObserveSignIn(result string) {
	m.signIns.WithLabelValues(result).Inc()
}

// ObserveSessionsSwept adds n removed sessions.
func (m *AuthMetrics) ObserveSessionsSwept(n int64) {
	if n > 0 {
		m.sessionsSwept.Add(float64(n))
	}
}

// ObserveRequest records the latency of one HTTP request.
func (m *AuthMetrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *AuthMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
