// Package metrics holds the Prometheus collectors for the API and the
// scheduler. Each Metrics owns its registry so tests can build as many as
// they like.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Delivery metrics
	EmailsDispatched *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  prometheus.Histogram
	ProviderRetries  prometheus.Counter
	LogWriteFailures prometheus.Counter

	// Guard metrics
	RateLimited *prometheus.CounterVec

	// Scheduler metrics
	JobsProcessed *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered on a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		EmailsDispatched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emails_dispatched_total",
				Help: "Recipients handed to the provider, by action and outcome",
			},
			[]string{"action", "status"}, // send_email|send_campaign, success|error
		),
		ProviderRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_requests_total",
				Help: "SendGrid API calls by HTTP status",
			},
			[]string{"status"},
		),
		ProviderLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "SendGrid API call latency including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ProviderRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "SendGrid API calls retried after a transient failure",
		}),
		LogWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "delivery_log_write_failures_total",
			Help: "Delivery log entries that could not be persisted",
		}),
		RateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Requests rejected by a rate limit or quota",
			},
			[]string{"rule"},
		),
		JobsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_jobs_total",
				Help: "Scheduled campaign jobs processed, by result",
			},
			[]string{"result"}, // done, rescheduled, retry, failed
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency labelled by chi route
// pattern, so /api/contacts/{id} is one series rather than one per id.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RecordDispatch counts n recipients for action with the given outcome.
func (m *Metrics) RecordDispatch(action, status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EmailsDispatched.WithLabelValues(action, status).Add(float64(n))
}

// RecordProviderCall records one SendGrid call. status is zero for
// transport failures.
func (m *Metrics) RecordProviderCall(status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.ProviderRequests.WithLabelValues(label).Inc()
	m.ProviderLatency.Observe(d.Seconds())
}

// RecordProviderRetry increments the retry counter.
func (m *Metrics) RecordProviderRetry() {
	if m == nil {
		return
	}
	m.ProviderRetries.Inc()
}

// RecordLogFailure increments the delivery log failure counter.
func (m *Metrics) RecordLogFailure() {
	if m == nil {
		return
	}
	m.LogWriteFailures.Inc()
}

// RecordRateLimited counts a rejection by rule name.
func (m *Metrics) RecordRateLimited(rule string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(rule).Inc()
}

// RecordJob counts a processed scheduler job.
func (m *Metrics) RecordJob(result string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(result).Inc()
}
