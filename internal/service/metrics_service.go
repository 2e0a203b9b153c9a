package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and exposes recording methods
// for the HTTP middleware and the auth pipeline.
type MetricsService struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	authFailures    *prometheus.CounterVec
}

// NewMetricsService builds and registers the metric set.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP request count by route.",
	}, []string{"method", "path", "status"})

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_rate_limited_total",
		Help: "Requests rejected by the per-key rate limiter.",
	}, []string{"key_id"})

	authFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_auth_failures_total",
		Help: "Authentication failures by error code.",
	}, []string{"code"})

	registry.MustRegister(duration, total, rateLimited, authFailures)

	return &MetricsService{
		registry:        registry,
		requestDuration: duration,
		requestTotal:    total,
		rateLimited:     rateLimited,
		authFailures:    authFailures,
	}
}

// ObserveRequest records one completed HTTP request.
func (s *MetricsService) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(elapsed.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// AuthFailure counts a rejected authentication attempt by error code.
func (s *MetricsService) AuthFailure(code string) {
	s.authFailures.WithLabelValues(code).Inc()
}

// RateLimited counts a request rejected by the per-key limiter.
func (s *MetricsService) RateLimited(keyID int64) {
	s.rateLimited.WithLabelValues(strconv.FormatInt(keyID, 10)).Inc()
}

// Handler exposes the scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
