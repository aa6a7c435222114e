package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
// Recording methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec

	// Session metrics
	SessionEventsTotal  *prometheus.CounterVec
	TokenRefreshesTotal *prometheus.CounterVec

	// Backend API metrics
	BackendRequestsTotal   *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutoria_http_requests_total",
				Help: "Total number of dashboard HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutoria_http_request_duration_seconds",
				Help:    "Dashboard HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutoria_authz_decisions_total",
				Help: "Authorization decisions by mechanism and result",
			},
			[]string{"mechanism", "result"},
		),

		SessionEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutoria_session_events_total",
				Help: "Session lifecycle events",
			},
			[]string{"event"},
		),
		TokenRefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutoria_token_refreshes_total",
				Help: "Access token refresh attempts by result",
			},
			[]string{"result"},
		),

		BackendRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutoria_backend_requests_total",
				Help: "Requests sent to the backend APIs",
			},
			[]string{"api", "method", "status"},
		),
		BackendRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutoria_backend_request_duration_seconds",
				Help:    "Backend API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api", "method"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.SessionEventsTotal,
		m.TokenRefreshesTotal,
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAuthzDecision counts an allow/deny decision of mechanism
// ("permission", "page", "role", "guard")
func (m *Metrics) RecordAuthzDecision(mechanism string, allowed bool) {
	if m == nil {
		return
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(mechanism, result).Inc()
}

// RecordSessionEvent counts a session event (login, logout, restore, expired)
func (m *Metrics) RecordSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEventsTotal.WithLabelValues(event).Inc()
}

// RecordTokenRefresh counts a refresh attempt by result
func (m *Metrics) RecordTokenRefresh(result string) {
	if m == nil {
		return
	}
	m.TokenRefreshesTotal.WithLabelValues(result).Inc()
}

// RecordBackendRequest records one backend API round trip.
// status is 0 when no response was received.
func (m *Metrics) RecordBackendRequest(api, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	m.BackendRequestsTotal.WithLabelValues(api, method, statusLabel).Inc()
	m.BackendRequestDuration.WithLabelValues(api, method).Observe(duration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// routeFn maps a request to a low-cardinality route label.
func HTTPMetricsMiddleware(metrics *Metrics, routeFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if routeFn != nil {
				route = routeFn(r)
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
