// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing and health probes for the dashboard.
//
// Logging is JSON on log/slog. Request-scoped loggers pick up the request id
// and the signed-in principal (user id, access role) placed in the context
// by the HTTP middleware:
//
//	observability.FromContext(r.Context()).WithError(err).Warn("course list failed")
//
// Metrics live in a caller-owned registry so tests can create isolated
// instances:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	router.Handle("/metrics", metrics.Handler())
//
// Recording helpers (RecordAuthzDecision, RecordTokenRefresh, ...) accept a
// nil receiver, which lets library packages take an optional *Metrics.
//
// InitTracing exports spans over OTLP gRPC when an endpoint is configured.
// Entries logged under a recording span carry trace_id and span_id.
package observability
