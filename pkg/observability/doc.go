// Package observability provides structured logging, Prometheus metrics,
// health checks, graceful shutdown, and optional OpenTelemetry export for
// the Beacon analytics service.
//
// # Logging
//
// Logger wraps log/slog with a JSON handler and chainable field helpers:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("page", "/home").Info("pageview recorded")
//
// Loggers and request IDs travel through context; handlers recover them
// with FromContext.
//
// # Metrics
//
// NewMetrics registers every Prometheus collector the service emits on a
// dedicated registry, served from the ops port. Business gauges (total
// pageviews, active sessions) are refreshed from Redis by pkg/reports.
//
// # Health
//
// HealthChecker exposes liveness and readiness probes. Redis being down
// degrades readiness rather than failing it: the service deliberately
// keeps serving with persistence disabled.
package observability
