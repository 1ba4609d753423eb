package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Redis metrics
	RedisCommandsTotal   *prometheus.CounterVec
	RedisCommandDuration *prometheus.HistogramVec

	// Event ingestion metrics
	EventsIngestedTotal *prometheus.CounterVec

	// Report cache metrics
	ReportCacheHitsTotal   *prometheus.CounterVec
	ReportCacheMissesTotal *prometheus.CounterVec

	// Realtime fan-out metrics
	WebsocketClients   prometheus.Gauge
	BroadcastsTotal    *prometheus.CounterVec
	BroadcastsDropped  prometheus.Counter

	// Business gauges, refreshed periodically from Redis
	PageviewsTotal      prometheus.Gauge
	ClicksTotal         prometheus.Gauge
	SearchesTotal       prometheus.Gauge
	UniquePagesTotal    prometheus.Gauge
	ActiveSessionsTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beacon_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		RedisCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_redis_commands_total",
				Help: "Total number of Redis commands issued",
			},
			[]string{"command", "status"},
		),
		RedisCommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beacon_redis_command_duration_seconds",
				Help:    "Redis command duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"command"},
		),

		EventsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_events_ingested_total",
				Help: "Total number of ingested analytics events",
			},
			[]string{"type", "write_status"},
		),

		ReportCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_report_cache_hits_total",
				Help: "Total number of report cache hits",
			},
			[]string{"report"},
		),
		ReportCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_report_cache_misses_total",
				Help: "Total number of report cache misses",
			},
			[]string{"report"},
		),

		WebsocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "beacon_websocket_clients",
				Help: "Number of connected websocket clients",
			},
		),
		BroadcastsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_broadcasts_total",
				Help: "Total number of realtime broadcasts",
			},
			[]string{"kind"},
		),
		BroadcastsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beacon_broadcasts_dropped_total",
				Help: "Broadcast messages dropped due to slow clients",
			},
		),

		PageviewsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "beacon_pageviews_total",
				Help: "Cumulative pageviews recorded in Redis",
			},
		),
		ClicksTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "beacon_clicks_total",
				Help: "Cumulative clicks recorded in Redis",
			},
		),
		SearchesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "beacon_searches_total",
				Help: "Cumulative searches recorded in Redis",
			},
		),
		UniquePagesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "beacon_unique_pages",
				Help: "Distinct pages with at least one recorded view",
			},
		),
		ActiveSessionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "beacon_active_sessions",
				Help: "Distinct sessions seen inside the realtime window",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RedisCommandsTotal,
		m.RedisCommandDuration,
		m.EventsIngestedTotal,
		m.ReportCacheHitsTotal,
		m.ReportCacheMissesTotal,
		m.WebsocketClients,
		m.BroadcastsTotal,
		m.BroadcastsDropped,
		m.PageviewsTotal,
		m.ClicksTotal,
		m.SearchesTotal,
		m.UniquePagesTotal,
		m.ActiveSessionsTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus
// metrics. The raw path is a safe label here: no route carries path
// parameters, so cardinality stays bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// ObserveRedisCommand records the outcome and latency of a Redis command
func (m *Metrics) ObserveRedisCommand(command string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RedisCommandsTotal.WithLabelValues(command, status).Inc()
	m.RedisCommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}
