package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/beacon-analytics/beacon/pkg/config"
	"github.com/beacon-analytics/beacon/pkg/events"
	"github.com/beacon-analytics/beacon/pkg/httputil"
	"github.com/beacon-analytics/beacon/pkg/middleware"
	"github.com/beacon-analytics/beacon/pkg/observability"
	"github.com/beacon-analytics/beacon/pkg/realtime"
	"github.com/beacon-analytics/beacon/pkg/reports"
	"github.com/beacon-analytics/beacon/pkg/store"
)

// Server assembles the public API surface: event ingestion, metrics
// views, the websocket stream, and the service index/health routes.
type Server struct {
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
	store   *store.Manager
	hub     *realtime.Hub
	router  *mux.Router
	started time.Time
}

// NewServer wires handlers and middleware onto a router. accessLogger
// carries the per-request access log; metrics may be nil when the
// Prometheus surface is disabled.
func NewServer(cfg *config.Config, logger *observability.Logger, accessLogger *logrus.Logger, metrics *observability.Metrics, mgr *store.Manager, hub *realtime.Hub) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   mgr,
		hub:     hub,
		router:  mux.NewRouter(),
		started: time.Now(),
	}

	tracker := events.NewTracker(mgr, logger, metrics, cfg.EventTTL())
	service := reports.NewService(mgr, logger, metrics, cfg.Analytics.RealtimeWindow, cfg.Analytics.CacheTTL)

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.AccessLog(accessLogger))
	s.router.Use(middleware.Recovery(logger))
	s.router.Use(middleware.CORS(cfg.Server.CORSOrigin))
	if metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(metrics))
	}

	// One shared budget per client IP across all routes; the limiter
	// fails open when Redis is away, like ingestion itself
	limiter := middleware.NewRateLimiter(mgr, logger, cfg.Analytics.RateLimitRequests, cfg.Analytics.RateLimitWindow)
	s.router.Use(limiter.Handler)

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	events.NewHandlers(tracker, hub, logger, metrics).RegisterRoutes(s.router)

	reports.NewHandlers(service, logger).RegisterRoutes(s.router)
	realtime.NewHandlers(hub, logger, cfg.Server.CORSOrigin).RegisterRoutes(s.router)

	return s
}

// Router exposes the underlying router, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the complete handler, wrapped for tracing when
// OpenTelemetry is enabled.
func (s *Server) Handler() http.Handler {
	if s.cfg.Observability.OTelEnabled {
		return otelhttp.NewHandler(s.router, s.cfg.ServiceName)
	}
	return s.router
}

// index describes the service and its routes
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"service":     s.cfg.ServiceName,
		"version":     s.cfg.ServiceVersion,
		"environment": s.cfg.Environment,
		"contentApi":  s.cfg.Analytics.ContentAPIURL,
		"endpoints": map[string]string{
			"trackPageview":   "POST /events/pageview",
			"trackClick":      "POST /events/click",
			"trackSearch":     "POST /events/search",
			"trackCustom":     "POST /events/custom",
			"popularPages":    "GET /metrics/popular",
			"popularSearches": "GET /metrics/searches",
			"recentPageviews": "GET /metrics/recent",
			"summary":         "GET /metrics/summary",
			"realtime":        "GET /metrics/realtime",
			"stream":          "GET /ws",
		},
	})
}

// healthResponse is the full health payload on the public port. Redis
// being down degrades the service but does not fail it: ingestion
// still answers and reads return zeroed payloads.
type healthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	UptimeSec   int64  `json:"uptimeSeconds"`
	Checks      struct {
		Redis struct {
			Connected bool   `json:"connected"`
			Status    string `json:"status"`
		} `json:"redis"`
		Websocket struct {
			Clients int `json:"clients"`
		} `json:"websocket"`
	} `json:"checks"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Service:     s.cfg.ServiceName,
		Version:     s.cfg.ServiceVersion,
		Environment: s.cfg.Environment,
		UptimeSec:   int64(time.Since(s.started).Seconds()),
	}

	resp.Checks.Redis.Connected = s.store.IsConnected()
	if resp.Checks.Redis.Connected {
		resp.Checks.Redis.Status = "ok"
	} else {
		resp.Checks.Redis.Status = "unavailable"
		resp.Status = "degraded"
	}
	resp.Checks.Websocket.Clients = s.hub.ClientCount()

	httputil.WriteSuccess(w, resp)
}
