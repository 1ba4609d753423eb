package reports

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/beacon-analytics/beacon/pkg/httputil"
	"github.com/beacon-analytics/beacon/pkg/observability"
)

// Handlers exposes the aggregation views over HTTP
type Handlers struct {
	service *Service
	logger  *observability.Logger
}

func NewHandlers(service *Service, logger *observability.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes mounts the read-side routes on the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/metrics/popular", h.PopularPages).Methods(http.MethodGet)
	router.HandleFunc("/metrics/searches", h.PopularSearches).Methods(http.MethodGet)
	router.HandleFunc("/metrics/recent", h.RecentPageviews).Methods(http.MethodGet)
	router.HandleFunc("/metrics/summary", h.Summary).Methods(http.MethodGet)
	router.HandleFunc("/metrics/realtime", h.Realtime).Methods(http.MethodGet)
}

// PopularPages handles GET /metrics/popular?limit=N
func (h *Handlers) PopularPages(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseQueryInt(r, "limit", 10)

	result, err := h.service.PopularPages(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "popular pages", err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// PopularSearches handles GET /metrics/searches?limit=N
func (h *Handlers) PopularSearches(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseQueryInt(r, "limit", 10)

	result, err := h.service.PopularSearches(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "popular searches", err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// RecentPageviews handles GET /metrics/recent?limit=N
func (h *Handlers) RecentPageviews(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseQueryInt(r, "limit", 20)

	result, err := h.service.RecentPageviews(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "recent pageviews", err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// Summary handles GET /metrics/summary
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Summary(r.Context())
	if err != nil {
		h.fail(w, r, "summary", err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// Realtime handles GET /metrics/realtime
func (h *Handlers) Realtime(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Realtime(r.Context())
	if err != nil {
		h.fail(w, r, "realtime", err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, view string, err error) {
	observability.FromContext(r.Context()).WithError(err).WithField("view", view).Error("Failed to compute metrics view")
	httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to get "+view)
}
