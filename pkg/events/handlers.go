package events

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/beacon-analytics/beacon/pkg/httputil"
	"github.com/beacon-analytics/beacon/pkg/observability"
)

// Broadcaster pushes a best-effort realtime notification. Implemented
// by realtime.Hub; nil disables fan-out. Delivery is decoupled from
// persistence: a notification can go out even when the store write was
// dropped, and vice versa.
type Broadcaster interface {
	Broadcast(kind string, data interface{})
}

// TrackResponse echoes the normalized event back to the caller
type TrackResponse struct {
	Success bool        `json:"success"`
	Event   interface{} `json:"event"`
}

// Handlers provides the event ingestion HTTP API
type Handlers struct {
	tracker *Tracker
	hub     Broadcaster
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewHandlers creates ingestion handlers. hub and metrics may be nil.
func NewHandlers(tracker *Tracker, hub Broadcaster, logger *observability.Logger, metrics *observability.Metrics) *Handlers {
	return &Handlers{
		tracker: tracker,
		hub:     hub,
		logger:  logger,
		metrics: metrics,
	}
}

// RegisterRoutes registers the ingestion routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/events/pageview", h.TrackPageview).Methods("POST")
	r.HandleFunc("/events/click", h.TrackClick).Methods("POST")
	r.HandleFunc("/events/search", h.TrackSearch).Methods("POST")
	r.HandleFunc("/events/custom", h.TrackCustom).Methods("POST")
}

// TrackPageview handles POST /events/pageview
func (h *Handlers) TrackPageview(w http.ResponseWriter, r *http.Request) {
	var ev Pageview
	if !httputil.ParseJSONOrError(w, r, &ev) {
		return
	}
	if ev.Page == "" {
		httputil.WriteValidationError(w, "page is required")
		return
	}

	ev.Normalize()
	status := h.tracker.TrackPageview(r.Context(), &ev)
	h.finish(w, r, TypePageview, status, ev)
}

// TrackClick handles POST /events/click
func (h *Handlers) TrackClick(w http.ResponseWriter, r *http.Request) {
	var ev Click
	if !httputil.ParseJSONOrError(w, r, &ev) {
		return
	}
	if ev.Element == "" {
		httputil.WriteValidationError(w, "element is required")
		return
	}

	ev.Normalize()
	status := h.tracker.TrackClick(r.Context(), &ev)
	h.finish(w, r, TypeClick, status, ev)
}

// TrackSearch handles POST /events/search
func (h *Handlers) TrackSearch(w http.ResponseWriter, r *http.Request) {
	var ev Search
	if !httputil.ParseJSONOrError(w, r, &ev) {
		return
	}
	if ev.Query == "" {
		httputil.WriteValidationError(w, "query is required")
		return
	}

	ev.Normalize()
	status := h.tracker.TrackSearch(r.Context(), &ev)
	h.finish(w, r, TypeSearch, status, ev)
}

// TrackCustom handles POST /events/custom
func (h *Handlers) TrackCustom(w http.ResponseWriter, r *http.Request) {
	var ev Custom
	if !httputil.ParseJSONOrError(w, r, &ev) {
		return
	}
	if ev.EventName == "" {
		httputil.WriteValidationError(w, "eventName is required")
		return
	}

	ev.Normalize()
	status := h.tracker.TrackCustom(r.Context(), &ev)
	h.finish(w, r, TypeCustom, status, ev)
}

// finish applies the always-succeed ingestion policy: the caller gets
// the normalized event back no matter what happened to the write.
func (h *Handlers) finish(w http.ResponseWriter, r *http.Request, typ Type, status WriteStatus, ev interface{}) {
	if h.metrics != nil {
		h.metrics.EventsIngestedTotal.WithLabelValues(string(typ), status.String()).Inc()
	}
	if status != WriteStored {
		observability.FromContext(r.Context()).
			WithField("type", string(typ)).
			WithField("write_status", status.String()).
			Debug("Event not persisted")
	}

	if h.hub != nil {
		h.hub.Broadcast(string(typ), ev)
	}

	httputil.WriteSuccess(w, TrackResponse{Success: true, Event: ev})
}
