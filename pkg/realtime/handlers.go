package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/beacon-analytics/beacon/pkg/observability"
)

// Handlers upgrades HTTP requests onto the hub
type Handlers struct {
	hub      *Hub
	logger   *observability.Logger
	upgrader websocket.Upgrader
}

// NewHandlers builds the websocket handlers. allowedOrigin "*" admits
// any origin; anything else must match the request's Origin header
// exactly (same-origin requests without the header always pass).
func NewHandlers(hub *Hub, logger *observability.Logger, allowedOrigin string) *Handlers {
	return &Handlers{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "*" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// RegisterRoutes mounts the websocket endpoint
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.ServeWS).Methods(http.MethodGet)
}

// ServeWS handles GET /ws: upgrade, attach to the hub, start pumps
func (h *Handlers) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	client := newClient(h.hub, conn)

	// Greeting for this client only, queued before the hub can touch
	// the channel
	client.send <- Message{
		Type:      "connected",
		Data:      map[string]string{"message": "realtime analytics stream connected"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.stop:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
