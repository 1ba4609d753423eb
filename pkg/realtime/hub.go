package realtime

import (
	"sync"
	"time"

	"github.com/beacon-analytics/beacon/pkg/observability"
)

// Message is the envelope pushed to connected clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Hub fans analytics events out to connected websocket clients. It
// owns the client set; all membership changes flow through its run
// loop so no lock is needed around the map.
//
// Clients may subscribe to named channels and the hub records the
// membership, but Broadcast currently delivers every message to every
// client regardless of subscriptions. Filtering delivery by channel
// is a planned follow-up; the subscription bookkeeping is already in
// place for it.
type Hub struct {
	logger  *observability.Logger
	metrics *observability.Metrics

	register   chan *Client
	unregister chan *Client
	broadcast  chan Message

	clients map[*Client]struct{}

	// count mirrors len(clients) for callers outside the run loop
	count struct {
		sync.RWMutex
		n int
	}

	stop chan struct{}
	done chan struct{}
}

// NewHub creates a hub; call Run (usually in a goroutine) to start it.
// metrics may be nil.
func NewHub(logger *observability.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		logger:     logger,
		metrics:    metrics,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 64),
		clients:    make(map[*Client]struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run processes membership changes and broadcasts until Shutdown
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.setCount(len(h.clients))
			h.logger.WithField("clients", len(h.clients)).Debug("Websocket client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.setCount(len(h.clients))
				h.logger.WithField("clients", len(h.clients)).Debug("Websocket client disconnected")
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow consumer: drop it rather than stall the hub
					delete(h.clients, client)
					close(client.send)
					h.setCount(len(h.clients))
					if h.metrics != nil {
						h.metrics.BroadcastsDropped.Inc()
					}
					h.logger.Warn("Dropping slow websocket client")
				}
			}
			if h.metrics != nil {
				h.metrics.BroadcastsTotal.WithLabelValues(msg.Type).Inc()
			}

		case <-h.stop:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.setCount(0)
			return
		}
	}
}

// Broadcast queues a message for all connected clients. Non-blocking:
// if the hub's queue is full the message is dropped.
func (h *Hub) Broadcast(kind string, data interface{}) {
	msg := Message{
		Type:      kind,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	select {
	case h.broadcast <- msg:
	case <-h.stop:
	default:
		if h.metrics != nil {
			h.metrics.BroadcastsDropped.Inc()
		}
		h.logger.WithField("type", kind).Warn("Broadcast queue full, dropping message")
	}
}

// ClientCount reports the number of connected clients
func (h *Hub) ClientCount() int {
	h.count.RLock()
	defer h.count.RUnlock()
	return h.count.n
}

// Shutdown disconnects all clients and stops the run loop
func (h *Hub) Shutdown() {
	close(h.stop)
	<-h.done
}

func (h *Hub) setCount(n int) {
	h.count.Lock()
	h.count.n = n
	h.count.Unlock()

	if h.metrics != nil {
		h.metrics.WebsocketClients.Set(float64(n))
	}
}
