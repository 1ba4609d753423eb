package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// StorePinger reports connectivity of the event store. Implemented by
// store.Manager; kept as an interface here so health checks do not pull
// in the Redis client and tests can use fakes.
type StorePinger interface {
	IsConnected() bool
	Ping(ctx context.Context) error
}

// ClientCounter reports the number of live realtime clients.
// Implemented by realtime.Hub.
type ClientCounter interface {
	ClientCount() int
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	store   StorePinger
	clients ClientCounter
	version string
	started time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(store StorePinger, clients ClientCounter, version string) *HealthChecker {
	return &HealthChecker{
		store:   store,
		clients: clients,
		version: version,
		started: time.Now(),
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status        string                      `json:"status"`
	Timestamp     time.Time                   `json:"timestamp"`
	Version       string                      `json:"version,omitempty"`
	UptimeSeconds float64                     `json:"uptime"`
	Dependencies  map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness returns a simple liveness probe (always 200 if the server runs)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness returns a readiness probe checking all dependencies.
// Redis being down only degrades the service: ingestion and reports
// intentionally keep serving without the store.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")

	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(status)
}

// Check performs a comprehensive health check
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:        StatusHealthy,
		Timestamp:     time.Now(),
		Version:       h.version,
		UptimeSeconds: time.Since(h.started).Seconds(),
		Dependencies:  make(map[string]DependencyStatus),
	}

	if h.store != nil {
		redisStatus := h.checkStore(ctx)
		status.Dependencies["redis"] = redisStatus
		if redisStatus.Status != StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	if h.clients != nil {
		status.Dependencies["websocket"] = DependencyStatus{
			Status:    StatusHealthy,
			Timestamp: time.Now(),
		}
	}

	return status
}

// checkStore checks Redis connectivity and round-trip latency
func (h *HealthChecker) checkStore(ctx context.Context) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	if !h.store.IsConnected() {
		status.Status = StatusUnhealthy
		status.Message = "disconnected"
		return status
	}

	err := h.store.Ping(ctx)
	status.Latency = time.Since(start)

	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}

	return status
}

// RegisterHealthRoutes registers the probe endpoints on the ops mux
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
