package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/beacon-analytics/beacon/pkg/observability"
)

// ErrNotConnected is returned when the store gave up connecting or was
// never connected. Callers treat it as degraded mode, not a failure.
var ErrNotConnected = errors.New("store: redis not connected")

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int

	// MaxRetries bounds connect-time retries after the initial attempt.
	// Once exhausted the manager gives up for the process lifetime and
	// the service runs with persistence disabled.
	MaxRetries int
	RetryDelay time.Duration

	// PingInterval drives the background connectivity monitor started
	// after a successful connect.
	PingInterval time.Duration
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = 10 * time.Second
	}
	return opts
}

// Manager owns the single Redis connection shared by ingestion and
// reporting. It is constructed once at startup and injected into both,
// so tests can point it at a miniredis instance.
type Manager struct {
	opts   Options
	logger *observability.Logger

	mu        sync.Mutex
	client    *redis.Client
	gaveUp    bool
	connected atomic.Bool

	monitorStop chan struct{}
	monitorDone chan struct{}
}

// NewManager creates a manager; no connection is attempted until Connect.
func NewManager(opts Options, logger *observability.Logger) *Manager {
	return &Manager{
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Connect establishes the Redis connection. Idempotent: if already
// connected it returns immediately without dialing again. The retry
// policy is fixed-delay and bounded; once exhausted, subsequent calls
// return ErrNotConnected without retrying, so a Redis outage at startup
// leaves the service in degraded mode rather than blocking it.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected.Load() {
		return nil
	}
	if m.gaveUp {
		return ErrNotConnected
	}

	client := redis.NewClient(&redis.Options{
		Addr:         m.opts.Addr,
		Password:     m.opts.Password,
		DB:           m.opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	attempts := m.opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			m.client = client
			m.connected.Store(true)
			m.startMonitor()
			m.logger.WithField("addr", m.opts.Addr).Info("Redis connection established")
			return nil
		}

		m.logger.WithError(err).Warnf("Redis connection attempt %d/%d failed", attempt, attempts)

		if attempt < attempts {
			select {
			case <-time.After(m.opts.RetryDelay):
			case <-ctx.Done():
				_ = client.Close()
				m.gaveUp = true
				return ErrNotConnected
			}
		}
	}

	_ = client.Close()
	m.gaveUp = true
	m.logger.Errorf("Redis connection failed after %d attempts, running without persistence", attempts)
	return ErrNotConnected
}

// IsConnected reports current connectivity. The background monitor flips
// this on asynchronous disconnects (Redis restarts) and back once the
// transport self-heals.
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

// Client returns the shared handle, or nil if never connected. Callers
// must check IsConnected before operations that should not silently fail.
func (m *Manager) Client() *redis.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// Ping round-trips the connection
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}
	return client.Ping(ctx).Err()
}

// Disconnect gracefully closes the connection. Idempotent.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	stop, done := m.monitorStop, m.monitorDone
	m.monitorStop, m.monitorDone = nil, nil
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	m.connected.Store(false)
	if client == nil {
		return nil
	}
	return client.Close()
}

// startMonitor launches the connectivity watcher. Caller holds m.mu.
func (m *Manager) startMonitor() {
	if m.monitorStop != nil {
		return
	}
	m.monitorStop = make(chan struct{})
	m.monitorDone = make(chan struct{})

	go m.monitor(m.monitorStop, m.monitorDone)
}

func (m *Manager) monitor(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer observability.RecoverPanic(m.logger, "redis connectivity monitor")

	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			client := m.client
			m.mu.Unlock()
			if client == nil {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := client.Ping(ctx).Err()
			cancel()

			was := m.connected.Load()
			now := err == nil
			if was != now {
				if now {
					m.logger.Info("Redis connection restored")
				} else {
					m.logger.WithError(err).Warn("Redis connection lost")
				}
				m.connected.Store(now)
			}
		}
	}
}
