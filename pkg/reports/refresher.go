package reports

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/beacon-analytics/beacon/pkg/observability"
)

// Broadcaster pushes server-initiated messages to connected websocket
// clients
type Broadcaster interface {
	Broadcast(kind string, data interface{})
}

// StatsSummary is the payload of the periodic stats-summary broadcast
type StatsSummary struct {
	Summary  Summary  `json:"summary"`
	Realtime Realtime `json:"realtime"`
}

// Refresher periodically recomputes the summary and realtime views,
// publishes them as Prometheus gauges, and broadcasts them to
// websocket subscribers.
type Refresher struct {
	service *Service
	hub     Broadcaster
	logger  *observability.Logger
	metrics *observability.Metrics
	cron    *cron.Cron
}

// NewRefresher builds a refresher running on the given cron schedule
// (for example "@every 1m"). The hub may be nil when realtime fan-out
// is not wired.
func NewRefresher(service *Service, hub Broadcaster, logger *observability.Logger, metrics *observability.Metrics, schedule string) (*Refresher, error) {
	r := &Refresher{
		service: service,
		hub:     hub,
		logger:  logger,
		metrics: metrics,
		cron:    cron.New(),
	}

	if _, err := r.cron.AddFunc(schedule, r.Refresh); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins scheduled execution. An initial refresh runs
// immediately so gauges are populated before the first tick.
func (r *Refresher) Start() {
	go r.Refresh()
	r.cron.Start()
}

// Stop halts the schedule and waits for an in-flight run, bounded by
// the context deadline.
func (r *Refresher) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh executes one recompute-and-publish cycle. Exported so tests
// and the startup path can run it outside the schedule.
func (r *Refresher) Refresh() {
	defer observability.RecoverPanic(r.logger, "stats refresher")

	if !r.service.store.IsConnected() {
		r.logger.Debug("Skipping stats refresh, store not connected")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary, err := r.service.Summary(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Stats refresh failed to compute summary")
		return
	}
	realtime, err := r.service.Realtime(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Stats refresh failed to compute realtime view")
		return
	}

	if r.metrics != nil {
		r.metrics.PageviewsTotal.Set(float64(summary.TotalPageviews))
		r.metrics.ClicksTotal.Set(float64(summary.TotalClicks))
		r.metrics.SearchesTotal.Set(float64(summary.TotalSearches))
		r.metrics.UniquePagesTotal.Set(float64(summary.UniquePages))
		r.metrics.ActiveSessionsTotal.Set(float64(realtime.Active))
	}

	if r.hub != nil {
		r.hub.Broadcast("stats-summary", StatsSummary{Summary: summary, Realtime: realtime})
	}
}
