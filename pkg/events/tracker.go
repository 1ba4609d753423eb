package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beacon-analytics/beacon/pkg/observability"
	"github.com/beacon-analytics/beacon/pkg/store"
)

// WriteStatus is the explicit outcome of a persistence attempt. The
// ingestion handlers respond success regardless — surfacing the status
// as a value makes that an intentional policy at the call site instead
// of swallowed errors.
type WriteStatus int

const (
	// WriteStored means every Redis command succeeded
	WriteStored WriteStatus = iota
	// WriteUnavailable means the store is disconnected and the event
	// was dropped without any write attempt (not queued)
	WriteUnavailable
	// WriteFailed means at least one command errored mid-sequence.
	// Writes are independent best-effort operations, so counters and
	// the ring may be partially updated; accepted for analytics data.
	WriteFailed
)

func (s WriteStatus) String() string {
	switch s {
	case WriteStored:
		return "stored"
	case WriteUnavailable:
		return "unavailable"
	default:
		return "failed"
	}
}

// Tracker persists normalized events into Redis under the fixed key
// layout. All writes are fire-and-forget from the caller's perspective.
type Tracker struct {
	store   *store.Manager
	logger  *observability.Logger
	metrics *observability.Metrics
	ttl     time.Duration
}

// NewTracker creates a tracker. metrics may be nil in tests.
func NewTracker(mgr *store.Manager, logger *observability.Logger, metrics *observability.Metrics, ttl time.Duration) *Tracker {
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Tracker{
		store:   mgr,
		logger:  logger,
		metrics: metrics,
		ttl:     ttl,
	}
}

// eventKey generates a unique storage slot for a raw event. The key is
// never looked up again; epoch millis plus a random suffix only have to
// avoid collisions.
func eventKey(typ Type) string {
	return fmt.Sprintf("event:%s:%d:%s", typ, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// TrackPageview stores the raw event, bumps the page counter, and
// pushes onto the recent-pageviews ring (trimmed to its capacity; the
// push and trim are two commands, a documented benign race).
func (t *Tracker) TrackPageview(ctx context.Context, ev *Pageview) WriteStatus {
	if !t.store.IsConnected() {
		return WriteUnavailable
	}
	client := t.store.Client()

	payload, err := json.Marshal(ev)
	if err != nil {
		t.logger.WithError(err).Error("Failed to marshal pageview event")
		return WriteFailed
	}

	status := WriteStored
	if err := t.run(ctx, "setex", func() error {
		return client.SetEX(ctx, eventKey(TypePageview), payload, t.ttl).Err()
	}); err != nil {
		status = WriteFailed
	}
	if err := t.run(ctx, "incr", func() error {
		return client.Incr(ctx, CounterKeyPrefix(TypePageview)+ev.Page).Err()
	}); err != nil {
		status = WriteFailed
	}
	if err := t.run(ctx, "lpush", func() error {
		return client.LPush(ctx, KeyRecentPageviews, payload).Err()
	}); err != nil {
		status = WriteFailed
	}
	if err := t.run(ctx, "ltrim", func() error {
		return client.LTrim(ctx, KeyRecentPageviews, 0, RecentRingSize-1).Err()
	}); err != nil {
		status = WriteFailed
	}

	return status
}

// TrackClick stores the raw event and bumps the element counter
func (t *Tracker) TrackClick(ctx context.Context, ev *Click) WriteStatus {
	if !t.store.IsConnected() {
		return WriteUnavailable
	}
	client := t.store.Client()

	payload, err := json.Marshal(ev)
	if err != nil {
		t.logger.WithError(err).Error("Failed to marshal click event")
		return WriteFailed
	}

	status := WriteStored
	if err := t.run(ctx, "setex", func() error {
		return client.SetEX(ctx, eventKey(TypeClick), payload, t.ttl).Err()
	}); err != nil {
		status = WriteFailed
	}
	if err := t.run(ctx, "incr", func() error {
		return client.Incr(ctx, CounterKeyPrefix(TypeClick)+ev.Element).Err()
	}); err != nil {
		status = WriteFailed
	}

	return status
}

// TrackSearch stores the raw event, bumps the query counter, and
// increments the query's score in the popular-searches ranking. The
// query is used verbatim: case and whitespace variants rank separately.
func (t *Tracker) TrackSearch(ctx context.Context, ev *Search) WriteStatus {
	if !t.store.IsConnected() {
		return WriteUnavailable
	}
	client := t.store.Client()

	payload, err := json.Marshal(ev)
	if err != nil {
		t.logger.WithError(err).Error("Failed to marshal search event")
		return WriteFailed
	}

	status := WriteStored
	if err := t.run(ctx, "setex", func() error {
		return client.SetEX(ctx, eventKey(TypeSearch), payload, t.ttl).Err()
	}); err != nil {
		status = WriteFailed
	}
	if err := t.run(ctx, "incr", func() error {
		return client.Incr(ctx, CounterKeyPrefix(TypeSearch)+ev.Query).Err()
	}); err != nil {
		status = WriteFailed
	}
	if err := t.run(ctx, "zincrby", func() error {
		return client.ZIncrBy(ctx, KeyPopularSearches, 1, ev.Query).Err()
	}); err != nil {
		status = WriteFailed
	}

	return status
}

// TrackCustom stores the raw event and bumps the event-name counter
func (t *Tracker) TrackCustom(ctx context.Context, ev *Custom) WriteStatus {
	if !t.store.IsConnected() {
		return WriteUnavailable
	}
	client := t.store.Client()

	payload, err := json.Marshal(ev)
	if err != nil {
		t.logger.WithError(err).Error("Failed to marshal custom event")
		return WriteFailed
	}

	status := WriteStored
	if err := t.run(ctx, "setex", func() error {
		return client.SetEX(ctx, eventKey(TypeCustom), payload, t.ttl).Err()
	}); err != nil {
		status = WriteFailed
	}
	if err := t.run(ctx, "incr", func() error {
		return client.Incr(ctx, CounterKeyPrefix(TypeCustom)+ev.EventName).Err()
	}); err != nil {
		status = WriteFailed
	}

	return status
}

// run executes one Redis command, records its latency, and logs (never
// propagates) failures.
func (t *Tracker) run(ctx context.Context, command string, fn func() error) error {
	start := time.Now()
	err := fn()
	if t.metrics != nil {
		t.metrics.ObserveRedisCommand(command, start, err)
	}
	if err != nil {
		t.logger.WithError(err).WithField("command", command).Warn("Redis write failed, event data dropped")
	}
	return err
}
