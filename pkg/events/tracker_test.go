package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-analytics/beacon/pkg/observability"
	"github.com/beacon-analytics/beacon/pkg/store"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// setupTracker returns a tracker backed by a live miniredis
func setupTracker(t *testing.T) (*Tracker, *store.Manager, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	mgr := store.NewManager(store.Options{
		Addr:       mr.Addr(),
		RetryDelay: time.Millisecond,
	}, testLogger())
	require.NoError(t, mgr.Connect(context.Background()))
	t.Cleanup(func() { _ = mgr.Disconnect() })

	return NewTracker(mgr, testLogger(), nil, 30*24*time.Hour), mgr, mr
}

func TestTrackPageview_WritesAllKeys(t *testing.T) {
	tracker, mgr, mr := setupTracker(t)
	ctx := context.Background()

	ev := &Pageview{Page: "/home"}
	ev.Normalize()

	status := tracker.TrackPageview(ctx, ev)
	assert.Equal(t, WriteStored, status)

	client := mgr.Client()

	// Counter incremented
	count, err := client.Get(ctx, "counter:pageview:/home").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Raw event stored with a TTL
	keys, err := client.Keys(ctx, "event:pageview:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Greater(t, mr.TTL(keys[0]), time.Duration(0), "raw event must expire")

	// Ring contains the serialized event
	entries, err := client.LRange(ctx, KeyRecentPageviews, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var stored Pageview
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &stored))
	assert.Equal(t, "/home", stored.Page)
	assert.Equal(t, "anonymous", stored.UserID)
}

func TestTrackPageview_CounterIsMonotonic(t *testing.T) {
	tracker, mgr, _ := setupTracker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ev := &Pageview{Page: "/projects"}
		ev.Normalize()
		require.Equal(t, WriteStored, tracker.TrackPageview(ctx, ev))
	}

	count, err := mgr.Client().Get(ctx, "counter:pageview:/projects").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestTrackPageview_RingCappedAt100(t *testing.T) {
	tracker, mgr, _ := setupTracker(t)
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		ev := &Pageview{Page: fmt.Sprintf("/page-%d", i)}
		ev.Normalize()
		require.Equal(t, WriteStored, tracker.TrackPageview(ctx, ev))
	}

	client := mgr.Client()
	length, err := client.LLen(ctx, KeyRecentPageviews).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(RecentRingSize), length)

	// Newest first: head of the list is the last pageview
	head, err := client.LIndex(ctx, KeyRecentPageviews, 0).Result()
	require.NoError(t, err)
	var newest Pageview
	require.NoError(t, json.Unmarshal([]byte(head), &newest))
	assert.Equal(t, "/page-149", newest.Page)

	// Oldest surviving entry is number 50
	tail, err := client.LIndex(ctx, KeyRecentPageviews, -1).Result()
	require.NoError(t, err)
	var oldest Pageview
	require.NoError(t, json.Unmarshal([]byte(tail), &oldest))
	assert.Equal(t, "/page-50", oldest.Page)
}

func TestTrackClick_NoRingWrite(t *testing.T) {
	tracker, mgr, _ := setupTracker(t)
	ctx := context.Background()

	ev := &Click{Element: "nav-home"}
	ev.Normalize()
	assert.Equal(t, "unknown", ev.Page)

	require.Equal(t, WriteStored, tracker.TrackClick(ctx, ev))

	client := mgr.Client()
	count, err := client.Get(ctx, "counter:click:nav-home").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Only pageviews participate in the recent ring
	length, err := client.LLen(ctx, KeyRecentPageviews).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)
}

func TestTrackSearch_QueriesAreByteExact(t *testing.T) {
	tracker, mgr, _ := setupTracker(t)
	ctx := context.Background()

	for _, query := range []string{"golang", "golang", "golang "} {
		ev := &Search{Query: query}
		ev.Normalize()
		require.Equal(t, WriteStored, tracker.TrackSearch(ctx, ev))
	}

	client := mgr.Client()

	score, err := client.ZScore(ctx, KeyPopularSearches, "golang").Result()
	require.NoError(t, err)
	assert.Equal(t, float64(2), score)

	// Trailing whitespace is a distinct entry, never merged
	scoreSpaced, err := client.ZScore(ctx, KeyPopularSearches, "golang ").Result()
	require.NoError(t, err)
	assert.Equal(t, float64(1), scoreSpaced)
}

func TestTrackCustom_CountsByEventName(t *testing.T) {
	tracker, mgr, _ := setupTracker(t)
	ctx := context.Background()

	ev := &Custom{EventName: "resume-download"}
	ev.Normalize()
	assert.NotNil(t, ev.Data, "data must default to an empty map")

	require.Equal(t, WriteStored, tracker.TrackCustom(ctx, ev))

	count, err := mgr.Client().Get(ctx, "counter:custom:resume-download").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTrack_Disconnected_DropsWrite(t *testing.T) {
	mgr := store.NewManager(store.Options{
		Addr:       "localhost:1",
		MaxRetries: 0,
		RetryDelay: time.Millisecond,
	}, testLogger())
	// Never connected: bounded failed attempts, then permanent give-up
	_ = mgr.Connect(context.Background())

	tracker := NewTracker(mgr, testLogger(), nil, time.Hour)

	ev := &Pageview{Page: "/home"}
	ev.Normalize()

	status := tracker.TrackPageview(context.Background(), ev)
	assert.Equal(t, WriteUnavailable, status, "write must be dropped, not queued")
}

func TestWriteStatus_String(t *testing.T) {
	assert.Equal(t, "stored", WriteStored.String())
	assert.Equal(t, "unavailable", WriteUnavailable.String())
	assert.Equal(t, "failed", WriteFailed.String())
}
