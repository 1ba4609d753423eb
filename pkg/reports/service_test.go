package reports

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-analytics/beacon/pkg/events"
	"github.com/beacon-analytics/beacon/pkg/observability"
	"github.com/beacon-analytics/beacon/pkg/store"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// setupService wires a connected store, a tracker for seeding data,
// and the service under test. Caching is disabled so assertions see
// every write immediately.
func setupService(t *testing.T) (*Service, *events.Tracker, *store.Manager) {
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

	tracker := events.NewTracker(mgr, testLogger(), nil, 30*24*time.Hour)
	svc := NewService(mgr, testLogger(), nil, time.Hour, 0)
	return svc, tracker, mgr
}

func trackPageview(t *testing.T, tracker *events.Tracker, page string) {
	t.Helper()
	ev := &events.Pageview{Page: page}
	ev.Normalize()
	require.Equal(t, events.WriteStored, tracker.TrackPageview(context.Background(), ev))
}

func trackSearch(t *testing.T, tracker *events.Tracker, query string) {
	t.Helper()
	ev := &events.Search{Query: query}
	ev.Normalize()
	require.Equal(t, events.WriteStored, tracker.TrackSearch(context.Background(), ev))
}

func TestPopularPages_SortedByViews(t *testing.T) {
	svc, tracker, _ := setupService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		trackPageview(t, tracker, "/projects")
	}
	trackPageview(t, tracker, "/about")
	trackPageview(t, tracker, "/home")
	trackPageview(t, tracker, "/home")

	result, err := svc.PopularPages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, result.Popular, 3)
	assert.Empty(t, result.Message)

	assert.Equal(t, PageCount{Page: "/projects", Views: 3}, result.Popular[0])
	assert.Equal(t, PageCount{Page: "/home", Views: 2}, result.Popular[1])
	assert.Equal(t, PageCount{Page: "/about", Views: 1}, result.Popular[2])
}

func TestPopularPages_LimitApplied(t *testing.T) {
	svc, tracker, _ := setupService(t)

	for i := 0; i < 5; i++ {
		trackPageview(t, tracker, fmt.Sprintf("/page-%d", i))
	}

	result, err := svc.PopularPages(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, result.Popular, 2)
}

func TestPopularSearches_RankedByScore(t *testing.T) {
	svc, tracker, _ := setupService(t)

	trackSearch(t, tracker, "golang")
	trackSearch(t, tracker, "golang")
	trackSearch(t, tracker, "redis")

	result, err := svc.PopularSearches(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, result.Searches, 2)
	assert.Equal(t, SearchCount{Query: "golang", Count: 2}, result.Searches[0])
	assert.Equal(t, SearchCount{Query: "redis", Count: 1}, result.Searches[1])
}

func TestRecentPageviews_NewestFirst(t *testing.T) {
	svc, tracker, _ := setupService(t)

	trackPageview(t, tracker, "/first")
	trackPageview(t, tracker, "/second")
	trackPageview(t, tracker, "/third")

	result, err := svc.RecentPageviews(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, result.Recent, 2)
	assert.Equal(t, "/third", result.Recent[0].Page)
	assert.Equal(t, "/second", result.Recent[1].Page)
}

func TestRecentPageviews_SkipsCorruptEntries(t *testing.T) {
	svc, tracker, mgr := setupService(t)
	ctx := context.Background()

	trackPageview(t, tracker, "/ok")
	require.NoError(t, mgr.Client().LPush(ctx, events.KeyRecentPageviews, "not json").Err())

	result, err := svc.RecentPageviews(ctx, 20)
	require.NoError(t, err)
	require.Len(t, result.Recent, 1)
	assert.Equal(t, "/ok", result.Recent[0].Page)
}

func TestSummary_TotalsAndDistincts(t *testing.T) {
	svc, tracker, _ := setupService(t)
	ctx := context.Background()

	trackPageview(t, tracker, "/home")
	trackPageview(t, tracker, "/home")
	trackPageview(t, tracker, "/about")

	click := &events.Click{Element: "nav-link"}
	click.Normalize()
	require.Equal(t, events.WriteStored, tracker.TrackClick(ctx, click))

	trackSearch(t, tracker, "golang")
	trackSearch(t, tracker, "redis")

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalPageviews)
	assert.Equal(t, int64(1), summary.TotalClicks)
	assert.Equal(t, int64(2), summary.TotalSearches)
	assert.Equal(t, 2, summary.UniquePages)
	assert.Equal(t, 1, summary.UniqueElements)
	assert.Equal(t, 2, summary.UniqueSearchQueries)
	assert.Empty(t, summary.Message)
}

func TestRealtime_DistinctSessionsInWindow(t *testing.T) {
	svc, tracker, _ := setupService(t)
	ctx := context.Background()

	sessionA := "session-a"
	sessionB := "session-b"

	for _, sid := range []*string{&sessionA, &sessionA, &sessionB, nil} {
		ev := &events.Pageview{Page: "/home"}
		ev.SessionID = sid
		ev.Normalize()
		require.Equal(t, events.WriteStored, tracker.TrackPageview(ctx, ev))
	}

	result, err := svc.Realtime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Active, "anonymous views must not count as sessions")
	assert.Equal(t, 4, result.EventsLastHour)
}

func TestRealtime_IgnoresEventsOutsideWindow(t *testing.T) {
	svc, tracker, _ := setupService(t)
	ctx := context.Background()

	session := "stale-session"
	stale := &events.Pageview{Page: "/old"}
	stale.SessionID = &session
	stale.Timestamp = time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)
	stale.Normalize()
	require.Equal(t, events.WriteStored, tracker.TrackPageview(ctx, stale))

	trackPageview(t, tracker, "/fresh")

	result, err := svc.Realtime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Active)
	assert.Equal(t, 1, result.EventsLastHour)
}

func TestViews_DegradedWhenDisconnected(t *testing.T) {
	svc, _, mgr := setupService(t)
	require.NoError(t, mgr.Disconnect())
	ctx := context.Background()

	popular, err := svc.PopularPages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, popular.Popular)
	assert.Equal(t, "redis not connected", popular.Message)

	searches, err := svc.PopularSearches(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, searches.Searches)
	assert.Equal(t, "redis not connected", searches.Message)

	recent, err := svc.RecentPageviews(ctx, 20)
	require.NoError(t, err)
	assert.Empty(t, recent.Recent)
	assert.Equal(t, "redis not connected", recent.Message)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Message: "redis not connected"}, summary)

	realtime, err := svc.Realtime(ctx)
	require.NoError(t, err)
	assert.Equal(t, Realtime{Message: "redis not connected"}, realtime)
}

func TestPopularPages_CacheServesStaleWithinTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	mgr := store.NewManager(store.Options{
		Addr:       mr.Addr(),
		RetryDelay: time.Millisecond,
	}, testLogger())
	require.NoError(t, mgr.Connect(context.Background()))
	t.Cleanup(func() { _ = mgr.Disconnect() })

	tracker := events.NewTracker(mgr, testLogger(), nil, 30*24*time.Hour)
	svc := NewService(mgr, testLogger(), nil, time.Hour, time.Minute)
	ctx := context.Background()

	trackPageview(t, tracker, "/home")

	first, err := svc.PopularPages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, first.Popular, 1)

	// A write after the scan is invisible until the cache expires
	trackPageview(t, tracker, "/about")

	second, err := svc.PopularPages(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, second.Popular, 1)
}
