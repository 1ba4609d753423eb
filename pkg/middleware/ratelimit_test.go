package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-analytics/beacon/pkg/store"
)

func setupLimiter(t *testing.T, limit int, window time.Duration) (*RateLimiter, *store.Manager, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	mgr := store.NewManager(store.Options{
		Addr:       mr.Addr(),
		RetryDelay: time.Millisecond,
	}, testLogger())
	require.NoError(t, mgr.Connect(context.Background()))
	t.Cleanup(func() { _ = mgr.Disconnect() })

	return NewRateLimiter(mgr, testLogger(), limit, window), mgr, mr
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl, _, _ := setupLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, err := rl.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 3-i-1, remaining)
	}

	allowed, remaining, err := rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _, _ := setupLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, _, err := rl.Allow(ctx, "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = rl.Allow(ctx, "2.2.2.2")
	require.NoError(t, err)
	assert.True(t, allowed, "a second client must have its own window")
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl, _, mr := setupLimiter(t, 1, time.Second)
	ctx := context.Background()

	allowed, _, err := rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, allowed)

	mr.FastForward(2 * time.Second)

	allowed, _, err = rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_FailsOpenWhenDisconnected(t *testing.T) {
	rl, mgr, _ := setupLimiter(t, 1, time.Minute)
	require.NoError(t, mgr.Disconnect())

	handler := rl.Handler(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterHandler_Returns429WithHeaders(t *testing.T) {
	rl, _, _ := setupLimiter(t, 1, time.Minute)
	handler := rl.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}
