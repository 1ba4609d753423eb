package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/beacon-analytics/beacon/pkg/httputil"
	"github.com/beacon-analytics/beacon/pkg/observability"
	"github.com/beacon-analytics/beacon/pkg/store"
)

// RateLimiter is a Redis-backed fixed-window limiter keyed by client
// IP, so the limit holds across instances sharing the store. It fails
// open: when Redis is unavailable requests pass unchecked, the same
// availability-over-protection tradeoff the ingestion path makes.
type RateLimiter struct {
	store    *store.Manager
	logger   *observability.Logger
	limit    int
	window   time.Duration
	keySpace string
}

// NewRateLimiter builds a limiter allowing limit requests per window
func NewRateLimiter(mgr *store.Manager, logger *observability.Logger, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}

	return &RateLimiter{
		store:    mgr,
		logger:   logger,
		limit:    limit,
		window:   window,
		keySpace: "ratelimit:ip:",
	}
}

// Allow reports whether the caller identified by key is under the
// limit, along with how many requests remain in the window.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (allowed bool, remaining int, err error) {
	if !rl.store.IsConnected() {
		return true, rl.limit, store.ErrNotConnected
	}

	redisKey := rl.keySpace + key

	pipe := rl.store.Client().TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, rl.limit, err
	}

	count := int(incr.Val())
	remaining = rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.limit, remaining, nil
}

// Handler wraps next with the rate limit check
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, err := rl.Allow(r.Context(), ClientIP(r))
		if err != nil {
			// Fail open while the store is unavailable
			rl.logger.WithError(err).Debug("Rate limit check unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.window.Seconds()))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
