package reports

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/beacon-analytics/beacon/pkg/events"
	"github.com/beacon-analytics/beacon/pkg/observability"
	"github.com/beacon-analytics/beacon/pkg/store"
)

// msgStoreDown is the explanatory message degraded-mode payloads carry
// so dashboards can render "no data yet" instead of an error state.
const msgStoreDown = "redis not connected"

// PageCount is one entry of the popular-pages view
type PageCount struct {
	Page  string `json:"page"`
	Views int64  `json:"views"`
}

// SearchCount is one entry of the popular-searches view
type SearchCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// PopularPages is the response of GET /metrics/popular
type PopularPages struct {
	Popular []PageCount `json:"popular"`
	Message string      `json:"message,omitempty"`
}

// PopularSearches is the response of GET /metrics/searches
type PopularSearches struct {
	Searches []SearchCount `json:"searches"`
	Message  string        `json:"message,omitempty"`
}

// RecentPageviews is the response of GET /metrics/recent
type RecentPageviews struct {
	Recent  []events.Pageview `json:"recent"`
	Message string            `json:"message,omitempty"`
}

// Summary is the response of GET /metrics/summary. Totals are sums over
// counter values; the unique counts are numbers of distinct counter
// keys, not event totals.
type Summary struct {
	TotalPageviews      int64  `json:"totalPageviews"`
	TotalClicks         int64  `json:"totalClicks"`
	TotalSearches       int64  `json:"totalSearches"`
	UniquePages         int    `json:"uniquePages"`
	UniqueElements      int    `json:"uniqueElements"`
	UniqueSearchQueries int    `json:"uniqueSearchQueries"`
	Message             string `json:"message,omitempty"`
}

// Realtime is the response of GET /metrics/realtime. Both figures are
// bounded by the ring capacity: with more than 100 pageviews in the
// window the counts undercount, a documented approximation.
type Realtime struct {
	Active         int    `json:"active"`
	EventsLastHour int    `json:"eventsLastHour"`
	Message        string `json:"message,omitempty"`
}

// Service provides the read-only aggregation views over the data the
// tracker writes. All methods are side-effect free and safe to call
// concurrently.
type Service struct {
	store   *store.Manager
	logger  *observability.Logger
	metrics *observability.Metrics
	window  time.Duration

	// cache memoises the keyspace-scanning aggregations (popular
	// pages, summary) for a few seconds; nil when disabled
	cache *expirable.LRU[string, interface{}]
}

const (
	cacheKeyPopularPages = "popular_pages"
	cacheKeySummary      = "summary"
)

// NewService creates the aggregation service. metrics may be nil;
// cacheTTL zero disables memoisation.
func NewService(mgr *store.Manager, logger *observability.Logger, metrics *observability.Metrics, window, cacheTTL time.Duration) *Service {
	if window == 0 {
		window = time.Hour
	}

	var cache *expirable.LRU[string, interface{}]
	if cacheTTL > 0 {
		cache = expirable.NewLRU[string, interface{}](16, nil, cacheTTL)
	}

	return &Service{
		store:   mgr,
		logger:  logger,
		metrics: metrics,
		window:  window,
		cache:   cache,
	}
}

// PopularPages returns the top pages by cumulative views
func (s *Service) PopularPages(ctx context.Context, limit int) (PopularPages, error) {
	if limit <= 0 {
		limit = 10
	}
	if !s.store.IsConnected() {
		return PopularPages{Popular: []PageCount{}, Message: msgStoreDown}, nil
	}

	pages, err := s.pageCounts(ctx)
	if err != nil {
		return PopularPages{}, err
	}

	if limit > len(pages) {
		limit = len(pages)
	}
	return PopularPages{Popular: pages[:limit]}, nil
}

// pageCounts enumerates all pageview counters sorted by views descending.
// The full sorted list is memoised; per-request limits slice into it.
func (s *Service) pageCounts(ctx context.Context) ([]PageCount, error) {
	if cached, ok := s.cacheGet(cacheKeyPopularPages); ok {
		return cached.([]PageCount), nil
	}

	client := s.store.Client()
	prefix := events.CounterKeyPrefix(events.TypePageview)

	pages := []PageCount{}
	start := time.Now()
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		count, err := client.Get(ctx, key).Int64()
		if err != nil && err != redis.Nil {
			s.observe("scan", start, err)
			return nil, err
		}
		pages = append(pages, PageCount{Page: key[len(prefix):], Views: count})
	}
	if err := iter.Err(); err != nil {
		s.observe("scan", start, err)
		return nil, err
	}
	s.observe("scan", start, nil)

	// Stable sort keeps ties in enumeration order; callers must not
	// rely on any particular tie-break.
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Views > pages[j].Views
	})

	s.cacheSet(cacheKeyPopularPages, pages)
	return pages, nil
}

// PopularSearches returns the top queries from the sorted-set ranking
func (s *Service) PopularSearches(ctx context.Context, limit int) (PopularSearches, error) {
	if limit <= 0 {
		limit = 10
	}
	if !s.store.IsConnected() {
		return PopularSearches{Searches: []SearchCount{}, Message: msgStoreDown}, nil
	}

	client := s.store.Client()

	start := time.Now()
	entries, err := client.ZRevRangeWithScores(ctx, events.KeyPopularSearches, 0, int64(limit-1)).Result()
	s.observe("zrevrange", start, err)
	if err != nil {
		return PopularSearches{}, err
	}

	searches := make([]SearchCount, 0, len(entries))
	for _, entry := range entries {
		query, _ := entry.Member.(string)
		searches = append(searches, SearchCount{Query: query, Count: int64(entry.Score)})
	}

	return PopularSearches{Searches: searches}, nil
}

// RecentPageviews returns the newest entries of the recent ring
func (s *Service) RecentPageviews(ctx context.Context, limit int) (RecentPageviews, error) {
	if limit <= 0 {
		limit = 20
	}
	if !s.store.IsConnected() {
		return RecentPageviews{Recent: []events.Pageview{}, Message: msgStoreDown}, nil
	}

	entries, err := s.ringEntries(ctx, limit)
	if err != nil {
		return RecentPageviews{}, err
	}
	return RecentPageviews{Recent: entries}, nil
}

// ringEntries reads and deserializes up to limit ring entries,
// skipping any that fail to parse
func (s *Service) ringEntries(ctx context.Context, limit int) ([]events.Pageview, error) {
	client := s.store.Client()

	start := time.Now()
	raw, err := client.LRange(ctx, events.KeyRecentPageviews, 0, int64(limit-1)).Result()
	s.observe("lrange", start, err)
	if err != nil {
		return nil, err
	}

	parsed := make([]events.Pageview, 0, len(raw))
	for _, entry := range raw {
		var ev events.Pageview
		if err := json.Unmarshal([]byte(entry), &ev); err != nil {
			s.logger.WithError(err).Warn("Skipping unparseable ring entry")
			continue
		}
		parsed = append(parsed, ev)
	}
	return parsed, nil
}

// Summary returns cumulative totals for all three counter families
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	if !s.store.IsConnected() {
		return Summary{Message: msgStoreDown}, nil
	}

	if cached, ok := s.cacheGet(cacheKeySummary); ok {
		return cached.(Summary), nil
	}

	pageviews, uniquePages, err := s.sumCounters(ctx, events.TypePageview)
	if err != nil {
		return Summary{}, err
	}
	clicks, uniqueElements, err := s.sumCounters(ctx, events.TypeClick)
	if err != nil {
		return Summary{}, err
	}
	searches, uniqueQueries, err := s.sumCounters(ctx, events.TypeSearch)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		TotalPageviews:      pageviews,
		TotalClicks:         clicks,
		TotalSearches:       searches,
		UniquePages:         uniquePages,
		UniqueElements:      uniqueElements,
		UniqueSearchQueries: uniqueQueries,
	}
	s.cacheSet(cacheKeySummary, summary)
	return summary, nil
}

// sumCounters totals one counter family and counts its distinct keys
func (s *Service) sumCounters(ctx context.Context, typ events.Type) (total int64, distinct int, err error) {
	client := s.store.Client()
	prefix := events.CounterKeyPrefix(typ)

	start := time.Now()
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count, getErr := client.Get(ctx, iter.Val()).Int64()
		if getErr != nil && getErr != redis.Nil {
			s.observe("scan", start, getErr)
			return 0, 0, getErr
		}
		total += count
		distinct++
	}
	if err := iter.Err(); err != nil {
		s.observe("scan", start, err)
		return 0, 0, err
	}
	s.observe("scan", start, nil)

	return total, distinct, nil
}

// Realtime estimates activity inside the configured window from the
// recent-pageviews ring
func (s *Service) Realtime(ctx context.Context) (Realtime, error) {
	if !s.store.IsConnected() {
		return Realtime{Message: msgStoreDown}, nil
	}

	entries, err := s.ringEntries(ctx, events.RecentRingSize)
	if err != nil {
		return Realtime{}, err
	}

	cutoff := time.Now().Add(-s.window)
	sessions := make(map[string]struct{})
	inWindow := 0

	for _, ev := range entries {
		ts, err := time.Parse(time.RFC3339, ev.Timestamp)
		if err != nil || !ts.After(cutoff) {
			continue
		}
		inWindow++
		if ev.SessionID != nil && *ev.SessionID != "" {
			sessions[*ev.SessionID] = struct{}{}
		}
	}

	return Realtime{
		Active:         len(sessions),
		EventsLastHour: inWindow,
	}, nil
}

func (s *Service) cacheGet(key string) (interface{}, bool) {
	if s.cache == nil {
		return nil, false
	}
	value, ok := s.cache.Get(key)
	if s.metrics != nil {
		if ok {
			s.metrics.ReportCacheHitsTotal.WithLabelValues(key).Inc()
		} else {
			s.metrics.ReportCacheMissesTotal.WithLabelValues(key).Inc()
		}
	}
	return value, ok
}

func (s *Service) cacheSet(key string, value interface{}) {
	if s.cache != nil {
		s.cache.Add(key, value)
	}
}

func (s *Service) observe(command string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.ObserveRedisCommand(command, start, err)
	}
}
