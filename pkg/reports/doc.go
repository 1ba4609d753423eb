// Package reports implements the read side of the analytics service:
// aggregate views computed from the Redis keyspace the tracker writes
// (popular pages, popular searches, recent pageviews, cumulative
// summary, realtime activity) plus the scheduled refresher that feeds
// Prometheus gauges and the websocket stats broadcast.
//
// All views degrade gracefully: when Redis is unavailable they return
// zeroed payloads with an explanatory message instead of failing, so
// dashboards keep rendering.
package reports
