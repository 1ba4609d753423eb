// Package config loads Beacon's configuration from environment variables.
//
// Every setting has a sensible default so the service can start with no
// environment at all: it listens on :8002, expects Redis on localhost:6379,
// retains raw events for 30 days, and scopes the realtime view to the last
// 60 minutes.
//
// # Environment Variables
//
// Service identity:
//
//	BEACON_SERVICE_NAME     - service name reported by /health (default: beacon-analytics)
//	BEACON_SERVICE_VERSION  - version string (default: 1.0.0)
//	BEACON_ENVIRONMENT      - deployment environment label (default: development)
//
// Server:
//
//	BEACON_HOST             - bind address (default: 0.0.0.0)
//	BEACON_PORT             - API port (default: 8002)
//	BEACON_OPS_PORT         - probes + Prometheus port (default: 9090)
//	BEACON_CORS_ORIGIN      - allowed cross-origin caller (default: *)
//
// Redis:
//
//	BEACON_REDIS_HOST, BEACON_REDIS_PORT, BEACON_REDIS_PASSWORD, BEACON_REDIS_DB
//	BEACON_REDIS_CONNECT_RETRIES - bounded startup retries (default: 3)
//
// Analytics:
//
//	BEACON_EVENT_RETENTION_DAYS   - raw event TTL (default: 30)
//	BEACON_METRICS_WINDOW_MINUTES - realtime window (default: 60)
//	BEACON_REPORT_CACHE_TTL       - keyspace-scan memoisation (default: 5s, 0 disables)
//	BEACON_REFRESH_SCHEDULE       - gauge refresher cron spec (default: @every 1m)
package config
