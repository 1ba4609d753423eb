package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/beacon-analytics/beacon/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Service identity
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Server configuration
	Server ServerConfig

	// Redis configuration
	Redis RedisConfig

	// Analytics behavior
	Analytics AnalyticsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Ops server (separate port for probes and Prometheus scraping)
	OpsPort string

	// Allowed cross-origin caller for the portfolio frontend
	CORSOrigin string
}

// RedisConfig holds connection settings for the event store
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int

	// Connect-time retry policy: one initial attempt plus MaxRetries
	// more, RetryDelay apart, then the service runs without Redis.
	MaxRetries int
	RetryDelay time.Duration
}

// Addr returns the host:port dial address
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// AnalyticsConfig holds event retention and reporting behavior
type AnalyticsConfig struct {
	// ContentAPIURL is the upstream content backend the frontend pairs
	// this service with. Beacon only reports it in the service index.
	ContentAPIURL string

	// EventRetentionDays is the TTL applied to raw event records.
	EventRetentionDays int

	// RealtimeWindow bounds the "active sessions" calculation.
	RealtimeWindow time.Duration

	// CacheTTL caps how stale memoised keyspace aggregations may be.
	// Zero disables the cache.
	CacheTTL time.Duration

	// Rate limit for the ingestion routes, fixed window per client IP.
	RateLimitWindow   time.Duration
	RateLimitRequests int

	// RefreshSchedule drives the business-gauge refresher (cron spec).
	RefreshSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServiceName:    getEnv("BEACON_SERVICE_NAME", "beacon-analytics"),
		ServiceVersion: getEnv("BEACON_SERVICE_VERSION", "1.0.0"),
		Environment:    getEnv("BEACON_ENVIRONMENT", "development"),
		Server:         loadServerConfig(),
		Redis:          loadRedisConfig(),
		Analytics:      loadAnalyticsConfig(),
		Observability:  loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BEACON_HOST", "0.0.0.0"),
		Port:            getEnv("BEACON_PORT", "8002"),
		ReadTimeout:     getEnvDuration("BEACON_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BEACON_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("BEACON_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BEACON_SHUTDOWN_TIMEOUT", 30*time.Second),
		OpsPort:         getEnv("BEACON_OPS_PORT", "9090"),
		CORSOrigin:      getEnv("BEACON_CORS_ORIGIN", "*"),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:       getEnv("BEACON_REDIS_HOST", "localhost"),
		Port:       getEnv("BEACON_REDIS_PORT", "6379"),
		Password:   getEnv("BEACON_REDIS_PASSWORD", ""),
		DB:         getEnvInt("BEACON_REDIS_DB", 0),
		MaxRetries: getEnvInt("BEACON_REDIS_CONNECT_RETRIES", 3),
		RetryDelay: getEnvDuration("BEACON_REDIS_RETRY_DELAY", time.Second),
	}
}

func loadAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		ContentAPIURL:      getEnv("BEACON_CONTENT_API_URL", "http://localhost:8000"),
		EventRetentionDays: getEnvInt("BEACON_EVENT_RETENTION_DAYS", 30),
		RealtimeWindow:     time.Duration(getEnvInt("BEACON_METRICS_WINDOW_MINUTES", 60)) * time.Minute,
		CacheTTL:           getEnvDuration("BEACON_REPORT_CACHE_TTL", 5*time.Second),
		RateLimitWindow:    getEnvDuration("BEACON_RATE_LIMIT_WINDOW", time.Minute),
		RateLimitRequests:  getEnvInt("BEACON_RATE_LIMIT_REQUESTS", 600),
		RefreshSchedule:    getEnv("BEACON_REFRESH_SCHEDULE", "@every 1m"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("BEACON_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("BEACON_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("BEACON_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("BEACON_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("BEACON_OTEL_SERVICE_NAME", "beacon-analytics"),
		OTelServiceVersion: getEnv("BEACON_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("BEACON_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.OpsPort == "" {
		return fmt.Errorf("ops port is required")
	}
	if c.Server.Port == c.Server.OpsPort {
		return fmt.Errorf("server port and ops port must be different")
	}

	if c.Redis.Host == "" || c.Redis.Port == "" {
		return fmt.Errorf("redis host and port are required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis db index must be non-negative")
	}

	if c.Analytics.EventRetentionDays < 1 {
		return fmt.Errorf("event retention must be at least one day")
	}
	if c.Analytics.RealtimeWindow <= 0 {
		return fmt.Errorf("metrics window must be positive")
	}
	if c.Analytics.RateLimitRequests <= 0 {
		return fmt.Errorf("rate limit request budget must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// EventTTL returns the retention period as a duration
func (c *Config) EventTTL() time.Duration {
	return time.Duration(c.Analytics.EventRetentionDays) * 24 * time.Hour
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
