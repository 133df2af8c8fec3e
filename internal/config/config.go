// Package config defines the configuration of the regionwatch service.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Secret indirection (Lowest)
//
// Any invalid value causes LoadConfig to fail, and the process exits before
// serving traffic.
package config

import (
	"time"

	"regionwatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the section they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"regionwatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Provider      ProviderConfig
	Sync          SyncConfig
	Cache         CacheConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// DatabaseConfig holds database connection and pool tuning parameters. An
// empty URL runs the service purely in memory.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"gte=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`     // Fail fast when pool exhausted
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"` // Detect dead connections during failover

	// PersistDebounce delays region/viewport write-back after a burst of edits.
	PersistDebounce time.Duration `envconfig:"PERSIST_DEBOUNCE" default:"500ms" validate:"gt=0"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool { return d.URL.IsSet() }

// ProviderConfig holds settings for the hourly time-series provider.
type ProviderConfig struct {
	BaseURL   string        `envconfig:"PROVIDER_BASE_URL" default:"https://api.open-meteo.com/v1/forecast" validate:"required,url"`
	Timeout   time.Duration `envconfig:"RESOLVER_TIMEOUT" default:"10s" validate:"gt=0"`
	UserAgent string        `envconfig:"PROVIDER_USER_AGENT"`
	Timezone  string        `envconfig:"PROVIDER_TIMEZONE" default:"auto"`

	MaxRetries     int           `envconfig:"PROVIDER_MAX_RETRIES" default:"2" validate:"gte=0,lte=5"`
	RetryBaseDelay time.Duration `envconfig:"PROVIDER_RETRY_BASE_DELAY" default:"250ms"`
	RetryMaxDelay  time.Duration `envconfig:"PROVIDER_RETRY_MAX_DELAY" default:"2s" validate:"gtefield=RetryBaseDelay"`
}

// SyncConfig holds the timing of the sync orchestrator and playback.
type SyncConfig struct {
	Debounce         time.Duration `envconfig:"SYNC_DEBOUNCE" default:"300ms" validate:"gt=0"`
	MaxWait          time.Duration `envconfig:"SYNC_MAX_WAIT" default:"1s" validate:"gtefield=Debounce"`
	RegionDelay      time.Duration `envconfig:"SYNC_REGION_DELAY" default:"100ms" validate:"gte=0"`
	PlaybackInterval time.Duration `envconfig:"PLAYBACK_INTERVAL" default:"100ms" validate:"gt=0"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig selects and tunes the series cache.
type CacheConfig struct {
	Backend       string       `envconfig:"CACHE_BACKEND" default:"memory" validate:"oneof=memory redis"`
	RedisAddr     string       `envconfig:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword SecretString `envconfig:"REDIS_PASSWORD"`
	RedisDB       int          `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
	RedisPrefix   string       `envconfig:"REDIS_PREFIX" default:"regionwatch:series:"`

	// SnapshotInterval is how often the cache is copied to the database.
	// Zero disables periodic snapshots; one is still taken at shutdown.
	SnapshotInterval time.Duration `envconfig:"CACHE_SNAPSHOT_INTERVAL" default:"5m" validate:"gte=0"`
}

// ObservabilityConfig holds metrics settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"RegionWatch"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a secret pointer named a variable that is not set.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
