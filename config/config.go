// Package config provides configuration management for convmem.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for convmem.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Memory is the conversational memory configuration.
	Memory MemoryConfig `mapstructure:"memory"`

	// Events is the lifecycle event bus configuration.
	Events EventsConfig `mapstructure:"events"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`

	// NodeID identifies this instance in published events.
	NodeID string `mapstructure:"node_id" validate:"required"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`

	// RateLimit is the per-user request rate limit.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RequestTimeout bounds handler execution.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enabled enables CORS support.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins is the list of allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is the list of allowed headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// ExposedHeaders is the list of headers exposed to the client.
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age of CORS preflight cache in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// RateLimitConfig holds per-user token bucket settings.
type RateLimitConfig struct {
	// Enabled turns on rate limiting.
	Enabled bool `mapstructure:"enabled"`

	// RequestsPerSecond is the sustained rate per user.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`

	// Burst is the bucket size per user.
	Burst int `mapstructure:"burst" validate:"gte=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Conversations configures the durable document store.
	Conversations DocumentStoreConfig `mapstructure:"conversations"`

	// Cache configures the key-value cache for profiles and settings.
	Cache CacheConfig `mapstructure:"cache"`
}

// DocumentStoreConfig selects the conversation history backend.
type DocumentStoreConfig struct {
	// Type is the backend (memory, sqlite, badger).
	Type string `mapstructure:"type" validate:"oneof=memory sqlite badger"`

	// Path is the SQLite file path.
	Path string `mapstructure:"path" validate:"required_if=Type sqlite"`

	// Badger is the BadgerDB configuration used when Type is badger.
	Badger BadgerConfig `mapstructure:"badger"`
}

// CacheConfig selects the key-value cache backend.
type CacheConfig struct {
	// Type is the backend (memory, badger, redis).
	Type string `mapstructure:"type" validate:"oneof=memory badger redis"`

	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`

	// Redis is the Redis configuration.
	Redis RedisConfig `mapstructure:"redis"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogFileSize is the maximum size of value log files in bytes.
	ValueLogFileSize int64 `mapstructure:"value_log_file_size"`

	// NumVersionsToKeep is the number of versions to keep per key.
	NumVersionsToKeep int `mapstructure:"num_versions_to_keep"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`

	// KeyPrefix namespaces every key written by this service.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MemoryConfig holds conversational memory settings.
type MemoryConfig struct {
	// EncryptionKey is the base64 32-byte key for the codec.
	EncryptionKey string `mapstructure:"encryption_key" validate:"required,enckey"`

	// AutosaveInterval is how often buffered sessions are flushed.
	AutosaveInterval time.Duration `mapstructure:"autosave_interval" validate:"gt=0"`

	// RecentWindow is how many recent conversations feed context reconstruction.
	RecentWindow int `mapstructure:"recent_window" validate:"min=1,max=200"`

	// RetentionSweepInterval enables the retention sweeper when positive.
	RetentionSweepInterval time.Duration `mapstructure:"retention_sweep_interval" validate:"gte=0"`

	// SealProfiles encrypts profile blobs before they reach the cache.
	SealProfiles bool `mapstructure:"seal_profiles"`

	// Defaults are the settings a user starts with.
	Defaults SettingsDefaults `mapstructure:"defaults"`
}

// SettingsDefaults mirrors the per-user memory settings.
type SettingsDefaults struct {
	Enabled              bool `mapstructure:"enabled"`
	RetentionDays        int  `mapstructure:"retention_days" validate:"gte=0"`
	EncryptSensitiveData bool `mapstructure:"encrypt_sensitive_data"`
	AllowAnalytics       bool `mapstructure:"allow_analytics"`
	AutoSessionSave      bool `mapstructure:"auto_session_save"`
}

// EventsConfig holds lifecycle event publishing settings.
type EventsConfig struct {
	// Enabled turns on lifecycle event publishing.
	Enabled bool `mapstructure:"enabled"`

	// Transport is the pub/sub backend (memory, redis).
	Transport string `mapstructure:"transport" validate:"oneof=memory redis"`

	// Redis is the Redis configuration used when Transport is redis.
	Redis RedisConfig `mapstructure:"redis"`

	// MaxRetries bounds publish retries before degraded mode.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`

	// StreamBuffer is the per-subscriber channel size for event streams.
	StreamBuffer int `mapstructure:"stream_buffer" validate:"gte=1"`

	// MaxStreamClients bounds concurrent websocket event streams.
	MaxStreamClients int `mapstructure:"max_stream_clients" validate:"gte=1"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the span exporter (otlp).
	Exporter string `mapstructure:"exporter" validate:"oneof=otlp"`

	// Endpoint is the collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Headers are sent with every export request.
	Headers map[string]string `mapstructure:"headers"`

	// Timeout bounds each export.
	Timeout time.Duration `mapstructure:"timeout"`

	// Sampler is the sampling strategy (always_on, always_off, traceidratio, parentbased_traceidratio).
	Sampler string `mapstructure:"sampler" validate:"oneof=always_on always_off traceidratio parentbased_traceidratio"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Conversations: %s, Cache: %s}",
		c.App.Name, c.Server.Port, c.App.Environment, c.Storage.Conversations.Type, c.Storage.Cache.Type)
}
