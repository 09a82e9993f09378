package config

import "time"

// DefaultConfig returns a Config with sensible defaults. The encryption key
// has no default and must be supplied by file or environment.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "convmem",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
			NodeID:      "convmem-1",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 15 * time.Second,
				RequestTimeout:  20 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
				MaxAge:         300,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 5,
				Burst:             20,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Storage: StorageConfig{
			Conversations: DocumentStoreConfig{
				Type: "sqlite",
				Path: "./data/conversations.db",
				Badger: BadgerConfig{
					Path:              "./data/conversations",
					SyncWrites:        true,
					ValueLogFileSize:  1 << 28, // 256MB
					NumVersionsToKeep: 1,
				},
			},
			Cache: CacheConfig{
				Type: "badger",
				Badger: BadgerConfig{
					Path:              "./data/cache",
					SyncWrites:        true,
					ValueLogFileSize:  1 << 26, // 64MB
					NumVersionsToKeep: 1,
				},
				Redis: RedisConfig{
					Address:   "localhost:6379",
					Password:  "",
					DB:        0,
					KeyPrefix: "convmem:",
				},
			},
		},
		Memory: MemoryConfig{
			AutosaveInterval:       5 * time.Minute,
			RecentWindow:           20,
			RetentionSweepInterval: 0,
			SealProfiles:           false,
			Defaults: SettingsDefaults{
				Enabled:              true,
				RetentionDays:        90,
				EncryptSensitiveData: true,
				AllowAnalytics:       true,
				AutoSessionSave:      true,
			},
		},
		Events: EventsConfig{
			Enabled:   true,
			Transport: "memory",
			Redis: RedisConfig{
				Address: "localhost:6379",
				DB:      0,
			},
			MaxRetries:       3,
			InitialBackoff:   50 * time.Millisecond,
			MaxBackoff:       2 * time.Second,
			StreamBuffer:     64,
			MaxStreamClients: 100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			Sampler:    "parentbased_traceidratio",
			SampleRate: 0.1,
		},
	}
}
