package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testKey = "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8="

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Memory.EncryptionKey = testKey
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.App.Name != "convmem" {
		t.Errorf("expected app name 'convmem', got %s", cfg.App.Name)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Memory.AutosaveInterval != 5*time.Minute {
		t.Errorf("expected autosave interval 5m, got %v", cfg.Memory.AutosaveInterval)
	}
	if cfg.Memory.RecentWindow != 20 {
		t.Errorf("expected recent window 20, got %d", cfg.Memory.RecentWindow)
	}
	if cfg.Memory.RetentionSweepInterval != 0 {
		t.Errorf("expected retention sweep disabled, got %v", cfg.Memory.RetentionSweepInterval)
	}

	d := cfg.Memory.Defaults
	if !d.Enabled || d.RetentionDays != 90 || !d.EncryptSensitiveData || !d.AllowAnalytics || !d.AutoSessionSave {
		t.Errorf("unexpected settings defaults: %+v", d)
	}
	if cfg.Memory.EncryptionKey != "" {
		t.Error("encryption key must not have a default")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing encryption key", mutate: func(c *Config) { c.Memory.EncryptionKey = "" }, wantErr: true},
		{name: "short encryption key", mutate: func(c *Config) { c.Memory.EncryptionKey = "c2hvcnQ=" }, wantErr: true},
		{name: "missing app name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: true},
		{name: "invalid environment", mutate: func(c *Config) { c.App.Environment = "qa" }, wantErr: true},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "invalid cache type", mutate: func(c *Config) { c.Storage.Cache.Type = "memcached" }, wantErr: true},
		{name: "invalid document store", mutate: func(c *Config) { c.Storage.Conversations.Type = "postgres" }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage.Conversations.Path = "" }, wantErr: true},
		{name: "memory store without path", mutate: func(c *Config) {
			c.Storage.Conversations.Type = "memory"
			c.Storage.Conversations.Path = ""
		}},
		{name: "zero autosave interval", mutate: func(c *Config) { c.Memory.AutosaveInterval = 0 }, wantErr: true},
		{name: "negative retention days", mutate: func(c *Config) { c.Memory.Defaults.RetentionDays = -1 }, wantErr: true},
		{name: "invalid sampler", mutate: func(c *Config) { c.Tracing.Sampler = "sometimes" }, wantErr: true},
		{name: "invalid event transport", mutate: func(c *Config) { c.Events.Transport = "kafka" }, wantErr: true},
		{name: "event backoff inverted", mutate: func(c *Config) { c.Events.MaxBackoff = time.Millisecond }, wantErr: true},
		{name: "redis event transport", mutate: func(c *Config) { c.Events.Transport = "redis" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateWithDetails_RedactsKey(t *testing.T) {
	cfg := validConfig()
	cfg.Memory.EncryptionKey = "bm90LWEta2V5"

	err := ValidateWithDetails(cfg)
	var details ValidationErrors
	if !errors.As(err, &details) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(details) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(details), details)
	}
	if details[0].Value != "[redacted]" {
		t.Errorf("expected redacted value, got %v", details[0].Value)
	}
	if strings.Contains(err.Error(), "bm90LWEta2V5") {
		t.Error("error message leaks the key")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	if got := (ValidationErrors{}).Error(); got != "no validation errors" {
		t.Errorf("unexpected empty message %q", got)
	}

	errs := ValidationErrors{{Field: "Config.Server.Port", Message: "must be at most 65535", Value: 70000}}
	if !strings.Contains(errs.Error(), "Config.Server.Port") {
		t.Errorf("expected field name in %q", errs.Error())
	}
}

func TestConfig_String(t *testing.T) {
	cfg := validConfig()
	str := cfg.String()
	if !strings.Contains(str, "convmem") || !strings.Contains(str, "sqlite") {
		t.Errorf("unexpected String() %q", str)
	}
	if strings.Contains(str, testKey) {
		t.Error("String() must not include the encryption key")
	}
}

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `app:
  name: convmem-test
server:
  port: 9000
storage:
  cache:
    type: memory
memory:
  encryption_key: ` + testKey + `
  autosave_interval: 1m
  defaults:
    retention_days: 30
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := NewLoader().Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Name != "convmem-test" {
		t.Errorf("expected app name from file, got %s", cfg.App.Name)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Cache.Type != "memory" {
		t.Errorf("expected memory cache, got %s", cfg.Storage.Cache.Type)
	}
	if cfg.Memory.AutosaveInterval != time.Minute {
		t.Errorf("expected autosave 1m, got %v", cfg.Memory.AutosaveInterval)
	}
	if cfg.Memory.Defaults.RetentionDays != 30 {
		t.Errorf("expected retention 30, got %d", cfg.Memory.Defaults.RetentionDays)
	}
	// Untouched defaults in a partially specified section survive.
	if !cfg.Memory.Defaults.EncryptSensitiveData {
		t.Error("expected encrypt_sensitive_data default to survive")
	}
	if cfg.Memory.RecentWindow != 20 {
		t.Errorf("expected recent window default 20, got %d", cfg.Memory.RecentWindow)
	}
	if cfg.Storage.Conversations.Type != "sqlite" {
		t.Errorf("expected sqlite default, got %s", cfg.Storage.Conversations.Type)
	}
}

func TestLoader_LoadJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"log": {"level": "debug", "format": "text"}, "memory": {"encryption_key": "` + testKey + `"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
}

func TestLoader_LoadInvalidFile(t *testing.T) {
	_, err := NewLoader().Load("/nonexistent/config.yaml", nil)
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoader_LoadUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	_, err := NewLoader().Load(path, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported config file format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestLoader_MissingKeyFails(t *testing.T) {
	_, err := NewLoader().Load("", nil)
	var details ValidationErrors
	if !errors.As(err, &details) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	found := false
	for _, d := range details {
		if strings.HasSuffix(d.Field, "EncryptionKey") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected EncryptionKey error, got %v", details)
	}
}

func TestLoader_EnvVars(t *testing.T) {
	t.Setenv("CONVMEM_MEMORY_ENCRYPTION_KEY", testKey)
	t.Setenv("CONVMEM_SERVER_PORT", "9999")
	t.Setenv("CONVMEM_SERVER_HTTP_READ_TIMEOUT", "45s")
	t.Setenv("CONVMEM_MEMORY_DEFAULTS_ALLOW_ANALYTICS", "false")
	t.Setenv("CONVMEM_STORAGE_CACHE_REDIS_ADDRESS", "redis:6380")

	cfg, err := NewLoader().Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.HTTP.ReadTimeout != 45*time.Second {
		t.Errorf("expected read timeout 45s, got %v", cfg.Server.HTTP.ReadTimeout)
	}
	if cfg.Memory.Defaults.AllowAnalytics {
		t.Error("expected allow_analytics false from env")
	}
	if cfg.Storage.Cache.Redis.Address != "redis:6380" {
		t.Errorf("expected redis address from env, got %s", cfg.Storage.Cache.Redis.Address)
	}
	if cfg.Memory.EncryptionKey != testKey {
		t.Error("expected encryption key from env")
	}
}

func TestLoader_Overrides(t *testing.T) {
	cfg, err := NewLoader().Load("", map[string]interface{}{
		"memory.encryption_key": testKey,
		"server.port":           7070,
		"log.level":             "warn",
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 || cfg.Log.Level != "warn" {
		t.Errorf("overrides not applied: port=%d level=%s", cfg.Server.Port, cfg.Log.Level)
	}
}

func TestEnvToKey(t *testing.T) {
	known := envKeyIndex()

	tests := []struct {
		env  string
		want string
	}{
		{"CONVMEM_LOG_LEVEL", "log.level"},
		{"CONVMEM_MEMORY_RECENT_WINDOW", "memory.recent_window"},
		{"CONVMEM_STORAGE_CONVERSATIONS_PATH", "storage.conversations.path"},
		{"CONVMEM_SERVER_RATE_LIMIT_BURST", "server.rate_limit.burst"},
		{"CONVMEM_UNKNOWN_THING", "unknown.thing"},
	}
	for _, tt := range tests {
		if got := envToKey(tt.env, known); got != tt.want {
			t.Errorf("envToKey(%s) = %s, want %s", tt.env, got, tt.want)
		}
	}
}

func TestLoader_Accessors(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.Load("", map[string]interface{}{"memory.encryption_key": testKey}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := loader.GetString("app.name"); got != "convmem" {
		t.Errorf("expected convmem, got %s", got)
	}
	if got := loader.GetInt("server.port"); got != 8080 {
		t.Errorf("expected 8080, got %d", got)
	}
	if !loader.GetBool("memory.defaults.enabled") {
		t.Error("expected memory.defaults.enabled true")
	}
	if err := loader.Set("app.name", "changed"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if loader.Get("app.name") != "changed" {
		t.Error("expected Set to take effect")
	}
	if loader.Print() == "" {
		t.Error("expected non-empty Print output")
	}
}

func TestLoadOrDie_Panic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic without an encryption key")
		}
	}()
	LoadOrDie("/nonexistent/config.yaml", nil)
}

func TestFormatValidationError(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Cache.Type = "memcached"
	err := ValidateWithDetails(cfg)
	if err == nil || !strings.Contains(err.Error(), "must be one of [memory badger redis]") {
		t.Errorf("unexpected message: %v", err)
	}
}
