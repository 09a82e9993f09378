// Package app assembles a convmem node from configuration: stores, codec,
// event pipeline, memory hub and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"github.com/strainwise/convmem/config"
	"github.com/strainwise/convmem/pkg/api"
	"github.com/strainwise/convmem/pkg/api/events"
	"github.com/strainwise/convmem/pkg/api/handlers"
	"github.com/strainwise/convmem/pkg/api/middleware"
	"github.com/strainwise/convmem/pkg/codec"
	"github.com/strainwise/convmem/pkg/eventbus"
	"github.com/strainwise/convmem/pkg/kv"
	kvbadger "github.com/strainwise/convmem/pkg/kv/badger"
	kvmemory "github.com/strainwise/convmem/pkg/kv/memory"
	kvredis "github.com/strainwise/convmem/pkg/kv/redis"
	"github.com/strainwise/convmem/pkg/logger"
	"github.com/strainwise/convmem/pkg/memory"
	"github.com/strainwise/convmem/pkg/metrics"
	"github.com/strainwise/convmem/pkg/storage"
	storagebadger "github.com/strainwise/convmem/pkg/storage/badger"
	storagememory "github.com/strainwise/convmem/pkg/storage/memory"
	"github.com/strainwise/convmem/pkg/storage/sqlite"
	"github.com/strainwise/convmem/pkg/telemetry/tracing"
)

// App owns every long-lived component of a node.
type App struct {
	cfg *config.Config
	log logger.Logger

	metrics     *metrics.Manager
	hub         *memory.MemoryHub
	bus         eventbus.Bus
	broadcaster *events.Broadcaster
	streams     *handlers.WebSocketHandler
	limiter     *middleware.RateLimiter
	server      *api.HTTPServer

	closers []closer

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// New builds an App. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.closeAll(context.Background())
		}
	}()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, tracing.ServiceFromConfig(cfg.App))
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.push("tracing", shutdownTracing)

	cipher, err := codec.NewFromBase64(cfg.Memory.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init codec: %w", err)
	}

	docs, err := OpenConversations(cfg.Storage.Conversations)
	if err != nil {
		return nil, err
	}
	a.pushErr("conversations", docs.Close)
	log.Info("Initialized conversation store", "type", cfg.Storage.Conversations.Type)

	cache, err := OpenCache(cfg.Storage.Cache)
	if err != nil {
		return nil, err
	}
	a.pushErr("cache", cache.Close)
	log.Info("Initialized cache", "type", cfg.Storage.Cache.Type)

	a.metrics = metrics.NewManager(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Port:    cfg.Metrics.Port,
		Path:    cfg.Metrics.Path,
	})

	var publisher memory.EventPublisher
	if cfg.Events.Enabled {
		a.bus, err = OpenBus(cfg.Events)
		if err != nil {
			return nil, err
		}
		a.pushErr("event bus", a.bus.Close)

		p, err := eventbus.NewPublisher(cfg.App.NodeID, a.bus, eventbus.RetryConfig{
			MaxRetries:     cfg.Events.MaxRetries,
			InitialBackoff: cfg.Events.InitialBackoff,
			MaxBackoff:     cfg.Events.MaxBackoff,
			BackoffFactor:  2,
		}, a.metrics)
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		schemas, err := eventbus.NewMemorySchemaRouter()
		if err != nil {
			return nil, fmt.Errorf("init event schemas: %w", err)
		}
		p.ValidateWith(schemas)
		publisher = p
		log.Info("Initialized event bus", "transport", cfg.Events.Transport)
	}

	a.hub, err = memory.NewMemoryHub(&cfg.Memory, memory.Dependencies{
		Conversations: docs,
		Cache:         cache,
		Cipher:        cipher,
		Events:        publisher,
		Recorder:      a.metrics,
	}, log.With("component", "memory"))
	if err != nil {
		return nil, fmt.Errorf("init memory hub: %w", err)
	}

	a.broadcaster = events.NewBroadcaster()
	a.streams = handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		MaxConnections: cfg.Events.MaxStreamClients,
	})

	if cfg.Server.RateLimit.Enabled {
		a.limiter = middleware.NewRateLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)
	}

	h := &api.Handlers{
		Health:      handlers.NewHealthHandler(a.hub, a.streams),
		Memory:      handlers.NewMemoryHandler(a.hub, log),
		Events:      a.streams,
		RateLimiter: a.limiter,
	}
	if a.metrics.Enabled() {
		h.Metrics = a.metrics
		if cfg.Metrics.Port == cfg.Server.Port {
			h.MetricsHandler = a.metrics.Handler()
		}
	}
	a.server = api.NewHTTPServer(cfg, log, h)

	return a, nil
}

// Start starts the hub, the event relay and, on its own port, the metrics
// server. The HTTP API is started by the caller through Server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.New("app: already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := a.hub.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start memory hub: %w", err)
	}
	a.cancel = cancel

	if a.bus != nil {
		relay, err := events.NewRelay(a.bus, a.broadcaster, a.log, a.cfg.Events.StreamBuffer)
		if err != nil {
			cancel()
			_ = a.hub.Stop(context.Background())
			return fmt.Errorf("init event relay: %w", err)
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := relay.Run(runCtx); err != nil {
				a.log.Error("Event relay stopped", "error", err)
			}
		}()
	}
	a.streams.Attach(runCtx, a.broadcaster, a.cfg.Events.StreamBuffer)

	if a.metrics.Enabled() && a.cfg.Metrics.Port != a.cfg.Server.Port {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.log.Info("Starting metrics server", "port", a.cfg.Metrics.Port, "path", a.cfg.Metrics.Path)
			if err := a.metrics.StartServer(runCtx, a.cfg.Metrics.Port, a.cfg.Metrics.Path); err != nil && runCtx.Err() == nil {
				a.log.Error("Metrics server error", "error", err)
			}
		}()
	}

	a.started = true
	return nil
}

// Server returns the HTTP API server.
func (a *App) Server() *api.HTTPServer {
	return a.server
}

// Hub returns the memory hub.
func (a *App) Hub() *memory.MemoryHub {
	return a.hub
}

// Reload applies the hot-reloadable part of cfg.
func (a *App) Reload(cfg *config.Config) {
	a.log.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if a.limiter != nil {
		a.limiter.Update(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)
	}
	a.log.Info("Configuration reloaded",
		"log_level", cfg.Log.Level,
		"rate_limit_rps", cfg.Server.RateLimit.RequestsPerSecond,
		"rate_limit_burst", cfg.Server.RateLimit.Burst,
	)
}

// Shutdown stops the HTTP server, flushes the hub and closes every backend
// in reverse order of opening.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	a.streams.Close()

	a.mu.Lock()
	if a.started {
		if err := a.hub.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("memory hub: %w", err))
		}
		a.cancel()
		a.started = false
	}
	a.mu.Unlock()

	a.broadcaster.Close()
	errs = append(errs, a.closeAll(ctx))
	a.wg.Wait()
	return errors.Join(errs...)
}

func (a *App) push(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) pushErr(name string, fn func() error) {
	a.push(name, func(context.Context) error { return fn() })
}

func (a *App) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenConversations opens the configured document store.
func OpenConversations(cfg config.DocumentStoreConfig) (storage.DocumentStore, error) {
	switch cfg.Type {
	case "memory":
		return storagememory.NewMemoryStorage(), nil
	case "sqlite":
		store, err := sqlite.New(&sqlite.Config{Path: cfg.Path})
		if err != nil {
			return nil, fmt.Errorf("open sqlite conversation store: %w", err)
		}
		return store, nil
	case "badger":
		store, err := storagebadger.NewBadgerStorage(&storagebadger.Config{
			Path:              cfg.Badger.Path,
			SyncWrites:        cfg.Badger.SyncWrites,
			ValueLogFileSize:  cfg.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Badger.NumVersionsToKeep,
		})
		if err != nil {
			return nil, fmt.Errorf("open badger conversation store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown conversation store type %q", cfg.Type)
	}
}

// OpenCache opens the configured profile and settings cache.
func OpenCache(cfg config.CacheConfig) (kv.Cache, error) {
	switch cfg.Type {
	case "memory":
		return kvmemory.New(), nil
	case "badger":
		store, err := kvbadger.New(&kvbadger.Config{
			Path:              cfg.Badger.Path,
			SyncWrites:        cfg.Badger.SyncWrites,
			ValueLogFileSize:  cfg.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Badger.NumVersionsToKeep,
		})
		if err != nil {
			return nil, fmt.Errorf("open badger cache: %w", err)
		}
		return store, nil
	case "redis":
		return kvredis.New(&kvredis.Config{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

// OpenBus opens the configured lifecycle event transport.
func OpenBus(cfg config.EventsConfig) (eventbus.Bus, error) {
	switch cfg.Transport {
	case "memory":
		return eventbus.NewMemoryBus(), nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return &redisBus{RedisBus: eventbus.NewRedisBus(client, cfg.Redis.KeyPrefix), client: client}, nil
	default:
		return nil, fmt.Errorf("unknown event transport %q", cfg.Transport)
	}
}

// redisBus closes the client it dialed along with the bus.
type redisBus struct {
	*eventbus.RedisBus
	client *goredis.Client
}

func (b *redisBus) Close() error {
	return errors.Join(b.RedisBus.Close(), b.client.Close())
}
