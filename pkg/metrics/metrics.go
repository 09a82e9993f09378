// Package metrics provides Prometheus metrics instrumentation for convmem.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for convmem.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	// Memory metrics
	conversations       *prometheus.CounterVec
	sessionFlushes      *prometheus.CounterVec
	sessionFlushEntries *prometheus.CounterVec
	sessionRotations    prometheus.Counter
	activeSessions      prometheus.Gauge
	contextBuilds       *prometheus.CounterVec
	contextBuildSeconds *prometheus.HistogramVec
	exports             *prometheus.CounterVec
	exportEntries       prometheus.Histogram
	erasures            *prometheus.CounterVec
	retentionSweeps     *prometheus.CounterVec
	retentionDeleted    prometheus.Counter
	profileUpdates      *prometheus.CounterVec

	// Event bus metrics
	eventBusPublish    *prometheus.CounterVec
	eventBusRetries    prometheus.Counter
	eventBusDegraded   prometheus.Gauge
	eventBusOutages    prometheus.Counter
	eventBusRecoveries prometheus.Counter

	// HTTP metrics
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpConnections prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	// Histogram bucket configurations
	ContextBuildBuckets []float64
	ExportSizeBuckets   []float64
	HTTPDurationBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		Port:                9091,
		Path:                "/metrics",
		ContextBuildBuckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		ExportSizeBuckets:   []float64{0, 10, 50, 100, 500, 1000, 5000},
		HTTPDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager creates a new metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	defaults := DefaultConfig()
	if len(cfg.ContextBuildBuckets) == 0 {
		cfg.ContextBuildBuckets = defaults.ContextBuildBuckets
	}
	if len(cfg.ExportSizeBuckets) == 0 {
		cfg.ExportSizeBuckets = defaults.ExportSizeBuckets
	}
	if len(cfg.HTTPDurationBuckets) == 0 {
		cfg.HTTPDurationBuckets = defaults.HTTPDurationBuckets
	}

	registry := prometheus.NewRegistry()

	// Register Go runtime metrics
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		enabled:  true,
	}

	m.initMemoryMetrics(cfg)
	m.initEventBusMetrics()
	m.initHTTPMetrics(cfg)

	return m
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartServer starts the metrics HTTP server on the configured port.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return server.ListenAndServe()
}

// NoOpManager returns a no-op metrics manager for when metrics are disabled.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}
