package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initMemoryMetrics initializes conversational memory metrics.
func (m *Manager) initMemoryMetrics(cfg Config) {
	m.conversations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_conversations_total",
			Help: "Total number of recorded exchanges by outcome and query type",
		},
		[]string{"outcome", "query_type"},
	)

	m.sessionFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_session_flushes_total",
			Help: "Total number of session buffer flushes by status",
		},
		[]string{"status"},
	)

	m.sessionFlushEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_session_flush_entries_total",
			Help: "Total number of buffered entries written by flushes",
		},
		[]string{"status"},
	)

	m.sessionRotations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_session_rotations_total",
			Help: "Total number of explicit session rotations",
		},
	)

	m.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_active_sessions",
			Help: "Current number of in-memory sessions",
		},
	)

	m.contextBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_context_builds_total",
			Help: "Total number of context reconstructions by status",
		},
		[]string{"status"},
	)

	m.contextBuildSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memory_context_build_duration_seconds",
			Help:    "Context reconstruction duration in seconds",
			Buckets: cfg.ContextBuildBuckets,
		},
		[]string{"status"},
	)

	m.exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_exports_total",
			Help: "Total number of user data exports by status",
		},
		[]string{"status"},
	)

	m.exportEntries = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memory_export_entries",
			Help:    "Number of conversation entries per export",
			Buckets: cfg.ExportSizeBuckets,
		},
	)

	m.erasures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_erasures_total",
			Help: "Total number of erase-all requests by status",
		},
		[]string{"status"},
	)

	m.retentionSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_retention_sweeps_total",
			Help: "Total number of retention sweeps by status",
		},
		[]string{"status"},
	)

	m.retentionDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_retention_deleted_total",
			Help: "Total number of conversation entries removed by retention",
		},
	)

	m.profileUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_profile_updates_total",
			Help: "Total number of profile folds by status",
		},
		[]string{"status"},
	)

	m.registry.MustRegister(m.conversations)
	m.registry.MustRegister(m.sessionFlushes)
	m.registry.MustRegister(m.sessionFlushEntries)
	m.registry.MustRegister(m.sessionRotations)
	m.registry.MustRegister(m.activeSessions)
	m.registry.MustRegister(m.contextBuilds)
	m.registry.MustRegister(m.contextBuildSeconds)
	m.registry.MustRegister(m.exports)
	m.registry.MustRegister(m.exportEntries)
	m.registry.MustRegister(m.erasures)
	m.registry.MustRegister(m.retentionSweeps)
	m.registry.MustRegister(m.retentionDeleted)
	m.registry.MustRegister(m.profileUpdates)
}

// RecordConversation records one Record call.
func (m *Manager) RecordConversation(outcome, queryType string) {
	if !m.enabled {
		return
	}
	if queryType == "" {
		queryType = "none"
	}
	m.conversations.WithLabelValues(outcome, queryType).Inc()
}

// RecordSessionFlush records a buffer flush and how many entries it wrote.
func (m *Manager) RecordSessionFlush(status string, entries int) {
	if !m.enabled {
		return
	}
	m.sessionFlushes.WithLabelValues(status).Inc()
	if entries > 0 {
		m.sessionFlushEntries.WithLabelValues(status).Add(float64(entries))
	}
}

// RecordSessionRotation records an explicit new session.
func (m *Manager) RecordSessionRotation() {
	if !m.enabled {
		return
	}
	m.sessionRotations.Inc()
}

// SetActiveSessions sets the in-memory session gauge.
func (m *Manager) SetActiveSessions(n int) {
	if !m.enabled {
		return
	}
	m.activeSessions.Set(float64(n))
}

// RecordContextBuild records a context reconstruction.
func (m *Manager) RecordContextBuild(status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.contextBuilds.WithLabelValues(status).Inc()
	m.contextBuildSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordExport records an export and its size.
func (m *Manager) RecordExport(status string, entries int) {
	if !m.enabled {
		return
	}
	m.exports.WithLabelValues(status).Inc()
	if status == "success" {
		m.exportEntries.Observe(float64(entries))
	}
}

// RecordErasure records an erase-all request.
func (m *Manager) RecordErasure(status string) {
	if !m.enabled {
		return
	}
	m.erasures.WithLabelValues(status).Inc()
}

// RecordRetentionSweep records a retention pass.
func (m *Manager) RecordRetentionSweep(status string, deleted int) {
	if !m.enabled {
		return
	}
	m.retentionSweeps.WithLabelValues(status).Inc()
	if deleted > 0 {
		m.retentionDeleted.Add(float64(deleted))
	}
}

// RecordProfileUpdate records a profile fold.
func (m *Manager) RecordProfileUpdate(status string) {
	if !m.enabled {
		return
	}
	m.profileUpdates.WithLabelValues(status).Inc()
}
