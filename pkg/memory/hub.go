package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/strainwise/convmem/config"
	"github.com/strainwise/convmem/pkg/classifier"
	"github.com/strainwise/convmem/pkg/kv"
	"github.com/strainwise/convmem/pkg/storage"
	"go.opentelemetry.io/otel/attribute"
)

// Dependencies are the collaborators of a MemoryHub. Conversations, Cache and
// Cipher are required.
type Dependencies struct {
	Conversations storage.DocumentStore
	Cache         kv.Cache
	Cipher        Cipher
	Classifier    *classifier.Classifier
	Events        EventPublisher
	Recorder      Recorder
}

// MemoryHub is the concrete implementation of the Hub interface.
type MemoryHub struct {
	mu sync.Mutex

	cfg      *config.MemoryConfig
	logger   hubLogger
	recorder Recorder

	settings      *SettingsStore
	profiles      *ProfileStore
	conversations *ConversationStore
	sessions      *SessionManager
	reconstructor *Reconstructor
	privacy       *PrivacyManager
	analytics     *Aggregator
	retention     *RetentionSweeper

	docs  storage.DocumentStore
	cache kv.Cache

	started bool
}

var _ Hub = (*MemoryHub)(nil)

// NewMemoryHub wires the memory components from configuration.
func NewMemoryHub(cfg *config.MemoryConfig, deps Dependencies, logger hubLogger) (*MemoryHub, error) {
	if cfg == nil {
		return nil, errors.New("memory: config is required")
	}
	if deps.Conversations == nil || deps.Cache == nil {
		return nil, errors.New("memory: conversation store and cache are required")
	}
	if deps.Cipher == nil {
		return nil, ErrNoCipher
	}
	if logger == nil {
		logger = &nopHubLogger{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.New(nil)
	}

	var sealer Cipher
	if cfg.SealProfiles {
		sealer = deps.Cipher
	}
	events := emitter{publisher: deps.Events, logger: logger}

	settings := NewSettingsStore(deps.Cache, defaultsFromConfig(cfg.Defaults))
	settings.logger = logger
	profiles := NewProfileStore(deps.Cache, deps.Classifier, sealer)
	profiles.logger = logger
	conversations := NewConversationStore(deps.Conversations, deps.Cipher, deps.Classifier, logger)

	sessions := NewSessionManager(conversations, profiles, settings, cfg.AutosaveInterval, logger)
	sessions.recorder, sessions.events = deps.Recorder, events

	privacy := NewPrivacyManager(sessions, conversations, profiles, settings, logger)
	privacy.recorder, privacy.events = deps.Recorder, events

	retention := NewRetentionSweeper(conversations, settings, cfg.RetentionSweepInterval, logger)
	retention.recorder, retention.events = deps.Recorder, events

	return &MemoryHub{
		cfg:           cfg,
		logger:        logger,
		recorder:      deps.Recorder,
		settings:      settings,
		profiles:      profiles,
		conversations: conversations,
		sessions:      sessions,
		reconstructor: NewReconstructor(conversations, profiles, settings, cfg.RecentWindow, logger),
		privacy:       privacy,
		analytics:     NewAggregator(conversations, settings),
		retention:     retention,
		docs:          deps.Conversations,
		cache:         deps.Cache,
	}, nil
}

func defaultsFromConfig(d config.SettingsDefaults) MemorySettings {
	return MemorySettings{
		Enabled:              d.Enabled,
		RetentionDays:        d.RetentionDays,
		EncryptSensitiveData: d.EncryptSensitiveData,
		AllowAnalytics:       d.AllowAnalytics,
		AutoSessionSave:      d.AutoSessionSave,
	}
}

// Start begins autosave and, when configured, retention sweeping.
func (h *MemoryHub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return fmt.Errorf("memory hub already started")
	}

	h.logger.Info("starting memory hub",
		"autosave_interval", h.cfg.AutosaveInterval,
		"recent_window", h.cfg.RecentWindow,
		"retention_sweep_interval", h.cfg.RetentionSweepInterval,
		"seal_profiles", h.cfg.SealProfiles,
	)

	h.sessions.Start(ctx)
	h.retention.Start(ctx)
	h.started = true

	h.logger.Info("memory hub started")
	return nil
}

// Stop halts background work and makes a final best-effort flush.
func (h *MemoryHub) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return nil
	}

	h.logger.Info("stopping memory hub")
	h.retention.Stop()
	h.sessions.Close(ctx)
	h.started = false
	h.logger.Info("memory hub stopped")
	return nil
}

// Started reports whether Start has run without a matching Stop.
func (h *MemoryHub) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// Ready pings both stores. It fails while the hub is stopped.
func (h *MemoryHub) Ready(ctx context.Context) error {
	if !h.Started() {
		return errors.New("memory hub not started")
	}
	var errs []error
	if err := h.docs.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("conversation store: %w", err))
	}
	if err := h.cache.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}
	return errors.Join(errs...)
}

// ActiveSessions returns the number of in-memory sessions.
func (h *MemoryHub) ActiveSessions() int {
	return len(h.sessions.users())
}

// RecordConversation stores one exchange. The result never aborts the
// caller's exchange.
func (h *MemoryHub) RecordConversation(ctx context.Context, userID, query, response string, metadata map[string]string) RecordResult {
	ctx, span := startSpan(ctx, spanRecord, userID)
	result := h.sessions.Record(ctx, userID, query, response, metadata)
	span.SetAttributes(attribute.String("memory.outcome", string(result.Outcome)))
	if result.Entry != nil {
		span.SetAttributes(
			attribute.String("memory.entry_id", result.Entry.ID),
			attribute.String("memory.session_id", result.Entry.SessionID),
			attribute.String("memory.query_type", string(result.Entry.QueryType)),
		)
	}
	endSpan(span, result.Err)
	return result
}

// StartNewSession flushes the user's session and returns the new session ID.
func (h *MemoryHub) StartNewSession(ctx context.Context, userID string) (id string, err error) {
	ctx, span := startSpan(ctx, spanNewSession, userID)
	defer func() { endSpan(span, err) }()
	return h.sessions.StartNewSession(ctx, userID)
}

// CurrentSession reports the user's active session.
func (h *MemoryHub) CurrentSession(userID string) (SessionInfo, bool) {
	return h.sessions.Current(userID)
}

// AmendFeedback sets the feedback on an entry the user owns.
func (h *MemoryHub) AmendFeedback(ctx context.Context, userID, entryID string, feedback Feedback) (err error) {
	ctx, span := startSpan(ctx, spanFeedback, userID)
	defer func() { endSpan(span, err) }()

	if !validUserID(userID) {
		return ErrInvalidUserID
	}
	// The entry may still sit unpersisted in the session buffer.
	if _, err := h.sessions.Flush(ctx, userID); err != nil {
		h.logger.Debug("flush before feedback incomplete", "user_id", userID, "error", err)
	}
	return h.conversations.AmendFeedback(ctx, userID, entryID, feedback)
}

// BuildContext reconstructs the personalization context. Store failures
// are returned alongside an empty context.
func (h *MemoryHub) BuildContext(ctx context.Context, userID string) (c *Context, err error) {
	ctx, span := startSpan(ctx, spanBuildContext, userID)
	defer func() { endSpan(span, err) }()

	start := time.Now()
	c, err = h.reconstructor.Build(ctx, userID)
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case c.Empty():
		status = "empty"
	}
	h.recorder.RecordContextBuild(status, time.Since(start))
	return c, err
}

// Profile returns the user's inferred profile.
func (h *MemoryHub) Profile(ctx context.Context, userID string) (*UserMemoryProfile, error) {
	if !validUserID(userID) {
		return nil, ErrInvalidUserID
	}
	return h.profiles.Get(ctx, userID)
}

// GetSettings returns the user's settings.
func (h *MemoryHub) GetSettings(ctx context.Context, userID string) (MemorySettings, error) {
	return h.privacy.GetSettings(ctx, userID)
}

// UpdateSettings merges patch into the user's settings.
func (h *MemoryHub) UpdateSettings(ctx context.Context, userID string, patch SettingsPatch) (MemorySettings, error) {
	return h.privacy.UpdateSettings(ctx, userID, patch)
}

// ExportAll returns all stored data for the user in plaintext.
func (h *MemoryHub) ExportAll(ctx context.Context, userID string) (e *Export, err error) {
	ctx, span := startSpan(ctx, spanExport, userID)
	defer func() { endSpan(span, err) }()
	return h.privacy.ExportAll(ctx, userID)
}

// EraseAll deletes all stored data for the user.
func (h *MemoryHub) EraseAll(ctx context.Context, userID string) (err error) {
	ctx, span := startSpan(ctx, spanErase, userID)
	defer func() { endSpan(span, err) }()
	return h.privacy.EraseAll(ctx, userID)
}

// Summarize returns analytics for the user.
func (h *MemoryHub) Summarize(ctx context.Context, userID string) (s *Summary, err error) {
	ctx, span := startSpan(ctx, spanSummarize, userID)
	defer func() { endSpan(span, err) }()
	return h.analytics.Summarize(ctx, userID)
}

// SweepRetention runs one retention sweep immediately.
func (h *MemoryHub) SweepRetention(ctx context.Context) (int, error) {
	return h.retention.Sweep(ctx)
}

// setClock replaces the time source of every component.
func (h *MemoryHub) setClock(now func() time.Time) {
	h.profiles.now = now
	h.sessions.now = now
	h.reconstructor.now = now
	h.privacy.now = now
	h.retention.now = now
}
