package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/strainwise/convmem/pkg/eventbus"
)

// PrivacyManager exposes user control over stored data: settings, export
// and erasure.
type PrivacyManager struct {
	sessions      *SessionManager
	conversations *ConversationStore
	profiles      *ProfileStore
	settings      *SettingsStore
	logger        hubLogger
	recorder      Recorder
	events        emitter
	now           func() time.Time
}

// NewPrivacyManager creates a privacy manager.
func NewPrivacyManager(sessions *SessionManager, conversations *ConversationStore, profiles *ProfileStore, settings *SettingsStore, logger hubLogger) *PrivacyManager {
	if logger == nil {
		logger = &nopHubLogger{}
	}
	return &PrivacyManager{
		sessions:      sessions,
		conversations: conversations,
		profiles:      profiles,
		settings:      settings,
		logger:        logger,
		recorder:      nopRecorder{},
		events:        emitter{logger: logger},
		now:           time.Now,
	}
}

// GetSettings returns the user's settings, or defaults if none are stored.
func (p *PrivacyManager) GetSettings(ctx context.Context, userID string) (MemorySettings, error) {
	if !validUserID(userID) {
		return MemorySettings{}, ErrInvalidUserID
	}
	return p.settings.Get(ctx, userID)
}

// UpdateSettings merges patch into the user's settings. Fields absent from
// the patch keep their prior value.
func (p *PrivacyManager) UpdateSettings(ctx context.Context, userID string, patch SettingsPatch) (MemorySettings, error) {
	if !validUserID(userID) {
		return MemorySettings{}, ErrInvalidUserID
	}
	updated, err := p.settings.Update(ctx, userID, patch)
	if err != nil {
		return MemorySettings{}, err
	}

	raw, err := json.Marshal(updated)
	if err == nil {
		p.events.user(ctx, userID, "", eventbus.EventSettingsUpdated, eventbus.SettingsUpdatedPayload{Settings: raw})
	}
	return updated, nil
}

// ExportAll returns everything stored for userID with every conversation in
// plaintext. Buffered entries are flushed first on a best-effort basis. Only
// a failure to read the history fails the export; an unreadable profile or
// settings is replaced by the defaults.
func (p *PrivacyManager) ExportAll(ctx context.Context, userID string) (*Export, error) {
	if !validUserID(userID) {
		return nil, ErrInvalidUserID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := p.sessions.Flush(ctx, userID); err != nil {
		p.logger.Warn("pre-export flush incomplete", "user_id", userID, "error", err)
	}

	conversations, err := p.conversations.ReadAll(ctx, userID)
	if err != nil {
		p.recorder.RecordExport("error", 0)
		return nil, err
	}
	profile, err := p.profiles.Get(ctx, userID)
	if err != nil {
		p.logger.Warn("exporting default profile", "user_id", userID, "error", err)
		profile = DefaultProfile(userID)
	}
	settings, err := p.settings.Get(ctx, userID)
	if err != nil {
		p.logger.Warn("exporting default settings", "user_id", userID, "error", err)
	}

	for _, e := range conversations {
		if e.DecryptFailed {
			p.logger.Warn("exporting entry that failed to decrypt", "user_id", userID, "id", e.ID)
		}
	}

	p.recorder.RecordExport("success", len(conversations))
	return &Export{
		UserID:        userID,
		ExportedAt:    p.now().UTC(),
		Profile:       profile,
		Settings:      settings,
		Conversations: conversations,
	}, nil
}

// EraseAll deletes the user's conversations, profile, settings and session
// buffer. Every part is attempted; if any fails an *ErasureError is returned
// and the call may be repeated. A cancelled context stops before the next
// part.
func (p *PrivacyManager) EraseAll(ctx context.Context, userID string) error {
	if !validUserID(userID) {
		return ErrInvalidUserID
	}

	failed := make(map[string]error)
	var deleted int
	steps := []struct {
		part string
		run  func() error
	}{
		{"conversations", func() (err error) {
			deleted, err = p.conversations.DeleteAll(ctx, userID)
			return err
		}},
		{"profile", func() error { return p.profiles.Delete(ctx, userID) }},
		{"settings", func() error { return p.settings.Delete(ctx, userID) }},
	}
	// In-flight records of the user finish before deletion starts; later
	// ones wait and land in a fresh session.
	p.sessions.Exclusive(userID, func() {
		for _, step := range steps {
			if err := ctx.Err(); err != nil {
				failed[step.part] = err
				continue
			}
			if err := step.run(); err != nil {
				failed[step.part] = err
			}
		}
	})

	if len(failed) > 0 {
		p.recorder.RecordErasure("error")
		err := &ErasureError{UserID: userID, Failed: failed}
		p.logger.Error("erasure incomplete", "user_id", userID, "error", err)
		return err
	}

	p.recorder.RecordErasure("success")
	p.logger.Info("user memory erased", "user_id", userID, "conversations", deleted)
	p.events.user(ctx, userID, "", eventbus.EventMemoryErased, eventbus.MemoryErasedPayload{Conversations: deleted})
	return nil
}
