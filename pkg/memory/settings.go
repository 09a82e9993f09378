package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/strainwise/convmem/pkg/kv"
)

var validate = validator.New()

// SettingsStore persists MemorySettings in the key-value cache.
type SettingsStore struct {
	cache    kv.Cache
	defaults MemorySettings
	logger   hubLogger
}

// NewSettingsStore creates a settings store returning defaults for users
// without stored settings.
func NewSettingsStore(cache kv.Cache, defaults MemorySettings) *SettingsStore {
	return &SettingsStore{cache: cache, defaults: defaults, logger: &nopHubLogger{}}
}

// Defaults returns the settings a new user starts with.
func (s *SettingsStore) Defaults() MemorySettings {
	return s.defaults
}

// Get returns the user's settings. Absent or unreadable settings yield the
// defaults without persisting them. On a cache failure the defaults are
// returned together with the error.
func (s *SettingsStore) Get(ctx context.Context, userID string) (MemorySettings, error) {
	data, err := s.cache.Get(ctx, kv.SettingsKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return s.defaults, fmt.Errorf("%w: read settings: %w", ErrStorageUnavailable, err)
	}

	settings := s.defaults
	if err := json.Unmarshal(data, &settings); err != nil {
		s.logger.Warn("stored settings unreadable, using defaults", "user_id", userID, "error", err)
		return s.defaults, nil
	}
	return settings, nil
}

// Put stores settings for userID.
func (s *SettingsStore) Put(ctx context.Context, userID string, settings MemorySettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.cache.Set(ctx, kv.SettingsKey(userID), data); err != nil {
		return fmt.Errorf("%w: write settings: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Update merges patch into the stored settings. Last writer wins.
func (s *SettingsStore) Update(ctx context.Context, userID string, patch SettingsPatch) (MemorySettings, error) {
	if err := validate.Struct(patch); err != nil {
		return MemorySettings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	current, err := s.Get(ctx, userID)
	if err != nil {
		return MemorySettings{}, err
	}
	updated := patch.Apply(current)
	if err := s.Put(ctx, userID, updated); err != nil {
		return MemorySettings{}, err
	}
	return updated, nil
}

// Delete removes stored settings. Deleting absent settings succeeds.
func (s *SettingsStore) Delete(ctx context.Context, userID string) error {
	if err := s.cache.Delete(ctx, kv.SettingsKey(userID)); err != nil {
		return fmt.Errorf("%w: delete settings: %w", ErrStorageUnavailable, err)
	}
	return nil
}
