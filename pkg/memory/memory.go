// Package memory records user/assistant exchanges, infers a per-user
// preference profile from them and reconstructs a bounded personalization
// context, under per-user privacy and retention settings.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Sentinel errors for the memory system.
var (
	ErrInvalidUserID      = errors.New("memory: invalid user ID")
	ErrInvalidEntryID     = errors.New("memory: invalid entry ID")
	ErrInvalidFeedback    = errors.New("memory: invalid feedback value")
	ErrInvalidSettings    = errors.New("memory: invalid settings patch")
	ErrStorageUnavailable = errors.New("memory: storage unavailable")
	ErrNotFound           = errors.New("memory: entry not found")
	ErrNoCipher           = errors.New("memory: encryption requested but no cipher configured")
)

// Hub is the entry point used by transports.
type Hub interface {
	// RecordConversation stores one exchange for userID. It never fails the
	// caller's exchange; the outcome says what happened.
	RecordConversation(ctx context.Context, userID, query, response string, metadata map[string]string) RecordResult

	// StartNewSession flushes the current session and rotates its ID.
	StartNewSession(ctx context.Context, userID string) (string, error)

	// AmendFeedback sets the feedback on an existing entry.
	AmendFeedback(ctx context.Context, userID, entryID string, feedback Feedback) error

	// BuildContext reconstructs the personalization context for userID.
	BuildContext(ctx context.Context, userID string) (*Context, error)

	// Profile returns the user's inferred profile.
	Profile(ctx context.Context, userID string) (*UserMemoryProfile, error)

	GetSettings(ctx context.Context, userID string) (MemorySettings, error)
	UpdateSettings(ctx context.Context, userID string, patch SettingsPatch) (MemorySettings, error)

	// ExportAll returns every stored datum for userID in plaintext.
	ExportAll(ctx context.Context, userID string) (*Export, error)

	// EraseAll deletes every stored datum for userID. Safe to retry.
	EraseAll(ctx context.Context, userID string) error

	// Summarize returns analytics rollups for userID.
	Summarize(ctx context.Context, userID string) (*Summary, error)

	// Start begins autosave and, when configured, retention sweeping.
	Start(ctx context.Context) error

	// Stop halts background work and flushes buffered sessions.
	Stop(ctx context.Context) error
}

// Cipher encrypts free-text fields and opaque blobs. *codec.Codec satisfies it.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, bool)
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// hubLogger is the minimal logger interface used by the memory components.
type hubLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// nopHubLogger is a no-op logger.
type nopHubLogger struct{}

func (n *nopHubLogger) Debug(msg string, args ...any) {}
func (n *nopHubLogger) Info(msg string, args ...any)  {}
func (n *nopHubLogger) Warn(msg string, args ...any)  {}
func (n *nopHubLogger) Error(msg string, args ...any) {}

// Recorder receives operational measurements. *metrics.Manager satisfies it.
type Recorder interface {
	RecordConversation(outcome, queryType string)
	RecordSessionFlush(status string, entries int)
	RecordSessionRotation()
	SetActiveSessions(n int)
	RecordContextBuild(status string, duration time.Duration)
	RecordExport(status string, entries int)
	RecordErasure(status string)
	RecordRetentionSweep(status string, deleted int)
	RecordProfileUpdate(status string)
}

type nopRecorder struct{}

func (nopRecorder) RecordConversation(string, string)        {}
func (nopRecorder) RecordSessionFlush(string, int)           {}
func (nopRecorder) RecordSessionRotation()                   {}
func (nopRecorder) SetActiveSessions(int)                    {}
func (nopRecorder) RecordContextBuild(string, time.Duration) {}
func (nopRecorder) RecordExport(string, int)                 {}
func (nopRecorder) RecordErasure(string)                     {}
func (nopRecorder) RecordRetentionSweep(string, int)         {}
func (nopRecorder) RecordProfileUpdate(string)               {}

// ErasureError reports which parts of an erasure failed. Parts that
// succeeded stay deleted, so the call can simply be repeated.
type ErasureError struct {
	UserID string
	Failed map[string]error
}

func (e *ErasureError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for part := range e.Failed {
		parts = append(parts, part)
	}
	sort.Strings(parts)

	msgs := make([]string, 0, len(parts))
	for _, part := range parts {
		msgs = append(msgs, fmt.Sprintf("%s: %v", part, e.Failed[part]))
	}
	return fmt.Sprintf("memory: erase %s incomplete (%s)", e.UserID, strings.Join(msgs, "; "))
}

// Unwrap exposes every underlying failure to errors.Is and errors.As.
func (e *ErasureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

func validUserID(userID string) bool {
	return strings.TrimSpace(userID) != ""
}
