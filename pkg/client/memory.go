package client

import (
	"context"
	"net/http"

	"github.com/strainwise/convmem/pkg/memory"
)

// RecordRequest is one exchange to store.
type RecordRequest struct {
	Query    string            `json:"query"`
	Response string            `json:"response"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RecordResult says what happened to a recorded exchange.
type RecordResult struct {
	Outcome   memory.Outcome   `json:"outcome"`
	EntryID   string           `json:"entry_id,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	QueryType memory.QueryType `json:"query_type,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// NewSession is the result of a session rotation.
type NewSession struct {
	SessionID  string `json:"session_id"`
	FlushError string `json:"flush_error,omitempty"`
}

// Record stores one exchange for userID.
func (c *Client) Record(ctx context.Context, userID string, req RecordRequest) (*RecordResult, error) {
	var out RecordResult
	if _, err := c.do(ctx, http.MethodPost, userPath(userID, "conversations"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Feedback sets the feedback on a stored entry.
func (c *Client) Feedback(ctx context.Context, userID, entryID string, feedback memory.Feedback) error {
	body := map[string]memory.Feedback{"feedback": feedback}
	_, err := c.do(ctx, http.MethodPatch, userPath(userID, "conversations", entryID, "feedback"), body, nil)
	return err
}

// StartSession flushes the user's current session and starts a new one.
func (c *Client) StartSession(ctx context.Context, userID string) (*NewSession, error) {
	var out NewSession
	if _, err := c.do(ctx, http.MethodPost, userPath(userID, "sessions"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentSession returns the user's active session.
func (c *Client) CurrentSession(ctx context.Context, userID string) (*memory.SessionInfo, error) {
	var out memory.SessionInfo
	if _, err := c.do(ctx, http.MethodGet, userPath(userID, "sessions", "current"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Context returns the reconstructed context for userID.
func (c *Client) Context(ctx context.Context, userID string) (*memory.Context, error) {
	var out memory.Context
	if _, err := c.do(ctx, http.MethodGet, userPath(userID, "context"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the user's memory profile.
func (c *Client) Profile(ctx context.Context, userID string) (*memory.UserMemoryProfile, error) {
	var out memory.UserMemoryProfile
	if _, err := c.do(ctx, http.MethodGet, userPath(userID, "profile"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Settings returns the user's memory settings.
func (c *Client) Settings(ctx context.Context, userID string) (*memory.MemorySettings, error) {
	var out memory.MemorySettings
	if _, err := c.do(ctx, http.MethodGet, userPath(userID, "settings"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSettings applies patch and returns the resulting settings.
func (c *Client) UpdateSettings(ctx context.Context, userID string, patch memory.SettingsPatch) (*memory.MemorySettings, error) {
	var out memory.MemorySettings
	if _, err := c.do(ctx, http.MethodPatch, userPath(userID, "settings"), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export returns everything stored for userID, decrypted.
func (c *Client) Export(ctx context.Context, userID string) (*memory.Export, error) {
	var out memory.Export
	if _, err := c.do(ctx, http.MethodGet, userPath(userID, "export"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Erase deletes everything stored for userID. It is safe to repeat.
func (c *Client) Erase(ctx context.Context, userID string) error {
	_, err := c.do(ctx, http.MethodDelete, userPath(userID), nil, nil)
	return err
}

// Analytics returns the user's analytics summary.
func (c *Client) Analytics(ctx context.Context, userID string) (*memory.Summary, error) {
	var out memory.Summary
	if _, err := c.do(ctx, http.MethodGet, userPath(userID, "analytics"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the server's status document.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if _, err := c.do(ctx, http.MethodGet, []string{"status"}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
