package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/strainwise/convmem/pkg/eventbus"
	"github.com/strainwise/convmem/pkg/storage"
)

// Outcome says what happened to a recorded exchange.
type Outcome string

const (
	// OutcomeRecorded means the entry is durably stored.
	OutcomeRecorded Outcome = "recorded"
	// OutcomeBuffered means the store write failed; the entry is held in
	// the session buffer and retried on the next flush.
	OutcomeBuffered Outcome = "buffered"
	// OutcomeDisabled means memory is switched off for the user.
	OutcomeDisabled Outcome = "disabled"
	// OutcomeFailed means nothing was recorded, see Err.
	OutcomeFailed Outcome = "failed"
)

// RecordResult is returned by RecordConversation.
type RecordResult struct {
	Outcome Outcome
	// Entry is the plaintext entry, nil unless recorded or buffered.
	Entry *ConversationEntry
	Err   error
}

type bufferedEntry struct {
	entry     *ConversationEntry
	persisted bool
}

type session struct {
	mu        sync.Mutex
	id        string
	startedAt time.Time
	buffer    []*bufferedEntry
	// closed is set once the session has been dropped from the manager.
	closed bool
}

// pending counts entries not yet durably stored. Caller holds s.mu.
func (s *session) pending() int {
	n := 0
	for _, b := range s.buffer {
		if !b.persisted {
			n++
		}
	}
	return n
}

// SessionInfo describes a user's active session.
type SessionInfo struct {
	ID        string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Buffered  int       `json:"buffered"`
	Pending   int       `json:"pending"`
}

// SessionManager owns the active session of every user. Recording, flushing
// and rotation of one session are serialized by the session lock.
type SessionManager struct {
	conversations *ConversationStore
	profiles      *ProfileStore
	settings      *SettingsStore
	logger        hubLogger
	recorder      Recorder
	events        emitter
	now           func() time.Time
	newSessionID  func() string

	mu       sync.RWMutex
	sessions map[string]*session

	autosave *intervalLoop
}

// NewSessionManager creates a session manager flushing buffers every
// autosaveInterval once started.
func NewSessionManager(conversations *ConversationStore, profiles *ProfileStore, settings *SettingsStore, autosaveInterval time.Duration, logger hubLogger) *SessionManager {
	if logger == nil {
		logger = &nopHubLogger{}
	}
	return &SessionManager{
		conversations: conversations,
		profiles:      profiles,
		settings:      settings,
		logger:        logger,
		recorder:      nopRecorder{},
		events:        emitter{logger: logger},
		now:           time.Now,
		newSessionID:  uuid.NewString,
		sessions:      make(map[string]*session),
		autosave:      newIntervalLoop(autosaveInterval),
	}
}

// Record stores one exchange for userID in the current session.
func (m *SessionManager) Record(ctx context.Context, userID, query, response string, metadata map[string]string) RecordResult {
	if !validUserID(userID) {
		return m.result(RecordResult{Outcome: OutcomeFailed, Err: ErrInvalidUserID})
	}
	settings, err := m.settings.Get(ctx, userID)
	if err != nil {
		return m.result(RecordResult{Outcome: OutcomeFailed, Err: err})
	}
	if !settings.Enabled {
		return m.result(RecordResult{Outcome: OutcomeDisabled})
	}

	sess := m.acquire(userID)
	entry := &ConversationEntry{
		UserID:      userID,
		SessionID:   sess.id,
		Timestamp:   m.now().UTC(),
		Query:       query,
		Response:    response,
		IsEncrypted: settings.EncryptSensitiveData,
		Metadata:    metadata,
	}
	m.conversations.Classify(entry)
	buffered := &bufferedEntry{entry: entry}
	sess.buffer = append(sess.buffer, buffered)

	writeErr := m.conversations.Append(ctx, entry)
	buffered.persisted = writeErr == nil
	result := RecordResult{Outcome: OutcomeRecorded, Entry: entry.clone()}
	sessionID := sess.id

	if writeErr != nil {
		m.logger.Warn("conversation write failed, entry buffered",
			"user_id", userID, "session_id", sessionID, "error", writeErr)
		result.Outcome = OutcomeBuffered
		result.Err = writeErr
	}

	_, profileErr := m.profiles.Apply(ctx, userID, entry)
	sess.mu.Unlock()

	if profileErr != nil {
		m.recorder.RecordProfileUpdate("error")
		m.logger.Warn("profile update dropped", "user_id", userID, "session_id", sessionID, "error", profileErr)
	} else {
		m.recorder.RecordProfileUpdate("success")
	}

	m.events.user(ctx, userID, sessionID, eventbus.EventConversationRecorded, eventbus.ConversationRecordedPayload{
		EntryID:   entry.ID,
		Outcome:   string(result.Outcome),
		QueryType: string(entry.QueryType),
		Entities:  entry.MentionedEntities,
	})
	return m.result(result)
}

// Flush persists the buffered entries of userID's session without rotating
// it. It returns the number of entries written.
func (m *SessionManager) Flush(ctx context.Context, userID string) (int, error) {
	sess, ok := m.lookup(userID)
	if !ok {
		return 0, nil
	}
	sess.mu.Lock()
	flushed, err := m.flushLocked(ctx, userID, sess)
	pending := sess.pending()
	sessionID := sess.id
	sess.mu.Unlock()

	m.events.user(ctx, userID, sessionID, eventbus.EventSessionFlushed, eventbus.SessionFlushedPayload{
		Flushed: flushed,
		Pending: pending,
	})
	return flushed, err
}

// StartNewSession flushes the current session and replaces its ID. Entries
// that still fail to persist move to the new session's buffer under their
// original session ID. The new session ID is returned even when the flush
// failed.
func (m *SessionManager) StartNewSession(ctx context.Context, userID string) (string, error) {
	if !validUserID(userID) {
		return "", ErrInvalidUserID
	}

	sess := m.acquire(userID)
	flushed, flushErr := m.flushLocked(ctx, userID, sess)
	previous := sess.id
	sess.id = m.newSessionID()
	sess.startedAt = m.now().UTC()
	current := sess.id
	pending := sess.pending()
	sess.mu.Unlock()

	m.recorder.RecordSessionRotation()
	m.logger.Debug("session rotated", "user_id", userID, "previous_session_id", previous, "session_id", current)

	m.events.user(ctx, userID, previous, eventbus.EventSessionFlushed, eventbus.SessionFlushedPayload{
		Flushed: flushed,
		Pending: pending,
		Rotated: true,
	})
	m.events.user(ctx, userID, current, eventbus.EventSessionRotated, eventbus.SessionRotatedPayload{
		PreviousSessionID: previous,
		SessionID:         current,
	})
	return current, flushErr
}

// Current returns the active session of userID, if any.
func (m *SessionManager) Current(userID string) (SessionInfo, bool) {
	sess, ok := m.lookup(userID)
	if !ok {
		return SessionInfo{}, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return SessionInfo{
		ID:        sess.id,
		StartedAt: sess.startedAt,
		Buffered:  len(sess.buffer),
		Pending:   sess.pending(),
	}, true
}

// Exclusive runs fn while holding userID's session lock, so no record,
// flush or rotation for the user runs concurrently with it. Afterwards the
// session and its buffer are dropped without writing anything.
func (m *SessionManager) Exclusive(userID string, fn func()) {
	sess := m.acquire(userID)
	defer sess.mu.Unlock()

	fn()

	sess.closed = true
	sess.buffer = nil
	m.mu.Lock()
	if m.sessions[userID] == sess {
		delete(m.sessions, userID)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	m.recorder.SetActiveSessions(n)
}

// FlushAll flushes every session whose owner has autosave enabled.
func (m *SessionManager) FlushAll(ctx context.Context) error {
	var errs []error
	for _, userID := range m.users() {
		if err := ctx.Err(); err != nil {
			return err
		}
		settings, err := m.settings.Get(ctx, userID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !settings.AutoSessionSave {
			continue
		}
		sess, ok := m.lookup(userID)
		if !ok {
			continue
		}
		sess.mu.Lock()
		empty := len(sess.buffer) == 0
		sess.mu.Unlock()
		if empty {
			continue
		}
		if _, err := m.Flush(ctx, userID); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

// Start begins periodic autosave.
func (m *SessionManager) Start(ctx context.Context) {
	m.autosave.start(ctx, m.FlushAll, func(err error) {
		m.logger.Warn("autosave incomplete", "error", err)
	})
}

// Close stops autosave and makes one best-effort flush of every session.
// Flush failures are logged, not returned.
func (m *SessionManager) Close(ctx context.Context) {
	m.autosave.stop()

	for _, userID := range m.users() {
		if _, err := m.Flush(ctx, userID); err != nil {
			m.logger.Warn("final session flush failed", "user_id", userID, "error", err)
		}
	}

	m.mu.Lock()
	m.sessions = make(map[string]*session)
	m.mu.Unlock()
	m.recorder.SetActiveSessions(0)
}

// flushLocked writes unpersisted entries and drops persisted ones from the
// buffer. Caller holds sess.mu.
func (m *SessionManager) flushLocked(ctx context.Context, userID string, sess *session) (int, error) {
	var (
		flushed int
		errs    []error
		kept    []*bufferedEntry
	)
	for _, b := range sess.buffer {
		if !b.persisted {
			err := m.conversations.Append(ctx, b.entry)
			var dup *storage.DuplicateKeyError
			if err != nil && !errors.As(err, &dup) {
				errs = append(errs, err)
				kept = append(kept, b)
				continue
			}
			b.persisted = true
			flushed++
		}
	}
	sess.buffer = kept

	err := errors.Join(errs...)
	status := "success"
	if err != nil {
		status = "error"
		m.logger.Warn("session flush incomplete",
			"user_id", userID, "session_id", sess.id, "pending", len(kept), "error", err)
	}
	m.recorder.RecordSessionFlush(status, flushed)
	return flushed, err
}

// session returns the user's session, creating it on first use.
func (m *SessionManager) session(userID string) *session {
	if sess, ok := m.lookup(userID); ok {
		return sess
	}

	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &session{id: m.newSessionID(), startedAt: m.now().UTC()}
		m.sessions[userID] = sess
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		m.recorder.SetActiveSessions(n)
	}
	return sess
}

// acquire returns the user's live session with its lock held.
func (m *SessionManager) acquire(userID string) *session {
	for {
		sess := m.session(userID)
		sess.mu.Lock()
		if !sess.closed {
			return sess
		}
		sess.mu.Unlock()
	}
}

func (m *SessionManager) lookup(userID string) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	return sess, ok
}

func (m *SessionManager) users() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]string, 0, len(m.sessions))
	for userID := range m.sessions {
		users = append(users, userID)
	}
	return users
}

func (m *SessionManager) result(r RecordResult) RecordResult {
	queryType := ""
	if r.Entry != nil {
		queryType = string(r.Entry.QueryType)
	}
	m.recorder.RecordConversation(string(r.Outcome), queryType)
	return r
}
