package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/strainwise/convmem/pkg/classifier"
	"github.com/strainwise/convmem/pkg/storage"
)

// ConversationsCollection is the document collection holding entries.
const ConversationsCollection = "conversations"

// ConversationStore is the durable, append-mostly history of entries.
type ConversationStore struct {
	docs       storage.DocumentStore
	cipher     Cipher
	classifier *classifier.Classifier
	logger     hubLogger
}

// NewConversationStore wraps a document store. cipher may be nil when no
// entry is ever written encrypted.
func NewConversationStore(docs storage.DocumentStore, cipher Cipher, cls *classifier.Classifier, logger hubLogger) *ConversationStore {
	if cls == nil {
		cls = classifier.New(nil)
	}
	if logger == nil {
		logger = &nopHubLogger{}
	}
	return &ConversationStore{docs: docs, cipher: cipher, classifier: cls, logger: logger}
}

// Classify fills the derived fields of entry that are still empty.
func (s *ConversationStore) Classify(entry *ConversationEntry) {
	if entry.QueryType == "" {
		entry.QueryType = s.classifier.Classify(entry.Query)
	}
	if entry.MentionedEntities == nil {
		entry.MentionedEntities = orEmpty(s.classifier.ExtractEntities(entry.Response))
	}
	if entry.RequestedAttributes == nil {
		entry.RequestedAttributes = orEmpty(s.classifier.ExtractAttributes(entry.Query))
	}
}

// Append persists entry and sets its ID. When entry.IsEncrypted is set the
// stored query and response are ciphertext; entry itself keeps plaintext.
func (s *ConversationStore) Append(ctx context.Context, entry *ConversationEntry) error {
	if !validUserID(entry.UserID) {
		return ErrInvalidUserID
	}
	s.Classify(entry)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = storage.NewID(entry.Timestamp)
	}

	stored := entry.clone()
	stored.DecryptFailed = false
	if stored.IsEncrypted {
		if s.cipher == nil {
			return ErrNoCipher
		}
		var err error
		if stored.Query, err = s.cipher.Encrypt(entry.Query); err != nil {
			return fmt.Errorf("encrypt query: %w", err)
		}
		if stored.Response, err = s.cipher.Encrypt(entry.Response); err != nil {
			return fmt.Errorf("encrypt response: %w", err)
		}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return &storage.SerializationError{Operation: "marshal entry", Cause: err}
	}
	_, err = s.docs.Insert(ctx, ConversationsCollection, &storage.Document{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Timestamp: entry.Timestamp,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("%w: append entry: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// ReadRecent returns up to n of the user's most recent entries, newest first,
// decrypted. A non-positive n returns the whole history.
func (s *ConversationStore) ReadRecent(ctx context.Context, userID string, n int) ([]*ConversationEntry, error) {
	docs, err := s.docs.Find(ctx, ConversationsCollection, storage.Query{UserID: userID, Limit: n})
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %w", ErrStorageUnavailable, err)
	}

	entries := make([]*ConversationEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := s.decode(doc)
		if err != nil {
			s.logger.Warn("skipping unreadable conversation entry", "user_id", userID, "id", doc.ID, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReadAll returns the full history, newest first.
func (s *ConversationStore) ReadAll(ctx context.Context, userID string) ([]*ConversationEntry, error) {
	return s.ReadRecent(ctx, userID, 0)
}

// AmendFeedback sets the feedback of an existing entry owned by userID.
// No other field of the stored record changes.
func (s *ConversationStore) AmendFeedback(ctx context.Context, userID, entryID string, feedback Feedback) error {
	if !feedback.Valid() {
		return ErrInvalidFeedback
	}
	if entryID == "" {
		return ErrInvalidEntryID
	}

	doc, err := s.docs.Get(ctx, ConversationsCollection, entryID)
	var notFound *storage.NotFoundError
	if errors.As(err, &notFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: read entry: %w", ErrStorageUnavailable, err)
	}
	if doc.UserID != userID {
		return ErrNotFound
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return &storage.SerializationError{Operation: "unmarshal entry", Cause: err}
	}
	raw, err := json.Marshal(feedback)
	if err != nil {
		return &storage.SerializationError{Operation: "marshal feedback", Cause: err}
	}
	fields["user_feedback"] = raw

	data, err := json.Marshal(fields)
	if err != nil {
		return &storage.SerializationError{Operation: "marshal entry", Cause: err}
	}
	if err := s.docs.Update(ctx, ConversationsCollection, entryID, data); err != nil {
		if errors.As(err, &notFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: update entry: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// DeleteAll removes the user's whole history.
func (s *ConversationStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	n, err := s.docs.DeleteByUser(ctx, ConversationsCollection, userID)
	if err != nil {
		return n, fmt.Errorf("%w: delete history: %w", ErrStorageUnavailable, err)
	}
	return n, nil
}

// DeleteOlderThan removes entries timestamped before cutoff.
func (s *ConversationStore) DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	n, err := s.docs.DeleteOlderThan(ctx, ConversationsCollection, userID, cutoff)
	if err != nil {
		return n, fmt.Errorf("%w: expire history: %w", ErrStorageUnavailable, err)
	}
	return n, nil
}

// Count returns the number of stored entries for userID.
func (s *ConversationStore) Count(ctx context.Context, userID string) (int, error) {
	n, err := s.docs.Count(ctx, ConversationsCollection, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count history: %w", ErrStorageUnavailable, err)
	}
	return n, nil
}

// Users lists every user with stored history.
func (s *ConversationStore) Users(ctx context.Context) ([]string, error) {
	users, err := s.docs.Users(ctx, ConversationsCollection)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %w", ErrStorageUnavailable, err)
	}
	return users, nil
}

func (s *ConversationStore) decode(doc *storage.Document) (*ConversationEntry, error) {
	var entry ConversationEntry
	if err := json.Unmarshal(doc.Data, &entry); err != nil {
		return nil, err
	}
	if entry.ID == "" {
		entry.ID = doc.ID
	}
	entry.MentionedEntities = orEmpty(entry.MentionedEntities)
	entry.RequestedAttributes = orEmpty(entry.RequestedAttributes)

	if !entry.IsEncrypted {
		return &entry, nil
	}
	if s.cipher == nil {
		entry.DecryptFailed = true
		return &entry, nil
	}
	query, okQuery := s.cipher.Decrypt(entry.Query)
	response, okResponse := s.cipher.Decrypt(entry.Response)
	entry.Query, entry.Response = query, response
	entry.DecryptFailed = !okQuery || !okResponse
	return &entry, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
