// Package memory provides an in-memory implementation of storage.DocumentStore.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/strainwise/convmem/pkg/storage"
)

// MemoryStorage implements storage.DocumentStore using in-memory maps.
type MemoryStorage struct {
	mu          sync.RWMutex
	collections map[string]map[string]*storage.Document // collection -> id -> document
}

// NewMemoryStorage creates a new in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		collections: make(map[string]map[string]*storage.Document),
	}
}

// Insert stores a copy of doc.
func (m *MemoryStorage) Insert(ctx context.Context, collection string, doc *storage.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now()
	}
	if doc.ID == "" {
		doc.ID = storage.NewID(doc.Timestamp)
	}

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]*storage.Document)
		m.collections[collection] = docs
	}
	if _, exists := docs[doc.ID]; exists {
		return "", &storage.DuplicateKeyError{EntityType: collection, ID: doc.ID}
	}

	docs[doc.ID] = storage.CopyDocument(doc)
	return doc.ID, nil
}

// Get returns a copy of one document.
func (m *MemoryStorage) Get(ctx context.Context, collection, id string) (*storage.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return nil, &storage.NotFoundError{EntityType: collection, ID: id}
	}
	return storage.CopyDocument(d), nil
}

// Find returns copies of the user's documents newest first.
func (m *MemoryStorage) Find(ctx context.Context, collection string, query storage.Query) ([]*storage.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*storage.Document
	for _, d := range m.collections[collection] {
		if d.UserID == query.UserID {
			result = append(result, storage.CopyDocument(d))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID > result[j].ID
	})

	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

// Update replaces the data of an existing document.
func (m *MemoryStorage) Update(ctx context.Context, collection, id string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return &storage.NotFoundError{EntityType: collection, ID: id}
	}
	d.Data = append(json.RawMessage(nil), data...)
	return nil
}

// DeleteByUser removes a user's documents.
func (m *MemoryStorage) DeleteByUser(ctx context.Context, collection, userID string) (int, error) {
	return m.deleteWhere(collection, func(d *storage.Document) bool {
		return d.UserID == userID
	}), nil
}

// DeleteOlderThan removes a user's documents older than cutoff.
func (m *MemoryStorage) DeleteOlderThan(ctx context.Context, collection, userID string, cutoff time.Time) (int, error) {
	return m.deleteWhere(collection, func(d *storage.Document) bool {
		return d.UserID == userID && d.Timestamp.Before(cutoff)
	}), nil
}

// Count returns how many documents a user has.
func (m *MemoryStorage) Count(ctx context.Context, collection, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, d := range m.collections[collection] {
		if d.UserID == userID {
			n++
		}
	}
	return n, nil
}

// Users lists the owners of documents in collection.
func (m *MemoryStorage) Users(ctx context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, d := range m.collections[collection] {
		seen[d.UserID] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

// Ping always succeeds.
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) deleteWhere(collection string, match func(*storage.Document) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, d := range m.collections[collection] {
		if match(d) {
			delete(m.collections[collection], id)
			n++
		}
	}
	return n
}
