// Package storage provides the document store abstraction used for
// conversation history.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DocumentStore persists user-scoped JSON documents grouped into collections.
// Document IDs sort in insertion-time order.
type DocumentStore interface {
	// Insert stores doc and returns its ID. An empty doc.ID is assigned.
	Insert(ctx context.Context, collection string, doc *Document) (string, error)

	// Get returns a single document by ID.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Find returns a user's documents newest first (timestamp, then ID).
	// A non-positive limit returns everything.
	Find(ctx context.Context, collection string, query Query) ([]*Document, error)

	// Update replaces the data of an existing document.
	Update(ctx context.Context, collection, id string, data json.RawMessage) error

	// DeleteByUser removes every document owned by userID.
	DeleteByUser(ctx context.Context, collection, userID string) (int, error)

	// DeleteOlderThan removes userID's documents with a timestamp before cutoff.
	DeleteOlderThan(ctx context.Context, collection, userID string, cutoff time.Time) (int, error)

	Count(ctx context.Context, collection, userID string) (int, error)

	// Users lists every user owning at least one document, sorted.
	Users(ctx context.Context, collection string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// Document is a stored record.
type Document struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Query selects documents for a user.
type Query struct {
	UserID string
	Limit  int
}

// NotFoundError indicates that the requested entity was not found.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.EntityType, e.ID)
}

// DuplicateKeyError indicates that an entity with the given ID already exists.
type DuplicateKeyError struct {
	EntityType string
	ID         string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.EntityType, e.ID)
}

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Cause
}

// SerializationError indicates a failure in data serialization/deserialization.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// CopyDocument returns a deep copy of d.
func CopyDocument(d *Document) *Document {
	c := *d
	c.Data = append(json.RawMessage(nil), d.Data...)
	return &c
}
