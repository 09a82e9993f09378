// Package sqlite provides a SQLite implementation of storage.DocumentStore.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/strainwise/convmem/pkg/storage"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	ts         INTEGER NOT NULL,
	data       BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_user_ts ON documents(collection, user_id, ts DESC, id DESC);
`

// Config holds configuration for Store.
type Config struct {
	// Path is the database file. ":memory:" opens a private in-memory database.
	Path string
}

// Store implements storage.DocumentStore on a single SQLite table.
type Store struct {
	db *sql.DB
}

// New opens or creates the database at cfg.Path.
func New(cfg *Config) (*Store, error) {
	inMemory := cfg.Path == "" || cfg.Path == ":memory:"

	dsn := ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, &storage.StorageUnavailableError{Cause: fmt.Errorf("create db dir: %w", err)}
		}
		dsn = cfg.Path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: fmt.Errorf("open db: %w", err)}
	}
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &storage.StorageUnavailableError{Cause: fmt.Errorf("migrate: %w", err)}
	}

	return &Store{db: db}, nil
}

// Insert stores doc.
func (s *Store) Insert(ctx context.Context, collection string, doc *storage.Document) (string, error) {
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now()
	}
	if doc.ID == "" {
		doc.ID = storage.NewID(doc.Timestamp)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, user_id, ts, data) VALUES (?, ?, ?, ?, ?)`,
		collection, doc.ID, doc.UserID, doc.Timestamp.UnixNano(), []byte(doc.Data))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return "", &storage.DuplicateKeyError{EntityType: collection, ID: doc.ID}
		}
		return "", &storage.StorageUnavailableError{Cause: err}
	}
	return doc.ID, nil
}

// Get returns one document by ID.
func (s *Store) Get(ctx context.Context, collection, id string) (*storage.Document, error) {
	var (
		d  storage.Document
		ts int64
		b  []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, ts, data FROM documents WHERE collection = ? AND id = ?`, collection, id).
		Scan(&d.ID, &d.UserID, &ts, &b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &storage.NotFoundError{EntityType: collection, ID: id}
	}
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	d.Timestamp = time.Unix(0, ts).UTC()
	d.Data = json.RawMessage(b)
	return &d, nil
}

// Find returns the user's documents newest first.
func (s *Store) Find(ctx context.Context, collection string, query storage.Query) ([]*storage.Document, error) {
	q := `SELECT id, user_id, ts, data FROM documents WHERE collection = ? AND user_id = ? ORDER BY ts DESC, id DESC`
	args := []any{collection, query.UserID}
	if query.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	defer rows.Close()

	var docs []*storage.Document
	for rows.Next() {
		var (
			d  storage.Document
			ts int64
			b  []byte
		)
		if err := rows.Scan(&d.ID, &d.UserID, &ts, &b); err != nil {
			return nil, &storage.StorageUnavailableError{Cause: err}
		}
		d.Timestamp = time.Unix(0, ts).UTC()
		d.Data = json.RawMessage(b)
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	return docs, nil
}

// Update replaces a document's data.
func (s *Store) Update(ctx context.Context, collection, id string, data json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = ? WHERE collection = ? AND id = ?`, []byte(data), collection, id)
	if err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	if n == 0 {
		return &storage.NotFoundError{EntityType: collection, ID: id}
	}
	return nil
}

// DeleteByUser removes all of a user's documents.
func (s *Store) DeleteByUser(ctx context.Context, collection, userID string) (int, error) {
	return s.exec(ctx, `DELETE FROM documents WHERE collection = ? AND user_id = ?`, collection, userID)
}

// DeleteOlderThan removes a user's documents older than cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, collection, userID string, cutoff time.Time) (int, error) {
	return s.exec(ctx, `DELETE FROM documents WHERE collection = ? AND user_id = ? AND ts < ?`,
		collection, userID, cutoff.UnixNano())
}

// Count returns how many documents a user has.
func (s *Store) Count(ctx context.Context, collection, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ? AND user_id = ?`, collection, userID).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, &storage.StorageUnavailableError{Cause: err}
	}
	return n, nil
}

// Users lists the owners of documents in collection.
func (s *Store) Users(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM documents WHERE collection = ? ORDER BY user_id`, collection)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, &storage.StorageUnavailableError{Cause: err}
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	return users, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, &storage.StorageUnavailableError{Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &storage.StorageUnavailableError{Cause: err}
	}
	return int(n), nil
}
