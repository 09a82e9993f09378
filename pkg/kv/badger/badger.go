// Package badger provides a Badger-backed kv.Cache.
package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/strainwise/convmem/pkg/kv"
)

const backend = "badger"

// Config holds configuration for Store.
type Config struct {
	Path              string
	InMemory          bool
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
}

// Store implements kv.Cache on top of Badger.
type Store struct {
	db    *badger.DB
	owned bool
}

// New opens a Badger database for the cache.
func New(cfg *Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = cfg.NumVersionsToKeep
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &kv.UnavailableError{Backend: backend, Op: "open", Cause: err}
	}
	return &Store{db: db, owned: true}, nil
}

// NewFromDB wraps an existing database. Close will not close db.
func NewFromDB(db *badger.DB) *Store {
	return &Store{db: db}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, &kv.UnavailableError{Backend: backend, Op: "get", Cause: err}
	}
	return value, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return &kv.UnavailableError{Backend: backend, Op: "set", Cause: err}
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return &kv.UnavailableError{Backend: backend, Op: "delete", Cause: err}
	}
	return nil
}

// Ping reports whether the database is open.
func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return &kv.UnavailableError{Backend: backend, Op: "ping", Cause: errors.New("database closed")}
	}
	return nil
}

// Close runs value log GC and closes the database if this store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	if !s.db.Opts().InMemory {
		_ = s.db.RunValueLogGC(0.5)
	}
	return s.db.Close()
}
