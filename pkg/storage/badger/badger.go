// Package badger provides a Badger-based implementation of storage.DocumentStore.
package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/strainwise/convmem/pkg/storage"
)

// Config holds configuration for BadgerStorage.
type Config struct {
	Path              string
	InMemory          bool
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
}

// BadgerStorage implements storage.DocumentStore using Badger.
//
// Documents live under doc:{collection}:{userID}:{id}. Because IDs are ULIDs
// derived from the document timestamp, a reverse prefix scan yields newest
// first. A secondary key idx:{collection}:{id} maps back to the owner.
type BadgerStorage struct {
	db     *badger.DB
	config *Config
}

// NewBadgerStorage creates a new Badger storage instance.
func NewBadgerStorage(config *Config) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	if config.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = config.NumVersionsToKeep
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	return &BadgerStorage{
		db:     db,
		config: config,
	}, nil
}

// Key generation functions
func userPrefix(collection, userID string) []byte {
	return []byte(fmt.Sprintf("doc:%s:%s:", collection, userID))
}

func docKey(collection, userID, id string) []byte {
	return append(userPrefix(collection, userID), id...)
}

func indexKey(collection, id string) []byte {
	return []byte(fmt.Sprintf("idx:%s:%s", collection, id))
}

// ownedBy reports whether key belongs directly under prefix, excluding users
// whose ID extends this one with a colon.
func ownedBy(prefix, key []byte) bool {
	return bytes.IndexByte(key[len(prefix):], ':') < 0
}

// Serialization helpers
func serialize(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &storage.SerializationError{
			Operation: "marshal",
			Cause:     err,
		}
	}
	return data, nil
}

func deserialize(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &storage.SerializationError{
			Operation: "unmarshal",
			Cause:     err,
		}
	}
	return nil
}

// Insert stores doc and its owner index.
func (b *BadgerStorage) Insert(ctx context.Context, collection string, doc *storage.Document) (string, error) {
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now()
	}
	if doc.ID == "" {
		doc.ID = storage.NewID(doc.Timestamp)
	}

	data, err := serialize(doc)
	if err != nil {
		return "", err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(indexKey(collection, doc.ID)); err == nil {
			return &storage.DuplicateKeyError{EntityType: collection, ID: doc.ID}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(docKey(collection, doc.UserID, doc.ID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(collection, doc.ID), []byte(doc.UserID))
	})
	if err != nil {
		var dup *storage.DuplicateKeyError
		if errors.As(err, &dup) {
			return "", err
		}
		return "", &storage.StorageUnavailableError{Cause: err}
	}
	return doc.ID, nil
}

// Get resolves the owner index and loads the document.
func (b *BadgerStorage) Get(ctx context.Context, collection, id string) (*storage.Document, error) {
	var d storage.Document

	err := b.db.View(func(txn *badger.Txn) error {
		owner, err := txn.Get(indexKey(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &storage.NotFoundError{EntityType: collection, ID: id}
		}
		if err != nil {
			return &storage.StorageUnavailableError{Cause: err}
		}
		userID, err := owner.ValueCopy(nil)
		if err != nil {
			return &storage.StorageUnavailableError{Cause: err}
		}

		item, err := txn.Get(docKey(collection, string(userID), id))
		if err != nil {
			return &storage.StorageUnavailableError{Cause: err}
		}
		return item.Value(func(val []byte) error {
			return deserialize(val, &d)
		})
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Find scans the user's prefix in reverse.
func (b *BadgerStorage) Find(ctx context.Context, collection string, query storage.Query) ([]*storage.Document, error) {
	var docs []*storage.Document

	err := b.db.View(func(txn *badger.Txn) error {
		prefix := userPrefix(collection, query.UserID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(bytes.Clone(prefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !ownedBy(prefix, it.Item().Key()) {
				continue
			}
			var d storage.Document
			if err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &d)
			}); err != nil {
				return err
			}
			docs = append(docs, &d)
			if query.Limit > 0 && len(docs) >= query.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		var serr *storage.SerializationError
		if errors.As(err, &serr) {
			return nil, err
		}
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	return docs, nil
}

// Update replaces a document's data in place.
func (b *BadgerStorage) Update(ctx context.Context, collection, id string, data json.RawMessage) error {
	return b.db.Update(func(txn *badger.Txn) error {
		owner, err := txn.Get(indexKey(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &storage.NotFoundError{EntityType: collection, ID: id}
		}
		if err != nil {
			return &storage.StorageUnavailableError{Cause: err}
		}
		userID, err := owner.ValueCopy(nil)
		if err != nil {
			return &storage.StorageUnavailableError{Cause: err}
		}

		key := docKey(collection, string(userID), id)
		item, err := txn.Get(key)
		if err != nil {
			return &storage.StorageUnavailableError{Cause: err}
		}

		var d storage.Document
		if err := item.Value(func(val []byte) error {
			return deserialize(val, &d)
		}); err != nil {
			return err
		}
		d.Data = data

		encoded, err := serialize(&d)
		if err != nil {
			return err
		}
		return txn.Set(key, encoded)
	})
}

// DeleteByUser removes every document under the user's prefix.
func (b *BadgerStorage) DeleteByUser(ctx context.Context, collection, userID string) (int, error) {
	return b.deleteWhere(ctx, collection, userID, func(*storage.Document) bool { return true })
}

// DeleteOlderThan removes the user's documents older than cutoff.
func (b *BadgerStorage) DeleteOlderThan(ctx context.Context, collection, userID string, cutoff time.Time) (int, error) {
	return b.deleteWhere(ctx, collection, userID, func(d *storage.Document) bool {
		return d.Timestamp.Before(cutoff)
	})
}

// Count returns how many documents a user has.
func (b *BadgerStorage) Count(ctx context.Context, collection, userID string) (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := userPrefix(collection, userID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if ownedBy(prefix, it.Item().Key()) {
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, &storage.StorageUnavailableError{Cause: err}
	}
	return n, nil
}

// Users lists the owners of documents in collection. The owner is the key
// segment between the collection prefix and the last colon, since IDs never
// contain one.
func (b *BadgerStorage) Users(ctx context.Context, collection string) ([]string, error) {
	seen := make(map[string]struct{})
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("doc:%s:", collection))
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rest := it.Item().Key()[len(prefix):]
			if i := bytes.LastIndexByte(rest, ':'); i >= 0 {
				seen[string(rest[:i])] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

// Ping reports whether the database is open.
func (b *BadgerStorage) Ping(ctx context.Context) error {
	if b.db.IsClosed() {
		return &storage.StorageUnavailableError{Cause: errors.New("badger: database closed")}
	}
	return nil
}

// Close closes the Badger database.
func (b *BadgerStorage) Close() error {
	return b.db.Close()
}

// deleteWhere collects matching keys in a read transaction, then removes
// them with a write batch so large histories do not exceed txn limits.
func (b *BadgerStorage) deleteWhere(ctx context.Context, collection, userID string, match func(*storage.Document) bool) (int, error) {
	var ids []string

	err := b.db.View(func(txn *badger.Txn) error {
		prefix := userPrefix(collection, userID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !ownedBy(prefix, it.Item().Key()) {
				continue
			}
			var d storage.Document
			if err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &d)
			}); err != nil {
				return err
			}
			if match(&d) {
				ids = append(ids, d.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, &storage.StorageUnavailableError{Cause: err}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(docKey(collection, userID, id)); err != nil {
			return 0, &storage.StorageUnavailableError{Cause: err}
		}
		if err := wb.Delete(indexKey(collection, id)); err != nil {
			return 0, &storage.StorageUnavailableError{Cause: err}
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, &storage.StorageUnavailableError{Cause: err}
	}
	return len(ids), nil
}
