// Package kv defines the local key-value cache used for per-user profile and
// settings persistence.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// Key namespaces.
const (
	ProfilePrefix  = "profile:"
	SettingsPrefix = "settings:"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Cache is a byte-oriented key-value store. Delete of a missing key is not an
// error. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}

// UnavailableError wraps a backend failure.
type UnavailableError struct {
	Backend string
	Op      string
	Cause   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("kv %s: %s: %v", e.Backend, e.Op, e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// ProfileKey returns the cache key for a user's memory profile.
func ProfileKey(userID string) string {
	return ProfilePrefix + userID
}

// SettingsKey returns the cache key for a user's memory settings.
func SettingsKey(userID string) string {
	return SettingsPrefix + userID
}
