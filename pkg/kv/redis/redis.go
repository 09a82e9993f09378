// Package redis provides a Redis-backed kv.Cache for deployments where several
// service instances share one cache.
package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"
	"github.com/strainwise/convmem/pkg/kv"
)

const backend = "redis"

// Config holds Redis connection settings.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// Store implements kv.Cache with plain string keys.
type Store struct {
	client goredis.Cmdable
	closer func() error
	prefix string
}

// New dials Redis with cfg.
func New(cfg *Config) *Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{client: client, closer: client.Close, prefix: cfg.KeyPrefix}
}

// NewFromClient wraps an existing client. Close is a no-op.
func NewFromClient(client goredis.Cmdable, keyPrefix string) *Store {
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, &kv.UnavailableError{Backend: backend, Op: "get", Cause: err}
	}
	return value, nil
}

// Set stores value under key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return &kv.UnavailableError{Backend: backend, Op: "set", Cause: err}
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return &kv.UnavailableError{Backend: backend, Op: "delete", Cause: err}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &kv.UnavailableError{Backend: backend, Op: "ping", Cause: err}
	}
	return nil
}

// Close closes the client if this store created it.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
