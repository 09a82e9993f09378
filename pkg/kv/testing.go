package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// CacheTestSuite runs behavioural checks against any Cache implementation.
type CacheTestSuite struct {
	NewCache func(t *testing.T) Cache
}

// RunAllTests runs every case in the suite.
func (s *CacheTestSuite) RunAllTests(t *testing.T) {
	t.Run("SetGet", s.TestSetGet)
	t.Run("Overwrite", s.TestOverwrite)
	t.Run("GetMissing", s.TestGetMissing)
	t.Run("DeleteIdempotent", s.TestDeleteIdempotent)
	t.Run("Namespaces", s.TestNamespaces)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
}

// TestSetGet checks a value survives a round trip.
func (s *CacheTestSuite) TestSetGet(t *testing.T) {
	c := s.NewCache(t)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, ProfileKey("u1"), []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := c.Get(ctx, ProfileKey("u1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("expected %q, got %q", `{"a":1}`, got)
	}
}

// TestOverwrite checks the last Set wins.
func (s *CacheTestSuite) TestOverwrite(t *testing.T) {
	c := s.NewCache(t)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("one"))
	_ = c.Set(ctx, "k", []byte("two"))
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("expected two, got %q", got)
	}
}

// TestGetMissing checks absent keys map to ErrNotFound.
func (s *CacheTestSuite) TestGetMissing(t *testing.T) {
	c := s.NewCache(t)
	defer c.Close()

	_, err := c.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestDeleteIdempotent checks deleting twice is not an error.
func (s *CacheTestSuite) TestDeleteIdempotent(t *testing.T) {
	c := s.NewCache(t)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"))
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

// TestNamespaces checks that profile and settings keys of one user do not
// collide.
func (s *CacheTestSuite) TestNamespaces(t *testing.T) {
	c := s.NewCache(t)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, SettingsKey("u1"), []byte("settings")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set(ctx, ProfileKey("u1"), []byte("profile")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Delete(ctx, ProfileKey("u1")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := c.Get(ctx, SettingsKey("u1"))
	if err != nil || string(got) != "settings" {
		t.Errorf("expected settings to survive, got %q (%v)", got, err)
	}
	if _, err := c.Get(ctx, ProfileKey("u1")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted profile, got %v", err)
	}
}

// TestConcurrentAccess writes distinct keys from several goroutines.
func (s *CacheTestSuite) TestConcurrentAccess(t *testing.T) {
	c := s.NewCache(t)
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := ProfileKey(fmt.Sprintf("user-%d", i))
			if err := c.Set(ctx, key, []byte("x")); err != nil {
				t.Errorf("Set %s failed: %v", key, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		key := ProfileKey(fmt.Sprintf("user-%d", i))
		if got, err := c.Get(ctx, key); err != nil || string(got) != "x" {
			t.Errorf("Get %s: got %q (%v)", key, got, err)
		}
	}
}
