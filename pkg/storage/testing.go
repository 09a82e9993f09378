package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// StorageTestSuite defines a test suite that can be run against any DocumentStore implementation.
type StorageTestSuite struct {
	NewStorage func(t *testing.T) DocumentStore
}

const suiteCollection = "conversations"

// RunAllTests runs all storage tests against the provided storage implementation.
func (s *StorageTestSuite) RunAllTests(t *testing.T) {
	t.Run("InsertFind", s.TestInsertFind)
	t.Run("NewestFirstWithLimit", s.TestNewestFirstWithLimit)
	t.Run("UserIsolation", s.TestUserIsolation)
	t.Run("Get", s.TestGet)
	t.Run("Update", s.TestUpdate)
	t.Run("UpdateNotFound", s.TestUpdateNotFound)
	t.Run("DeleteByUser", s.TestDeleteByUser)
	t.Run("DeleteOlderThan", s.TestDeleteOlderThan)
	t.Run("Users", s.TestUsers)
	t.Run("DuplicateID", s.TestDuplicateID)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
}

func insertAt(t *testing.T, store DocumentStore, userID string, ts time.Time, body string) string {
	t.Helper()
	id, err := store.Insert(context.Background(), suiteCollection, &Document{
		UserID:    userID,
		Timestamp: ts,
		Data:      json.RawMessage(body),
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return id
}

// TestInsertFind tests that an inserted document is returned intact.
func (s *StorageTestSuite) TestInsertFind(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := insertAt(t, store, "u1", ts, `{"query":"hello"}`)
	if id == "" {
		t.Fatal("expected generated ID")
	}

	docs, err := store.Find(context.Background(), suiteCollection, Query{UserID: "u1"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].ID != id {
		t.Errorf("expected ID %s, got %s", id, docs[0].ID)
	}
	if !docs[0].Timestamp.Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, docs[0].Timestamp)
	}
	var body map[string]string
	if err := json.Unmarshal(docs[0].Data, &body); err != nil || body["query"] != "hello" {
		t.Errorf("unexpected data %s (%v)", docs[0].Data, err)
	}
}

// TestNewestFirstWithLimit tests ordering and the limit.
func (s *StorageTestSuite) TestNewestFirstWithLimit(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, insertAt(t, store, "u1", base.Add(time.Duration(i)*time.Minute), `{}`))
	}

	docs, err := store.Find(context.Background(), suiteCollection, Query{UserID: "u1", Limit: 3})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	for i, want := range []string{ids[4], ids[3], ids[2]} {
		if docs[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, docs[i].ID)
		}
	}

	n, err := store.Count(context.Background(), suiteCollection, "u1")
	if err != nil || n != 5 {
		t.Errorf("expected count 5, got %d (%v)", n, err)
	}
}

// TestUserIsolation tests that users never see each other's documents.
func (s *StorageTestSuite) TestUserIsolation(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	now := time.Now()
	insertAt(t, store, "u1", now, `{}`)
	insertAt(t, store, "u1:x", now, `{}`)
	insertAt(t, store, "u2", now, `{}`)

	docs, err := store.Find(context.Background(), suiteCollection, Query{UserID: "u1"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 1 || docs[0].UserID != "u1" {
		t.Errorf("expected only u1's document, got %+v", docs)
	}
}

// TestGet tests lookup by ID.
func (s *StorageTestSuite) TestGet(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	id := insertAt(t, store, "u1", time.Now(), `{"v":1}`)
	doc, err := store.Get(ctx, suiteCollection, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc.UserID != "u1" || string(doc.Data) != `{"v":1}` {
		t.Errorf("unexpected document %+v", doc)
	}

	_, err = store.Get(ctx, suiteCollection, "missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

// TestUpdate tests replacing a document's data.
func (s *StorageTestSuite) TestUpdate(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	id := insertAt(t, store, "u1", time.Now(), `{"v":1}`)
	if err := store.Update(ctx, suiteCollection, id, json.RawMessage(`{"v":2}`)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	docs, _ := store.Find(ctx, suiteCollection, Query{UserID: "u1"})
	if len(docs) != 1 || string(docs[0].Data) != `{"v":2}` {
		t.Errorf("expected updated data, got %+v", docs)
	}
}

// TestUpdateNotFound tests that updating an unknown ID reports NotFoundError.
func (s *StorageTestSuite) TestUpdateNotFound(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	err := store.Update(context.Background(), suiteCollection, "missing", json.RawMessage(`{}`))
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

// TestDeleteByUser tests removal and idempotence.
func (s *StorageTestSuite) TestDeleteByUser(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	insertAt(t, store, "u1", time.Now(), `{}`)
	insertAt(t, store, "u1", time.Now().Add(time.Second), `{}`)
	insertAt(t, store, "u2", time.Now(), `{}`)

	n, err := store.DeleteByUser(ctx, suiteCollection, "u1")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deleted, got %d (%v)", n, err)
	}
	n, err = store.DeleteByUser(ctx, suiteCollection, "u1")
	if err != nil || n != 0 {
		t.Errorf("expected idempotent delete, got %d (%v)", n, err)
	}
	if c, _ := store.Count(ctx, suiteCollection, "u2"); c != 1 {
		t.Errorf("expected u2 untouched, got %d", c)
	}
}

// TestDeleteOlderThan tests the retention cutoff.
func (s *StorageTestSuite) TestDeleteOlderThan(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	insertAt(t, store, "u1", now.Add(-100*24*time.Hour), `{}`)
	insertAt(t, store, "u1", now.Add(-91*24*time.Hour), `{}`)
	keep := insertAt(t, store, "u1", now.Add(-time.Hour), `{}`)

	n, err := store.DeleteOlderThan(ctx, suiteCollection, "u1", now.Add(-90*24*time.Hour))
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deleted, got %d (%v)", n, err)
	}
	docs, _ := store.Find(ctx, suiteCollection, Query{UserID: "u1"})
	if len(docs) != 1 || docs[0].ID != keep {
		t.Errorf("expected only recent document, got %+v", docs)
	}
}

// TestUsers tests owner listing, including IDs that contain a colon.
func (s *StorageTestSuite) TestUsers(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	users, err := store.Users(ctx, suiteCollection)
	if err != nil || len(users) != 0 {
		t.Fatalf("expected no users, got %v (%v)", users, err)
	}

	insertAt(t, store, "u2", time.Now(), `{}`)
	insertAt(t, store, "u1", time.Now(), `{}`)
	insertAt(t, store, "u1", time.Now().Add(time.Second), `{}`)
	insertAt(t, store, "u1:work", time.Now(), `{}`)

	users, err = store.Users(ctx, suiteCollection)
	if err != nil {
		t.Fatalf("Users failed: %v", err)
	}
	want := []string{"u1", "u1:work", "u2"}
	if fmt.Sprint(users) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, users)
	}

	if _, err := store.DeleteByUser(ctx, suiteCollection, "u2"); err != nil {
		t.Fatalf("DeleteByUser failed: %v", err)
	}
	users, _ = store.Users(ctx, suiteCollection)
	if fmt.Sprint(users) != fmt.Sprint(want[:2]) {
		t.Errorf("expected %v after delete, got %v", want[:2], users)
	}
}

// TestDuplicateID tests that explicit IDs cannot be reused.
func (s *StorageTestSuite) TestDuplicateID(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	id := NewID(time.Now())
	doc := &Document{ID: id, UserID: "u1", Timestamp: time.Now(), Data: json.RawMessage(`{}`)}
	if _, err := store.Insert(ctx, suiteCollection, doc); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	_, err := store.Insert(ctx, suiteCollection, &Document{ID: id, UserID: "u1", Timestamp: time.Now(), Data: json.RawMessage(`{}`)})
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Errorf("expected DuplicateKeyError, got %v", err)
	}
}

// TestConcurrentAccess tests concurrent inserts across users.
func (s *StorageTestSuite) TestConcurrentAccess(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := store.Insert(ctx, suiteCollection, &Document{
					UserID: fmt.Sprintf("user-%d", i%2),
					Data:   json.RawMessage(`{}`),
				})
				if err != nil {
					t.Errorf("Insert failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, u := range []string{"user-0", "user-1"} {
		n, err := store.Count(ctx, suiteCollection, u)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		total += n
	}
	if total != 50 {
		t.Errorf("expected 50 documents, got %d", total)
	}
}
