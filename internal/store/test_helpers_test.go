package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/cosmongo/internal/docstore"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

// createTestCollection opens app/<name> on a fresh store and inserts docs
// in order.
func createTestCollection(t *testing.T, name string, docs ...map[string]any) docstore.Collection {
	t.Helper()
	ctx := context.Background()
	coll, err := createTestStore(t).Collection(ctx, "app", name)
	if err != nil {
		t.Fatalf("Collection() failed: %v", err)
	}
	for _, doc := range docs {
		if err := coll.InsertOne(ctx, doc); err != nil {
			t.Fatalf("InsertOne(%v) failed: %v", doc["_id"], err)
		}
	}
	return coll
}
