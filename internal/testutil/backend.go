package testutil

import (
	"context"
	"testing"

	"github.com/roach88/cosmongo/internal/cosmos"
	"github.com/roach88/cosmongo/internal/docstore"
	"github.com/roach88/cosmongo/internal/store"
)

// MemoryConnection returns a Connection on a private in-memory SQLite
// store. The connection is closed when the test ends.
func MemoryConnection(t testing.TB) *cosmos.Connection {
	t.Helper()
	conn := cosmos.NewConnection(func(ctx context.Context) (docstore.Backend, error) {
		return store.Open(":memory:")
	})
	t.Cleanup(func() {
		if err := conn.Close(context.Background()); err != nil {
			t.Errorf("close connection: %v", err)
		}
	})
	return conn
}

// MemoryContainer returns container name of database "test" on a fresh
// in-memory store. Documents written without an id get test-1, test-2, ...
func MemoryContainer(t testing.TB, name string, opts ...cosmos.Option) *cosmos.Container {
	t.Helper()
	opts = append([]cosmos.Option{cosmos.WithIDGenerator(NewSequenceIDGenerator("test"))}, opts...)
	client := cosmos.NewClient(MemoryConnection(t), opts...)
	cont, err := client.Database("test").Container(context.Background(), name)
	if err != nil {
		t.Fatalf("Container(%q) failed: %v", name, err)
	}
	return cont
}
