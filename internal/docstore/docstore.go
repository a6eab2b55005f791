// Package docstore defines the narrow document-store surface the Cosmos
// adapter needs: find, aggregate and single-document writes over one
// collection. MongoDB (internal/mongostore) and SQLite (internal/store)
// both implement it.
//
// Documents cross this boundary as map[string]any holding only
// string, int64, float64, bool, nil, []any and map[string]any values.
// Filters, updates, sorts and projections are MongoDB documents (bson.D).
package docstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrNotFound is returned by single-document reads and writes when no
	// document matches.
	ErrNotFound = errors.New("document not found")

	// ErrConflict marks a write rejected because the identifier is
	// already taken. Backends wrap the driver error with it, so both
	// errors.Is(err, ErrConflict) and errors.As on the driver's type work.
	ErrConflict = errors.New("document already exists")
)

// Backend opens collections and owns the underlying connection.
type Backend interface {
	// Collection returns a handle to db/name, creating it when missing.
	Collection(ctx context.Context, db, name string) (Collection, error)

	// Close releases the connection. Handles become unusable.
	Close(ctx context.Context) error
}

// Collection is one named set of documents.
type Collection interface {
	Name() string

	Find(ctx context.Context, filter bson.D, opts FindOptions) ([]map[string]any, error)
	Aggregate(ctx context.Context, pipeline []bson.D) ([]map[string]any, error)

	// FindOne returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, filter bson.D) (map[string]any, error)

	// InsertOne returns an error wrapping ErrConflict on a duplicate _id.
	InsertOne(ctx context.Context, doc map[string]any) error

	UpdateOne(ctx context.Context, filter, update bson.D, upsert bool) (UpdateResult, error)

	// ReplaceOne overwrites the first match, never inserting.
	ReplaceOne(ctx context.Context, filter bson.D, doc map[string]any) (UpdateResult, error)

	DeleteOne(ctx context.Context, filter bson.D) (int64, error)

	// FindOneAndUpdate applies update atomically and returns the
	// post-update document, or ErrNotFound.
	FindOneAndUpdate(ctx context.Context, filter, update bson.D) (map[string]any, error)
}

// FindOptions shapes a Find. Zero values mean "not set".
type FindOptions struct {
	Projection bson.D
	Sort       bson.D
	Skip       int64
	Limit      int64
}

// UpdateResult reports what an update or replace did.
type UpdateResult struct {
	Matched  int64
	Modified int64
	// UpsertedID is set when an upsert inserted a new document.
	UpsertedID any
}

// Inserted reports whether an upsert created a new document.
func (r UpdateResult) Inserted() bool {
	return r.UpsertedID != nil
}
