// Package mongostore implements docstore.Backend on MongoDB with the
// official v2 driver.
package mongostore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/roach88/cosmongo/internal/docmatch"
	"github.com/roach88/cosmongo/internal/docstore"
)

// codeNamespaceExists is the server error returned when creating a
// collection that another client created first.
const codeNamespaceExists = 48

// Options configures the client pool.
type Options struct {
	URI            string
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
}

// Backend is a connected MongoDB client.
type Backend struct {
	client *mongo.Client
}

var _ docstore.Backend = (*Backend)(nil)

// Open connects and pings the primary. The client is disconnected again
// when the ping fails.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("mongostore: URI is required")
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	slog.Debug("mongo connected",
		"max_pool_size", opts.MaxPoolSize,
		"min_pool_size", opts.MinPoolSize,
	)
	return &Backend{client: client}, nil
}

// Close disconnects the client.
func (b *Backend) Close(ctx context.Context) error {
	if err := b.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongostore: disconnect: %w", err)
	}
	return nil
}

// Collection returns db/name, creating the collection when it does not
// exist yet. A concurrent creation by another client is not an error.
func (b *Backend) Collection(ctx context.Context, db, name string) (docstore.Collection, error) {
	database := b.client.Database(db)

	names, err := database.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return nil, fmt.Errorf("mongostore: list collections of %s: %w", db, err)
	}
	if !slices.Contains(names, name) {
		err := database.CreateCollection(ctx, name)
		var cmdErr mongo.CommandError
		if err != nil && !(errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists) {
			return nil, fmt.Errorf("mongostore: create %s/%s: %w", db, name, err)
		}
		if err == nil {
			slog.Info("collection created", "database", db, "collection", name)
		}
	}

	return &collection{coll: database.Collection(name)}, nil
}

// collection adapts *mongo.Collection to docstore.Collection.
type collection struct {
	coll *mongo.Collection
}

var _ docstore.Collection = (*collection)(nil)

func (c *collection) Name() string {
	return c.coll.Name()
}

func (c *collection) Find(ctx context.Context, filter bson.D, opts docstore.FindOptions) ([]map[string]any, error) {
	findOpts := options.Find()
	if opts.Projection != nil {
		findOpts.SetProjection(opts.Projection)
	}
	if opts.Sort != nil {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := c.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.Name(), err)
	}
	return c.drain(ctx, cursor)
}

func (c *collection) Aggregate(ctx context.Context, pipeline []bson.D) ([]map[string]any, error) {
	cursor, err := c.coll.Aggregate(ctx, mongo.Pipeline(pipeline))
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", c.Name(), err)
	}
	return c.drain(ctx, cursor)
}

func (c *collection) drain(ctx context.Context, cursor *mongo.Cursor) ([]map[string]any, error) {
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", c.Name(), err)
	}
	out := make([]map[string]any, len(raw))
	for i, doc := range raw {
		out[i] = normalizeDoc(doc)
	}
	return out, nil
}

func (c *collection) FindOne(ctx context.Context, filter bson.D) (map[string]any, error) {
	var raw bson.M
	err := c.coll.FindOne(ctx, filter).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("find one in %s: %w", c.Name(), docstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", c.Name(), err)
	}
	return normalizeDoc(raw), nil
}

func (c *collection) InsertOne(ctx context.Context, doc map[string]any) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert into %s: %w: %w", c.Name(), docstore.ErrConflict, err)
		}
		return fmt.Errorf("insert into %s: %w", c.Name(), err)
	}
	return nil
}

func (c *collection) UpdateOne(ctx context.Context, filter, update bson.D, upsert bool) (docstore.UpdateResult, error) {
	res, err := c.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(upsert))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return docstore.UpdateResult{}, fmt.Errorf("update %s: %w: %w", c.Name(), docstore.ErrConflict, err)
		}
		return docstore.UpdateResult{}, fmt.Errorf("update %s: %w", c.Name(), err)
	}
	return docstore.UpdateResult{
		Matched:    res.MatchedCount,
		Modified:   res.ModifiedCount,
		UpsertedID: normalizeValue(res.UpsertedID),
	}, nil
}

func (c *collection) ReplaceOne(ctx context.Context, filter bson.D, doc map[string]any) (docstore.UpdateResult, error) {
	res, err := c.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return docstore.UpdateResult{}, fmt.Errorf("replace in %s: %w", c.Name(), err)
	}
	return docstore.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter bson.D) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.Name(), err)
	}
	return res.DeletedCount, nil
}

func (c *collection) FindOneAndUpdate(ctx context.Context, filter, update bson.D) (map[string]any, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var raw bson.M
	err := c.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("find and update in %s: %w", c.Name(), docstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find and update in %s: %w", c.Name(), err)
	}
	return normalizeDoc(raw), nil
}

// normalizeDoc converts a decoded document to the plain value set the
// rest of the module works with.
func normalizeDoc(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

// normalizeValue maps BSON-specific types to plain values: ObjectIDs to
// hex, dates to RFC 3339 text, decimals to their string form and binary
// data to base64. Containers are converted recursively.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	case bson.Decimal128:
		return val.String()
	case bson.Binary:
		return base64.StdEncoding.EncodeToString(val.Data)
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.M:
		return normalizeDoc(val)
	case map[string]any:
		return normalizeDoc(bson.M(val))
	case bson.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}
		return out
	case []any:
		return normalizeValue(bson.A(val))
	}
	return docmatch.Plain(v)
}
