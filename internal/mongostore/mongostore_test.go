package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/cosmongo/internal/docstore"
)

func TestNormalizeValue(t *testing.T) {
	oid := bson.NewObjectID()
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	got := normalizeDoc(bson.M{
		"_id":   oid,
		"at":    bson.NewDateTimeFromTime(when),
		"n32":   int32(7),
		"n64":   int64(8),
		"f":     1.5,
		"bin":   bson.Binary{Data: []byte("hi")},
		"inner": bson.D{{Key: "a", Value: bson.A{int32(1), bson.D{{Key: "b", Value: "c"}}}}},
		"nil":   nil,
	})

	assert.Equal(t, map[string]any{
		"_id":   oid.Hex(),
		"at":    "2024-05-01T12:00:00Z",
		"n32":   int64(7),
		"n64":   int64(8),
		"f":     1.5,
		"bin":   "aGk=",
		"inner": map[string]any{"a": []any{int64(1), map[string]any{"b": "c"}}},
		"nil":   nil,
	}, got)
}

func TestOpen_RequiresURI(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.ErrorContains(t, err, "URI is required")
}

// TestBackend_RoundTrip runs against a live server when
// COSMONGO_TEST_MONGO_URI is set.
func TestBackend_RoundTrip(t *testing.T) {
	uri := os.Getenv("COSMONGO_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("COSMONGO_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := Open(ctx, Options{URI: uri, MaxPoolSize: 4, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer b.Close(ctx)

	db := "cosmongo_test_" + uuid.NewString()[:8]
	defer b.client.Database(db).Drop(ctx)

	coll, err := b.Collection(ctx, db, "tickets")
	require.NoError(t, err)
	_, err = b.Collection(ctx, db, "tickets")
	require.NoError(t, err, "second open of an existing collection")

	require.NoError(t, coll.InsertOne(ctx, map[string]any{"_id": "x", "n": int64(1)}))
	err = coll.InsertOne(ctx, map[string]any{"_id": "x"})
	assert.ErrorIs(t, err, docstore.ErrConflict)

	doc, err := coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: "x"}}, bson.D{{Key: "$inc", Value: bson.D{{Key: "n", Value: 1}}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc["n"])

	_, err = coll.FindOne(ctx, bson.D{{Key: "_id", Value: "missing"}})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
