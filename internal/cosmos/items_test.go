package cosmos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cosmongo/internal/cosmos"
	"github.com/roach88/cosmongo/internal/docstore"
	"github.com/roach88/cosmongo/internal/queryir"
	"github.com/roach88/cosmongo/internal/testutil"
)

func seed(t *testing.T, cont *cosmos.Container, docs ...map[string]any) {
	t.Helper()
	for _, doc := range docs {
		_, err := cont.Items().Create(context.Background(), doc)
		require.NoError(t, err)
	}
}

func ids(t *testing.T, resources []any) []string {
	t.Helper()
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		doc, ok := r.(map[string]any)
		require.True(t, ok, "resource %v is not a document", r)
		id, _ := doc["id"].(string)
		out = append(out, id)
	}
	return out
}

func accounts(t *testing.T) *cosmos.Container {
	cont := testutil.MemoryContainer(t, "accounts")
	seed(t, cont,
		map[string]any{"id": "a1", "status": "active", "tier": "gold", "balance": 120, "tags": []any{"vip", "eu"}},
		map[string]any{"id": "a2", "status": "active", "tier": "silver", "balance": 40},
		map[string]any{"id": "a3", "status": "closed", "tier": "gold", "balance": 0},
		map[string]any{"id": "a4", "status": "Active", "balance": 75, "tags": []any{"us"}},
	)
	return cont
}

func TestQuery_FilterSortPage(t *testing.T) {
	ctx := context.Background()
	cont := accounts(t)

	resp, err := cont.Items().Query(cosmos.QuerySpec{
		Query:      "SELECT * FROM c WHERE c.status = @status ORDER BY c.balance DESC",
		Parameters: []cosmos.Parameter{{Name: "@status", Value: "active"}},
	}).FetchAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "a2"}, ids(t, resp.Resources))
	assert.Zero(t, resp.RequestCharge)
	assert.False(t, resp.HasMoreResults)
	assert.Empty(t, resp.Diagnostics)

	resp, err = cont.Items().QueryString("SELECT * FROM c ORDER BY c.id OFFSET 1 LIMIT 2").FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a3"}, ids(t, resp.Resources))
}

func TestQuery_Functions(t *testing.T) {
	ctx := context.Background()
	cont := accounts(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"contains ignore case", "SELECT * FROM c WHERE CONTAINS(c.status, 'ACT', true)", []string{"a1", "a2", "a4"}},
		{"lower equality", "SELECT * FROM c WHERE LOWER(c.status) = 'active'", []string{"a1", "a2", "a4"}},
		{"array contains", "SELECT * FROM c WHERE ARRAY_CONTAINS(c.tags, 'vip')", []string{"a1"}},
		{"is defined", "SELECT * FROM c WHERE IS_DEFINED(c.tier)", []string{"a1", "a2", "a3"}},
		{"not defined", "SELECT * FROM c WHERE NOT IS_DEFINED(c.tier)", []string{"a4"}},
		{"range and", "SELECT * FROM c WHERE c.balance > 10 AND c.balance < 100", []string{"a2", "a4"}},
		{"grouped or", "SELECT * FROM c WHERE c.tier = 'gold' AND (c.balance > 100 OR c.status = 'closed')", []string{"a1", "a3"}},
		{"in list", "SELECT * FROM c WHERE c.id IN ('a2', 'a4')", []string{"a2", "a4"}},
		{"by id", "SELECT * FROM c WHERE c.id = 'a3'", []string{"a3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := cont.Items().QueryString(tt.query).FetchAll(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(t, resp.Resources))
		})
	}
}

func TestQuery_Projection(t *testing.T) {
	cont := accounts(t)

	resp, err := cont.Items().QueryString("SELECT c.id, c.tier FROM c WHERE c.id = 'a1'").FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Resources, 1)
	assert.Equal(t, map[string]any{"id": "a1", "tier": "gold"}, resp.Resources[0])

	resp, err = cont.Items().QueryString("SELECT c.tier FROM c WHERE c.id = 'a2'").FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Resources, 1)
	assert.Equal(t, map[string]any{"tier": "silver"}, resp.Resources[0])
}

func TestQuery_CountScalar(t *testing.T) {
	ctx := context.Background()
	cont := accounts(t)

	resp, err := cont.Items().QueryString("SELECT VALUE COUNT(1) FROM c WHERE c.tier = 'gold'").FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2)}, resp.Resources)
}

func TestQuery_CountEmptyIsZero(t *testing.T) {
	cont := testutil.MemoryContainer(t, "empty")

	resp, err := cont.Items().QueryString("SELECT VALUE COUNT(1) FROM c").FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0)}, resp.Resources)

	resp, err = accounts(t).Items().QueryString("SELECT VALUE COUNT(1) FROM c WHERE c.status = 'gone'").FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0)}, resp.Resources)
}

func TestQuery_ObjectAggregate(t *testing.T) {
	cont := accounts(t)

	resp, err := cont.Items().QueryString(
		"SELECT VALUE {n: COUNT(1), total: SUM(c.balance)} FROM c WHERE c.tier = 'gold'",
	).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Resources, 1)
	assert.Equal(t, map[string]any{"n": int64(2), "total": int64(120)}, resp.Resources[0])
}

func TestQuery_DegradedPredicateStillRuns(t *testing.T) {
	cont := accounts(t)

	resp, err := cont.Items().QueryString("SELECT * FROM c WHERE c.tier = 'gold' AND ST_DISTANCE(c.loc, c.home) < 5").FetchAll(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a1", "a3"}, ids(t, resp.Resources))
	require.NotEmpty(t, resp.Diagnostics)
	assert.Equal(t, queryir.DiagUnrecognizedPredicate, resp.Diagnostics[0].Code)
}

func TestReadAll(t *testing.T) {
	resp, err := accounts(t).Items().ReadAll().FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3", "a4"}, ids(t, resp.Resources))
}

func TestUpsert_InsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	cont := testutil.MemoryContainer(t, "orders")

	doc := map[string]any{"id": "o1", "status": "new", "_etag": "\"00\"", "_ts": 1700000000}

	resp, err := cont.Items().Upsert(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": "o1", "status": "new"}, resp.Resource)

	resp, err = cont.Items().Upsert(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	count, err := cont.Items().QueryString("SELECT VALUE COUNT(1) FROM c").FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, count.Resources)

	read, err := cont.Item("o1", "o1").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "o1", "status": "new"}, read.Resource)
}

func TestUpsert_MergesFields(t *testing.T) {
	ctx := context.Background()
	cont := testutil.MemoryContainer(t, "orders")

	_, err := cont.Items().Upsert(ctx, map[string]any{"id": "o1", "status": "new", "total": 10})
	require.NoError(t, err)
	_, err = cont.Items().Upsert(ctx, map[string]any{"id": "o1", "status": "paid"})
	require.NoError(t, err)

	read, err := cont.Item("o1", nil).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "o1", "status": "paid", "total": int64(10)}, read.Resource)
}

func TestUpsert_SynthesizesID(t *testing.T) {
	cont := testutil.MemoryContainer(t, "orders")

	resp, err := cont.Items().Upsert(context.Background(), map[string]any{"status": "new"})
	require.NoError(t, err)
	assert.Equal(t, "test-1", resp.Resource["id"])
}

func TestCreate_Conflict(t *testing.T) {
	ctx := context.Background()
	cont := testutil.MemoryContainer(t, "orders")

	_, err := cont.Items().Create(ctx, map[string]any{"id": "o1", "status": "first"})
	require.NoError(t, err)

	_, err = cont.Items().Create(ctx, map[string]any{"id": "o1", "status": "second"})
	require.Error(t, err)
	assert.True(t, cosmos.IsConflict(err))
	assert.ErrorIs(t, err, docstore.ErrConflict)
	assert.Equal(t, 409, cosmos.StatusCode(err))

	read, err := cont.Item("o1", nil).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", read.Resource["status"])
}

func TestCreate_SynthesizesID(t *testing.T) {
	cont := testutil.MemoryContainer(t, "orders", cosmos.WithIDGenerator(testutil.NewFixedIDGenerator("fixed-1")))

	resp, err := cont.Items().Create(context.Background(), map[string]any{"status": "new"})
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": "fixed-1", "status": "new"}, resp.Resource)
}

func TestContainer_Cached(t *testing.T) {
	ctx := context.Background()
	client := cosmos.NewClient(testutil.MemoryConnection(t))
	db := client.Database("app")

	first, err := db.Container(ctx, "orders")
	require.NoError(t, err)
	second, err := db.Container(ctx, "orders")
	require.NoError(t, err)
	other, err := client.Database("other").Container(ctx, "orders")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, "orders", first.ID())
	assert.Equal(t, "app", first.Database())
}

func TestContainer_ClosedConnection(t *testing.T) {
	ctx := context.Background()
	conn := testutil.MemoryConnection(t)
	client := cosmos.NewClient(conn)
	require.NoError(t, client.Close(ctx))

	_, err := client.Database("app").Container(ctx, "orders")
	assert.ErrorIs(t, err, cosmos.ErrClosed)
}
