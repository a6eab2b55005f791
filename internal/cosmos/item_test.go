package cosmos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cosmongo/internal/cosmos"
	"github.com/roach88/cosmongo/internal/testutil"
)

func TestRead_Missing(t *testing.T) {
	cont := testutil.MemoryContainer(t, "orders")

	resp, err := cont.Item("nope", "nope").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Nil(t, resp.Resource)
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	cont := testutil.MemoryContainer(t, "orders")
	seed(t, cont, map[string]any{"id": "o1", "status": "new", "total": 10})

	resp, err := cont.Item("o1", nil).Replace(ctx, map[string]any{"status": "paid"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": "o1", "status": "paid"}, resp.Resource)

	read, err := cont.Item("o1", nil).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "o1", "status": "paid"}, read.Resource)
}

func TestReplace_Missing(t *testing.T) {
	cont := testutil.MemoryContainer(t, "orders")

	_, err := cont.Item("o1", nil).Replace(context.Background(), map[string]any{"status": "paid"})
	require.Error(t, err)
	assert.True(t, cosmos.IsNotFound(err))

	// Replace never inserts
	read, err := cont.Item("o1", nil).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 404, read.StatusCode)
}

func TestReplace_IDMismatch(t *testing.T) {
	cont := testutil.MemoryContainer(t, "orders")
	seed(t, cont, map[string]any{"id": "o1"})

	_, err := cont.Item("o1", nil).Replace(context.Background(), map[string]any{"id": "o2"})
	require.Error(t, err)
	assert.Equal(t, 400, cosmos.StatusCode(err))
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	cont := testutil.MemoryContainer(t, "orders")
	seed(t, cont, map[string]any{"id": "o1"})

	resp, err := cont.Item("o1", nil).Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)

	resp, err = cont.Item("o1", nil).Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestPatch_StatusAndVersion(t *testing.T) {
	ctx := context.Background()
	cont := testutil.MemoryContainer(t, "tickets")
	seed(t, cont, map[string]any{"id": "t1", "status": "open", "version": 1, "assignee": "kim"})

	resp, err := cont.Item("t1", "t1").Patch(ctx, []cosmos.PatchOperation{
		cosmos.Set("/status", "closed"),
		cosmos.Incr("/version", 1),
		cosmos.Remove("/assignee"),
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": "t1", "status": "closed", "version": int64(2)}, resp.Resource)

	read, err := cont.Item("t1", nil).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, resp.Resource, read.Resource)
}

func TestPatch_NestedPath(t *testing.T) {
	cont := testutil.MemoryContainer(t, "tickets")
	seed(t, cont, map[string]any{"id": "t1", "meta": map[string]any{"owner": "kim"}})

	resp, err := cont.Item("t1", nil).Patch(context.Background(), []cosmos.PatchOperation{
		{Op: cosmos.PatchAdd, Path: "/meta/reviewer", Value: "lee"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"owner": "kim", "reviewer": "lee"}, resp.Resource["meta"])
}

func TestPatch_Missing(t *testing.T) {
	cont := testutil.MemoryContainer(t, "tickets")

	_, err := cont.Item("t1", nil).Patch(context.Background(), []cosmos.PatchOperation{cosmos.Set("/status", "x")})
	require.Error(t, err)
	assert.True(t, cosmos.IsNotFound(err))
}

func TestPatch_Rejected(t *testing.T) {
	cont := testutil.MemoryContainer(t, "tickets")
	seed(t, cont, map[string]any{"id": "t1"})

	tests := []struct {
		name string
		ops  []cosmos.PatchOperation
	}{
		{"empty", nil},
		{"id", []cosmos.PatchOperation{cosmos.Set("/id", "t2")}},
		{"append", []cosmos.PatchOperation{{Op: cosmos.PatchAdd, Path: "/tags/-", Value: "x"}}},
		{"move", []cosmos.PatchOperation{{Op: cosmos.PatchMove, Path: "/a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cont.Item("t1", nil).Patch(context.Background(), tt.ops)
			require.Error(t, err)
			assert.Equal(t, 400, cosmos.StatusCode(err))
		})
	}
}

func TestBatch_Sequential(t *testing.T) {
	ctx := context.Background()
	cont := testutil.MemoryContainer(t, "orders")

	resp, err := cont.Items().Batch(ctx, []cosmos.BatchOperation{
		{Type: cosmos.OpCreate, Document: map[string]any{"id": "o1", "n": 1}},
		{Type: cosmos.OpUpsert, Document: map[string]any{"id": "o2", "n": 2}},
		{Type: cosmos.OpPatch, ID: "o1", Patch: []cosmos.PatchOperation{cosmos.Incr("/n", 10)}},
		{Type: cosmos.OpRead, ID: "o1"},
		{Type: cosmos.OpDelete, ID: "o2"},
	}, "pk")
	require.NoError(t, err)
	require.True(t, resp.Succeeded())

	var codes []int
	for _, r := range resp.Results {
		codes = append(codes, r.StatusCode)
	}
	assert.Equal(t, []int{201, 201, 200, 200, 204}, codes)
	assert.Equal(t, int64(11), resp.Results[3].Resource["n"])
}

func TestBatch_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	cont := testutil.MemoryContainer(t, "orders")
	seed(t, cont, map[string]any{"id": "o1"})

	resp, err := cont.Items().Batch(ctx, []cosmos.BatchOperation{
		{Type: cosmos.OpCreate, Document: map[string]any{"id": "o2"}},
		{Type: cosmos.OpCreate, Document: map[string]any{"id": "o1"}},
		{Type: cosmos.OpCreate, Document: map[string]any{"id": "o3"}},
	}, nil)
	require.Error(t, err)
	assert.True(t, cosmos.IsConflict(err))

	require.Len(t, resp.Results, 2)
	assert.Equal(t, 201, resp.Results[0].StatusCode)
	assert.Equal(t, 409, resp.Results[1].StatusCode)
	assert.False(t, resp.Succeeded())

	// Not atomic: o2 stays, o3 never ran
	read, err := cont.Item("o2", nil).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, read.StatusCode)
	read, err = cont.Item("o3", nil).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 404, read.StatusCode)
}

func TestBatch_NotFoundStops(t *testing.T) {
	cont := testutil.MemoryContainer(t, "orders")

	resp, err := cont.Items().Batch(context.Background(), []cosmos.BatchOperation{
		{Type: cosmos.OpRead, ID: "missing"},
		{Type: cosmos.OpCreate, Document: map[string]any{"id": "o1"}},
	}, nil)
	require.Error(t, err)
	assert.True(t, cosmos.IsNotFound(err))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 404, resp.Results[0].StatusCode)
}
