package cosmos

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// OperationType names a batch operation.
type OperationType string

const (
	OpCreate  OperationType = "Create"
	OpUpsert  OperationType = "Upsert"
	OpReplace OperationType = "Replace"
	OpDelete  OperationType = "Delete"
	OpRead    OperationType = "Read"
	OpPatch   OperationType = "Patch"
)

// BatchOperation is one step of a batch. Document is used by Create,
// Upsert and Replace; ID by Replace, Delete, Read and Patch; Patch by
// Patch.
type BatchOperation struct {
	Type     OperationType    `json:"operationType"`
	ID       string           `json:"id,omitempty"`
	Document map[string]any   `json:"resourceBody,omitempty"`
	Patch    []PatchOperation `json:"patchOperations,omitempty"`
}

// Batch runs ops one after another. The first operation that fails (an
// error, or a non-2xx status such as a 404 read or delete) stops the
// batch; the response then holds the results up to and including the
// failing one and the error describes it.
//
// Batches are not atomic: operations that completed before a failure
// stay applied.
func (it *Items) Batch(ctx context.Context, ops []BatchOperation, partitionKey any) (*BatchResponse, error) {
	c := it.container
	resp := &BatchResponse{Results: make([]OperationResult, 0, len(ops))}

	slog.Debug("batch", "container", c.name, "operations", len(ops))
	for i, op := range ops {
		res, err := it.runOperation(ctx, op, partitionKey)
		result := OperationResult{Operation: op.Type, ID: op.ID, StatusCode: StatusCode(err)}
		if result.ID == "" {
			result.ID = idString(op.Document[sourceID])
		}
		if res != nil {
			result.StatusCode = res.StatusCode
			result.Resource = res.Resource
			if id, ok := res.Resource[sourceID].(string); ok {
				result.ID = id
			}
		}
		resp.Results = append(resp.Results, result)

		if err == nil && result.StatusCode >= http.StatusBadRequest {
			err = &StatusError{Code: result.StatusCode, Message: "operation failed", Container: c.name, ID: result.ID}
		}
		if err != nil {
			slog.Debug("batch stopped", "container", c.name, "index", i, "error", err)
			return resp, fmt.Errorf("batch operation %d (%s): %w", i, op.Type, err)
		}
	}
	return resp, nil
}

func (it *Items) runOperation(ctx context.Context, op BatchOperation, partitionKey any) (*ItemResponse, error) {
	c := it.container
	switch op.Type {
	case OpCreate:
		return it.Create(ctx, op.Document)
	case OpUpsert:
		return it.Upsert(ctx, op.Document)
	case OpReplace:
		return c.Item(op.ID, partitionKey).Replace(ctx, op.Document)
	case OpDelete:
		return c.Item(op.ID, partitionKey).Delete(ctx)
	case OpRead:
		return c.Item(op.ID, partitionKey).Read(ctx)
	case OpPatch:
		return c.Item(op.ID, partitionKey).Patch(ctx, op.Patch)
	}
	return nil, &StatusError{Code: http.StatusBadRequest, Message: fmt.Sprintf("unknown operation type %q", op.Type)}
}
