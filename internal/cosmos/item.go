package cosmos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/roach88/cosmongo/internal/docstore"
)

// Item holds the single-item operations for one id.
type Item struct {
	container *Container
	id        string
}

// Read fetches the item. A missing item is a 404 response with a nil
// Resource and a nil error.
func (i *Item) Read(ctx context.Context) (*ItemResponse, error) {
	c := i.container
	slog.Debug("read", "container", c.name, "id", i.id)

	doc, err := c.coll.FindOne(ctx, idFilter(i.id))
	if errors.Is(err, docstore.ErrNotFound) {
		return &ItemResponse{StatusCode: http.StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s in %s: %w", i.id, c.name, err)
	}
	return &ItemResponse{Resource: fromStore(doc), StatusCode: http.StatusOK}, nil
}

// Replace overwrites the item with doc. It never inserts: a missing item
// fails with a 404 StatusError. An id in doc must match the item's id.
func (i *Item) Replace(ctx context.Context, doc map[string]any) (*ItemResponse, error) {
	c := i.container
	if id, ok := doc[sourceID]; ok && idString(id) != i.id {
		return nil, &StatusError{
			Code:      http.StatusBadRequest,
			Message:   fmt.Sprintf("document id %q does not match", idString(id)),
			Container: c.name,
			ID:        i.id,
		}
	}

	full := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		full[k] = v
	}
	full[sourceID] = i.id
	stored := toStore(full)

	slog.Debug("replace", "container", c.name, "id", i.id)
	res, err := c.coll.ReplaceOne(ctx, idFilter(i.id), stored)
	if err != nil {
		return nil, fmt.Errorf("replace %s in %s: %w", i.id, c.name, err)
	}
	if res.Matched == 0 {
		return nil, notFound(c.name, i.id)
	}
	return &ItemResponse{Resource: fromStore(stored), StatusCode: http.StatusOK}, nil
}

// Delete removes the item. It is idempotent: 204 when an item was removed,
// 404 when there was none, and no error in either case.
func (i *Item) Delete(ctx context.Context) (*ItemResponse, error) {
	c := i.container
	slog.Debug("delete", "container", c.name, "id", i.id)

	n, err := c.coll.DeleteOne(ctx, idFilter(i.id))
	if err != nil {
		return nil, fmt.Errorf("delete %s in %s: %w", i.id, c.name, err)
	}
	if n == 0 {
		return &ItemResponse{StatusCode: http.StatusNotFound}, nil
	}
	return &ItemResponse{StatusCode: http.StatusNoContent}, nil
}

// Patch applies ops in one atomic update and returns the updated item.
// A missing item fails with a 404 StatusError.
func (i *Item) Patch(ctx context.Context, ops []PatchOperation) (*ItemResponse, error) {
	c := i.container
	update, err := BuildUpdate(ops)
	if err != nil {
		return nil, &StatusError{Code: http.StatusBadRequest, Message: err.Error(), Container: c.name, ID: i.id}
	}

	slog.Debug("patch", "container", c.name, "id", i.id, "operations", len(ops))
	doc, err := c.coll.FindOneAndUpdate(ctx, idFilter(i.id), update)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, notFound(c.name, i.id)
	}
	if err != nil {
		return nil, fmt.Errorf("patch %s in %s: %w", i.id, c.name, err)
	}
	return &ItemResponse{Resource: fromStore(doc), StatusCode: http.StatusOK}, nil
}
