package harness

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/roach88/cosmongo/internal/cosmos"
	"github.com/roach88/cosmongo/internal/docstore"
	"github.com/roach88/cosmongo/internal/store"
	"github.com/roach88/cosmongo/internal/testutil"
)

// Error classes recorded in TraceEvent.Error and accepted by Expect.Error.
const (
	errConflict   = "conflict"
	errNotFound   = "not_found"
	errBadRequest = "bad_request"
	errOther      = "error"
	errAny        = "any"
)

// DefaultContainer is used when a scenario names no container.
const DefaultContainer = "items"

// Harness executes scenario steps against one container.
type Harness struct {
	container *cosmos.Container
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, and
// synthesized ids come from a sequence, so the same scenario always
// produces the same trace.
//
// Execution flow:
// 1. Create fresh in-memory database and container
// 2. Create the seed documents
// 3. Execute steps, checking expect clauses
// 4. Capture the final container state and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	conn := cosmos.NewConnection(func(ctx context.Context) (docstore.Backend, error) {
		return store.Open(":memory:")
	})
	defer conn.Close(ctx)

	client := cosmos.NewClient(conn, cosmos.WithIDGenerator(testutil.NewSequenceIDGenerator(scenario.IDPrefix)))
	name := scenario.Container
	if name == "" {
		name = DefaultContainer
	}
	cont, err := client.Database("harness").Container(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open container: %w", err)
	}

	for i, doc := range scenario.Seed {
		if _, err := cont.Items().Create(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to seed document %d: %w", i, err)
		}
	}

	h := &Harness{container: cont}
	result := NewResult()
	for _, step := range scenario.Steps {
		h.executeStep(ctx, step, result)
	}

	state, err := cont.Items().ReadAll().FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	for _, r := range state.Resources {
		if doc, ok := r.(map[string]any); ok {
			if id, ok := doc["id"].(string); ok {
				result.State[id] = doc
			}
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, step Step, result *Result) {
	items := h.container.Items()
	item := h.container.Item(step.ID, nil)
	event := TraceEvent{Op: step.Op, ID: step.ID, Query: step.Query}

	var (
		resp  *cosmos.ItemResponse
		feed  *cosmos.FeedResponse
		batch *cosmos.BatchResponse
		err   error
	)
	switch step.Op {
	case OpQuery:
		feed, err = items.Query(cosmos.QuerySpec{Query: step.Query, Parameters: parameters(step.Params)}).FetchAll(ctx)
	case OpCreate:
		resp, err = items.Create(ctx, step.Document)
	case OpUpsert:
		resp, err = items.Upsert(ctx, step.Document)
	case OpReplace:
		resp, err = item.Replace(ctx, step.Document)
	case OpPatch:
		resp, err = item.Patch(ctx, patchOperations(step.Patch))
	case OpDelete:
		resp, err = item.Delete(ctx)
	case OpRead:
		resp, err = item.Read(ctx)
	case OpBatch:
		batch, err = items.Batch(ctx, batchOperations(step.Batch), nil)
	}

	event.Status = cosmos.StatusCode(err)
	switch {
	case resp != nil:
		event.Status = resp.StatusCode
		if resp.Resource != nil {
			event.Result = resp.Resource
			if id, ok := resp.Resource["id"].(string); ok {
				event.ID = id
			}
		}
	case feed != nil:
		event.Result = feed.Resources
	case batch != nil:
		statuses := make([]any, len(batch.Results))
		for i, r := range batch.Results {
			statuses[i] = map[string]any{"op": string(r.Operation), "id": r.ID, "status": int64(r.StatusCode)}
		}
		event.Result = statuses
	}
	if err != nil {
		event.Error = errorClass(err)
	}
	result.AddTrace(event)

	seq := len(result.Trace)
	if step.Expect == nil {
		if err != nil {
			result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", seq, step.Op, err))
		}
		return
	}
	for _, msg := range checkExpect(step.Expect, event, err) {
		result.AddError(fmt.Sprintf("step %d (%s): %s", seq, step.Op, msg))
	}
}

func checkExpect(expect *Expect, event TraceEvent, err error) []string {
	var msgs []string

	switch {
	case expect.Error == "" && err != nil:
		msgs = append(msgs, fmt.Sprintf("unexpected error: %v", err))
	case expect.Error != "" && err == nil:
		msgs = append(msgs, fmt.Sprintf("expected %s error, got success", expect.Error))
	case expect.Error != "" && expect.Error != errAny && expect.Error != event.Error:
		msgs = append(msgs, fmt.Sprintf("expected %s error, got %s: %v", expect.Error, event.Error, err))
	}

	if expect.Status != 0 && expect.Status != event.Status {
		msgs = append(msgs, fmt.Sprintf("expected status %d, got %d", expect.Status, event.Status))
	}

	if expect.Resource != nil {
		doc, _ := event.Result.(map[string]any)
		if !matchSubset(doc, expect.Resource) {
			msgs = append(msgs, fmt.Sprintf("resource %v does not match %v", doc, expect.Resource))
		}
	}

	resources, _ := event.Result.([]any)
	if expect.Resources != nil && !valuesEqual(resources, expect.Resources) {
		msgs = append(msgs, fmt.Sprintf("expected resources %v, got %v", expect.Resources, resources))
	}

	if expect.IDs != nil {
		var got []string
		for _, r := range resources {
			doc, _ := r.(map[string]any)
			id, _ := doc["id"].(string)
			got = append(got, id)
		}
		if !slices.Equal(got, expect.IDs) {
			msgs = append(msgs, fmt.Sprintf("expected ids %v, got %v", expect.IDs, got))
		}
	}
	return msgs
}

func errorClass(err error) string {
	switch {
	case cosmos.IsConflict(err):
		return errConflict
	case cosmos.IsNotFound(err):
		return errNotFound
	case cosmos.StatusCode(err) == http.StatusBadRequest:
		return errBadRequest
	}
	return errOther
}

// parameters converts a params map to query parameters, sorted by name.
func parameters(params map[string]any) []cosmos.Parameter {
	out := make([]cosmos.Parameter, 0, len(params))
	for _, name := range slices.Sorted(maps.Keys(params)) {
		out = append(out, cosmos.Parameter{Name: name, Value: params[name]})
	}
	return out
}

func patchOperations(steps []PatchStep) []cosmos.PatchOperation {
	ops := make([]cosmos.PatchOperation, len(steps))
	for i, s := range steps {
		ops[i] = cosmos.PatchOperation{Op: cosmos.PatchOp(s.Op), Path: s.Path, Value: s.Value}
	}
	return ops
}

func batchOperations(steps []BatchStep) []cosmos.BatchOperation {
	ops := make([]cosmos.BatchOperation, len(steps))
	for i, s := range steps {
		ops[i] = cosmos.BatchOperation{
			Type:     batchOps[s.Op],
			ID:       s.ID,
			Document: s.Document,
			Patch:    patchOperations(s.Patch),
		}
	}
	return ops
}
