package cosmos

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/cosmongo/internal/cosmossql"
	"github.com/roach88/cosmongo/internal/docmatch"
	"github.com/roach88/cosmongo/internal/docstore"
	"github.com/roach88/cosmongo/internal/ir"
	"github.com/roach88/cosmongo/internal/queryir"
	"github.com/roach88/cosmongo/internal/querymongo"
)

// Parameter is one named query parameter (@name).
type Parameter = cosmossql.Parameter

// QuerySpec is a parameterized Cosmos SQL query.
type QuerySpec struct {
	Query      string      `json:"query"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Items holds the item-set operations of a Container.
type Items struct {
	container *Container
}

// Query prepares spec for execution.
func (it *Items) Query(spec QuerySpec) *QueryIterator {
	return &QueryIterator{container: it.container, spec: spec}
}

// QueryString prepares a query with no parameters.
func (it *Items) QueryString(sql string) *QueryIterator {
	return it.Query(QuerySpec{Query: sql})
}

// ReadAll prepares a query returning every item.
func (it *Items) ReadAll() *QueryIterator {
	return it.QueryString("SELECT * FROM c")
}

// QueryIterator runs a prepared query.
type QueryIterator struct {
	container *Container
	spec      QuerySpec
}

// FetchAll translates and runs the query, returning every result in one
// FeedResponse.
//
// Scalar aggregates (SELECT VALUE COUNT(1)) yield bare numbers and default
// to [0] when nothing matched. Object aggregates yield objects without the
// synthetic group key. Everything else yields documents in Cosmos form.
func (q *QueryIterator) FetchAll(ctx context.Context) (*FeedResponse, error) {
	c := q.container
	pq := cosmossql.Parse(q.spec.Query, q.spec.Parameters)
	fp := fingerprint(pq)
	log := slog.With("container", c.name, "fingerprint", fp)

	if res := queryir.Validate(pq); !res.Valid {
		for _, w := range res.Warnings {
			log.Warn("query IR invariant violated", "warning", w)
		}
	}

	compiled, err := c.client.compiler.Compile(pq)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", fp, err)
	}

	resp := &FeedResponse{
		Resources:   []any{},
		Diagnostics: pq.Diagnostics,
	}

	if compiled.IsAggregate {
		log.Debug("aggregate", "kind", compiled.Aggregate.String(), "stages", len(compiled.Pipeline))
		rows, err := c.coll.Aggregate(ctx, compiled.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", fp, err)
		}
		resp.Resources = aggregateResources(compiled.Aggregate, rows)
		return resp, nil
	}

	log.Debug("find", "skip", compiled.Skip, "limit", compiled.Limit)
	docs, err := c.coll.Find(ctx, compiled.Filter, docstore.FindOptions{
		Projection: compiled.Projection,
		Sort:       compiled.Sort,
		Skip:       compiled.Skip,
		Limit:      compiled.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", fp, err)
	}
	for _, doc := range docs {
		resp.Resources = append(resp.Resources, fromStore(doc))
	}
	return resp, nil
}

func aggregateResources(kind queryir.AggregateKind, rows []map[string]any) []any {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		if kind == queryir.AggregateScalar {
			out = append(out, docmatch.Plain(row[queryir.ScalarAlias]))
			continue
		}
		obj := make(map[string]any, len(row))
		for k, v := range row {
			if k != querymongo.IDField {
				obj[k] = docmatch.Plain(v)
			}
		}
		out = append(out, obj)
	}
	if len(out) == 0 && kind == queryir.AggregateScalar {
		out = append(out, int64(0))
	}
	return out
}

// fingerprint returns the short query fingerprint used to correlate logs.
func fingerprint(pq *queryir.ParsedQuery) string {
	fp, err := ir.QueryFingerprint(queryir.Snapshot(pq))
	if err != nil {
		return "unknown"
	}
	return ir.ShortFingerprint(fp)
}

// Upsert writes doc, inserting it when no item has its id and merging its
// fields into the existing item otherwise. A missing id is synthesized.
// StatusCode is 201 for an insert and 200 for an update.
func (it *Items) Upsert(ctx context.Context, doc map[string]any) (*ItemResponse, error) {
	c := it.container
	doc, id := resolveID(doc, c.client.ids)
	stored := toStore(doc)

	set := bson.D{}
	for _, k := range slices.Sorted(maps.Keys(stored)) {
		if k != querymongo.IDField {
			set = append(set, bson.E{Key: k, Value: stored[k]})
		}
	}
	if len(set) == 0 {
		set = idFilter(id)
	}

	slog.Debug("upsert", "container", c.name, "id", id)
	res, err := c.coll.UpdateOne(ctx, idFilter(id), bson.D{{Key: "$set", Value: set}}, true)
	if err != nil {
		return nil, fmt.Errorf("upsert %s in %s: %w", id, c.name, err)
	}

	status := http.StatusOK
	if res.Inserted() {
		status = http.StatusCreated
	}
	return &ItemResponse{Resource: fromStore(stored), StatusCode: status}, nil
}

// Create inserts doc. A missing id is synthesized. An existing item with
// the same id fails with an error satisfying IsConflict; the stored item
// is left untouched.
func (it *Items) Create(ctx context.Context, doc map[string]any) (*ItemResponse, error) {
	c := it.container
	doc, id := resolveID(doc, c.client.ids)
	stored := toStore(doc)

	slog.Debug("create", "container", c.name, "id", id)
	if err := c.coll.InsertOne(ctx, stored); err != nil {
		return nil, fmt.Errorf("create %s in %s: %w", id, c.name, err)
	}
	return &ItemResponse{Resource: fromStore(stored), StatusCode: http.StatusCreated}, nil
}
