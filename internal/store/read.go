package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/cosmongo/internal/docmatch"
	"github.com/roach88/cosmongo/internal/docstore"
)

// collection is one (db, name) pair of a Store.
type collection struct {
	s    *Store
	db   string
	name string
}

var _ docstore.Collection = (*collection)(nil)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// storedDoc is one row of the documents table.
type storedDoc struct {
	docID string
	seq   int64
	body  map[string]any
}

func (c *collection) Name() string {
	return c.name
}

// load reads every document of the collection in seq order.
//
// CRITICAL: ORDER BY seq gives the natural order of finds without a sort.
func (c *collection) load(ctx context.Context, q queryer) ([]storedDoc, error) {
	return c.scan(ctx, q, `
		SELECT doc_id, seq, body
		FROM documents
		WHERE db = ? AND collection = ?
		ORDER BY seq ASC
	`, c.db, c.name)
}

// candidates loads the documents filter can match. A plain string
// equality on _id reads the one row keyed by it; any other filter loads
// the whole collection.
func (c *collection) candidates(ctx context.Context, q queryer, filter bson.D) ([]storedDoc, error) {
	id, ok := idLookup(filter)
	if !ok {
		return c.load(ctx, q)
	}
	docID, err := marshalID(id)
	if err != nil {
		return nil, err
	}
	return c.scan(ctx, q, `
		SELECT doc_id, seq, body
		FROM documents
		WHERE db = ? AND collection = ? AND doc_id = ?
	`, c.db, c.name, docID)
}

// idLookup reports the id of a filter of the form {_id: "<string>"}.
func idLookup(filter bson.D) (string, bool) {
	if len(filter) != 1 || filter[0].Key != "_id" {
		return "", false
	}
	id, ok := filter[0].Value.(string)
	return id, ok
}

func (c *collection) scan(ctx context.Context, q queryer, query string, args ...any) ([]storedDoc, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.name, err)
	}
	defer rows.Close()

	var docs []storedDoc
	for rows.Next() {
		var d storedDoc
		var body string
		if err := rows.Scan(&d.docID, &d.seq, &body); err != nil {
			return nil, fmt.Errorf("load %s: scan: %w", c.name, err)
		}
		d.body, err = unmarshalBody(body)
		if err != nil {
			return nil, fmt.Errorf("load %s: document %s: %w", c.name, d.docID, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", c.name, err)
	}
	return docs, nil
}

func bodies(docs []storedDoc) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = d.body
	}
	return out
}

// first returns the first document in seq order matching filter.
func first(docs []storedDoc, filter bson.D) (*storedDoc, error) {
	for i := range docs {
		ok, err := docmatch.Match(docs[i].body, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			return &docs[i], nil
		}
	}
	return nil, nil
}

func (c *collection) Find(ctx context.Context, filter bson.D, opts docstore.FindOptions) ([]map[string]any, error) {
	docs, err := c.load(ctx, c.s.db)
	if err != nil {
		return nil, err
	}
	out, err := docmatch.Find(bodies(docs), filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}
	return out, nil
}

func (c *collection) Aggregate(ctx context.Context, pipeline []bson.D) ([]map[string]any, error) {
	docs, err := c.load(ctx, c.s.db)
	if err != nil {
		return nil, err
	}
	out, err := docmatch.Aggregate(bodies(docs), pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", c.name, err)
	}
	return out, nil
}

func (c *collection) FindOne(ctx context.Context, filter bson.D) (map[string]any, error) {
	docs, err := c.candidates(ctx, c.s.db, filter)
	if err != nil {
		return nil, err
	}
	row, err := first(docs, filter)
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", c.name, err)
	}
	if row == nil {
		return nil, fmt.Errorf("find one in %s: %w", c.name, docstore.ErrNotFound)
	}
	return row.body, nil
}
