package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/cosmongo/internal/docmatch"
	"github.com/roach88/cosmongo/internal/docstore"
)

// withTx runs fn in a transaction under the store's write lock.
func (c *collection) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s %s: begin tx: %w", op, c.name, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return fmt.Errorf("%s %s: %w", op, c.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s %s: commit: %w", op, c.name, err)
	}
	return nil
}

// insert writes doc as a new row at the end of the collection.
func (c *collection) insert(ctx context.Context, tx *sql.Tx, doc map[string]any) error {
	id, ok := doc["_id"]
	if !ok {
		return fmt.Errorf("document has no _id")
	}
	docID, err := marshalID(id)
	if err != nil {
		return err
	}
	body, err := marshalBody(doc)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (db, collection, doc_id, body, seq)
		VALUES (?, ?, ?, ?, (
			SELECT COALESCE(MAX(seq), 0) + 1 FROM documents WHERE db = ? AND collection = ?
		))
	`, c.db, c.name, docID, body, c.db, c.name)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("_id %s: %w: %w", docID, docstore.ErrConflict, err)
		}
		return err
	}
	return nil
}

// rewrite stores a new body for an existing row. The _id may not change.
func (c *collection) rewrite(ctx context.Context, tx *sql.Tx, row *storedDoc, doc map[string]any) error {
	docID, err := marshalID(doc["_id"])
	if err != nil {
		return err
	}
	if docID != row.docID {
		return fmt.Errorf("_id is immutable: %s -> %s", row.docID, docID)
	}
	body, err := marshalBody(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET body = ?
		WHERE db = ? AND collection = ? AND doc_id = ?
	`, body, c.db, c.name, row.docID)
	return err
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (c *collection) InsertOne(ctx context.Context, doc map[string]any) error {
	return c.withTx(ctx, "insert", func(tx *sql.Tx) error {
		return c.insert(ctx, tx, docmatch.Clone(doc))
	})
}

// UpdateOne applies update to the first match. With upsert and no match,
// the equality fields of filter seed a new document that update is then
// applied to.
func (c *collection) UpdateOne(ctx context.Context, filter, update bson.D, upsert bool) (docstore.UpdateResult, error) {
	var res docstore.UpdateResult
	err := c.withTx(ctx, "update", func(tx *sql.Tx) error {
		docs, err := c.candidates(ctx, tx, filter)
		if err != nil {
			return err
		}
		row, err := first(docs, filter)
		if err != nil {
			return err
		}

		if row == nil {
			if !upsert {
				return nil
			}
			seed := seedFromFilter(filter)
			doc, err := docmatch.Apply(seed, update)
			if err != nil {
				return err
			}
			if err := c.insert(ctx, tx, doc); err != nil {
				return err
			}
			res.UpsertedID = doc["_id"]
			return nil
		}

		res.Matched = 1
		doc, err := docmatch.Apply(row.body, update)
		if err != nil {
			return err
		}
		before, _ := marshalBody(row.body)
		after, err := marshalBody(doc)
		if err != nil {
			return err
		}
		if before == after {
			return nil
		}
		res.Modified = 1
		return c.rewrite(ctx, tx, row, doc)
	})
	return res, err
}

// seedFromFilter collects the top-level equality conditions of filter,
// the fields an upsert copies into the inserted document.
func seedFromFilter(filter bson.D) map[string]any {
	seed := map[string]any{}
	for _, e := range filter {
		if len(e.Key) > 0 && e.Key[0] == '$' {
			continue
		}
		if d, ok := e.Value.(bson.D); ok && len(d) > 0 && len(d[0].Key) > 0 && d[0].Key[0] == '$' {
			continue
		}
		seed[e.Key] = docmatch.Plain(e.Value)
	}
	return seed
}

// ReplaceOne overwrites the first match, keeping its _id and position.
func (c *collection) ReplaceOne(ctx context.Context, filter bson.D, doc map[string]any) (docstore.UpdateResult, error) {
	var res docstore.UpdateResult
	err := c.withTx(ctx, "replace", func(tx *sql.Tx) error {
		docs, err := c.candidates(ctx, tx, filter)
		if err != nil {
			return err
		}
		row, err := first(docs, filter)
		if err != nil || row == nil {
			return err
		}
		res.Matched = 1

		replacement := docmatch.Clone(doc)
		if _, ok := replacement["_id"]; !ok {
			replacement["_id"] = row.body["_id"]
		}
		if err := c.rewrite(ctx, tx, row, replacement); err != nil {
			return err
		}
		res.Modified = 1
		return nil
	})
	return res, err
}

func (c *collection) DeleteOne(ctx context.Context, filter bson.D) (int64, error) {
	var deleted int64
	err := c.withTx(ctx, "delete", func(tx *sql.Tx) error {
		docs, err := c.candidates(ctx, tx, filter)
		if err != nil {
			return err
		}
		row, err := first(docs, filter)
		if err != nil || row == nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			DELETE FROM documents WHERE db = ? AND collection = ? AND doc_id = ?
		`, c.db, c.name, row.docID)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

func (c *collection) FindOneAndUpdate(ctx context.Context, filter, update bson.D) (map[string]any, error) {
	var out map[string]any
	err := c.withTx(ctx, "find and update", func(tx *sql.Tx) error {
		docs, err := c.candidates(ctx, tx, filter)
		if err != nil {
			return err
		}
		row, err := first(docs, filter)
		if err != nil {
			return err
		}
		if row == nil {
			return docstore.ErrNotFound
		}
		doc, err := docmatch.Apply(row.body, update)
		if err != nil {
			return err
		}
		if err := c.rewrite(ctx, tx, row, doc); err != nil {
			return err
		}
		out = doc
		return nil
	})
	return out, err
}
