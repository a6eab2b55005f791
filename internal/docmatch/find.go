package docmatch

import (
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/cosmongo/internal/docstore"
)

// Find filters docs and applies sort, skip, limit and projection in that
// order. Input order is preserved among equal sort keys. Returned
// documents are copies.
func Find(docs []map[string]any, filter bson.D, opts docstore.FindOptions) ([]map[string]any, error) {
	var out []map[string]any
	for _, doc := range docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}

	if err := Sort(out, opts.Sort); err != nil {
		return nil, err
	}
	out = page(out, opts.Skip, opts.Limit)

	result := make([]map[string]any, 0, len(out))
	for _, doc := range out {
		projected, err := Project(doc, opts.Projection)
		if err != nil {
			return nil, err
		}
		result = append(result, projected)
	}
	return result, nil
}

func page(docs []map[string]any, skip, limit int64) []map[string]any {
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

// Sort orders docs in place by a MongoDB sort document ({f: 1, g: -1}).
// Missing fields sort with null, before every other value.
func Sort(docs []map[string]any, spec bson.D) error {
	if len(spec) == 0 {
		return nil
	}
	dirs := make([]int, len(spec))
	for i, e := range spec {
		f, ok := toFloat(e.Value)
		if !ok || (f != 1 && f != -1) {
			return fmt.Errorf("sort direction for %q must be 1 or -1, got %v", e.Key, e.Value)
		}
		dirs[i] = int(f)
	}

	slices.SortStableFunc(docs, func(a, b map[string]any) int {
		for i, e := range spec {
			if c := compare(sortKey(a, e.Key), sortKey(b, e.Key)); c != 0 {
				return c * dirs[i]
			}
		}
		return 0
	})
	return nil
}

func sortKey(doc map[string]any, path string) any {
	v := getPath(doc, path)
	if _, absent := v.(missingValue); absent {
		return nil
	}
	return v
}

// Project applies an inclusion ({f: 1}) or exclusion ({f: 0}) projection.
// _id is kept unless excluded explicitly. A nil projection returns a copy
// of doc.
func Project(doc map[string]any, projection bson.D) (map[string]any, error) {
	if len(projection) == 0 {
		return Clone(doc), nil
	}

	keepID := true
	var include, exclude []string
	for _, e := range projection {
		on := truthy(Plain(e.Value))
		switch {
		case e.Key == "_id":
			keepID = on
		case on:
			include = append(include, e.Key)
		default:
			exclude = append(exclude, e.Key)
		}
	}
	if len(include) > 0 && len(exclude) > 0 {
		return nil, fmt.Errorf("projection cannot mix inclusion and exclusion")
	}

	if len(include) == 0 && (len(exclude) > 0 || !keepID) {
		out := Clone(doc)
		for _, path := range exclude {
			unsetPath(out, path)
		}
		if !keepID {
			delete(out, "_id")
		}
		return out, nil
	}

	out := map[string]any{}
	if id, ok := doc["_id"]; ok && keepID {
		out["_id"] = Plain(id)
	}
	for _, path := range include {
		copyPath(out, doc, splitPath(path))
	}
	return out, nil
}

// copyPath copies the value at parts from src into dst, creating the
// enclosing objects. Arrays of objects are projected element-wise.
func copyPath(dst, src map[string]any, parts []string) {
	v, ok := src[parts[0]]
	if !ok {
		return
	}
	if len(parts) == 1 {
		dst[parts[0]] = Plain(v)
		return
	}

	switch child := v.(type) {
	case map[string]any:
		sub, _ := dst[parts[0]].(map[string]any)
		if sub == nil {
			sub = map[string]any{}
		}
		copyPath(sub, child, parts[1:])
		dst[parts[0]] = sub
	case []any:
		existing, _ := dst[parts[0]].([]any)
		var out []any
		i := 0
		for _, elem := range child {
			m, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			var sub map[string]any
			if i < len(existing) {
				sub, _ = existing[i].(map[string]any)
			}
			if sub == nil {
				sub = map[string]any{}
			}
			copyPath(sub, m, parts[1:])
			out = append(out, sub)
			i++
		}
		dst[parts[0]] = out
	}
}
