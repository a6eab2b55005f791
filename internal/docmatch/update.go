package docmatch

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Apply returns a copy of doc with update applied. Supported operators are
// $set, $unset and $inc. The input document is not modified.
func Apply(doc map[string]any, update bson.D) (map[string]any, error) {
	if len(update) == 0 {
		return nil, fmt.Errorf("update document is empty")
	}
	out := Clone(doc)
	if out == nil {
		out = map[string]any{}
	}

	for _, group := range update {
		fields, ok := group.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s needs a document, got %T", group.Key, group.Value)
		}
		for _, f := range fields {
			if f.Key == "" {
				return nil, fmt.Errorf("%s: empty field path", group.Key)
			}
			var err error
			switch group.Key {
			case "$set":
				err = setPath(out, f.Key, Plain(f.Value))
			case "$unset":
				unsetPath(out, f.Key)
			case "$inc":
				err = incPath(out, f.Key, Plain(f.Value))
			default:
				if !strings.HasPrefix(group.Key, "$") {
					return nil, fmt.Errorf("update must use operators, got field %q", group.Key)
				}
				return nil, fmt.Errorf("unsupported update operator %s", group.Key)
			}
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", group.Key, f.Key, err)
			}
		}
	}
	return out, nil
}

// container walks to the parent of the last path segment, creating
// objects along the way when create is set.
func container(doc map[string]any, parts []string, create bool) (any, error) {
	var cur any = doc
	for _, part := range parts {
		switch val := cur.(type) {
		case map[string]any:
			next, ok := val[part]
			if !ok {
				if !create {
					return nil, nil
				}
				next = map[string]any{}
				val[part] = next
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(val) {
				if !create {
					return nil, nil
				}
				return nil, fmt.Errorf("cannot traverse array with %q", part)
			}
			cur = val[idx]
		default:
			if !create {
				return nil, nil
			}
			return nil, fmt.Errorf("cannot create field %q in %s", part, typeName(cur))
		}
	}
	return cur, nil
}

func setPath(doc map[string]any, path string, v any) error {
	parts := splitPath(path)
	parent, err := container(doc, parts[:len(parts)-1], true)
	if err != nil {
		return err
	}
	last := parts[len(parts)-1]
	switch p := parent.(type) {
	case map[string]any:
		p[last] = v
		return nil
	case []any:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx >= len(p) {
			return fmt.Errorf("array index %q out of range", last)
		}
		p[idx] = v
		return nil
	}
	return fmt.Errorf("cannot set field %q in %s", last, typeName(parent))
}

func unsetPath(doc map[string]any, path string) {
	parts := splitPath(path)
	parent, _ := container(doc, parts[:len(parts)-1], false)
	last := parts[len(parts)-1]
	switch p := parent.(type) {
	case map[string]any:
		delete(p, last)
	case []any:
		if idx, err := strconv.Atoi(last); err == nil && idx >= 0 && idx < len(p) {
			p[idx] = nil
		}
	}
}

func incPath(doc map[string]any, path string, delta any) error {
	if _, ok := toFloat(delta); !ok {
		return fmt.Errorf("cannot increment by non-numeric %s", typeName(delta))
	}
	current := getPath(doc, path)
	if _, absent := current.(missingValue); absent {
		return setPath(doc, path, delta)
	}
	if _, ok := toFloat(current); !ok {
		return fmt.Errorf("cannot increment non-numeric %s", typeName(current))
	}
	return setPath(doc, path, add(current, delta))
}

// add sums two numbers, staying integral when both are.
func add(a, b any) any {
	if isInteger(a) && isInteger(b) {
		return toInt64(a) + toInt64(b)
	}
	fa, _ := toFloat(a)
	fb, _ := toFloat(b)
	return fa + fb
}
