package cosmos

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/cosmongo/internal/docmatch"
)

// PatchOp names a patch operation.
type PatchOp string

const (
	PatchAdd       PatchOp = "add"
	PatchSet       PatchOp = "set"
	PatchReplace   PatchOp = "replace"
	PatchRemove    PatchOp = "remove"
	PatchIncr      PatchOp = "incr"
	PatchIncrement PatchOp = "increment"
	PatchMove      PatchOp = "move"
)

// PatchOperation is one partial-update step. Path is a JSON-pointer style
// path such as /status or /address/city.
type PatchOperation struct {
	Op    PatchOp `json:"op"`
	Path  string  `json:"path"`
	Value any     `json:"value,omitempty"`
}

// Set returns a set operation.
func Set(path string, value any) PatchOperation {
	return PatchOperation{Op: PatchSet, Path: path, Value: value}
}

// Remove returns a remove operation.
func Remove(path string) PatchOperation {
	return PatchOperation{Op: PatchRemove, Path: path}
}

// Incr returns an increment operation.
func Incr(path string, by any) PatchOperation {
	return PatchOperation{Op: PatchIncr, Path: path, Value: by}
}

// BuildUpdate batches ops into one update document with $set, $unset and
// $inc sections, in that order. A later set of the same path wins; repeated
// increments of a path are summed. Touching one path from two different
// sections is rejected.
func BuildUpdate(ops []PatchOperation) (bson.D, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("patch: no operations")
	}

	var set, unset, inc bson.D
	section := make(map[string]string)
	claim := func(path, op string) error {
		if prev, ok := section[path]; ok && prev != op {
			return fmt.Errorf("patch: conflicting operations on %q", path)
		}
		section[path] = op
		return nil
	}

	for i, op := range ops {
		path, err := fieldPath(op.Path)
		if err != nil {
			return nil, fmt.Errorf("patch operation %d: %w", i, err)
		}

		switch op.Op {
		case PatchAdd, PatchSet, PatchReplace:
			if err := claim(path, "$set"); err != nil {
				return nil, err
			}
			set = upsertElem(set, path, docmatch.Plain(op.Value))

		case PatchRemove:
			if err := claim(path, "$unset"); err != nil {
				return nil, err
			}
			unset = upsertElem(unset, path, "")

		case PatchIncr, PatchIncrement:
			if err := claim(path, "$inc"); err != nil {
				return nil, err
			}
			by := docmatch.Plain(op.Value)
			if !numeric(by) {
				return nil, fmt.Errorf("patch operation %d: increment of %q by non-numeric %T", i, op.Path, op.Value)
			}
			if j := indexOf(inc, path); j >= 0 {
				inc[j].Value = addNumbers(inc[j].Value, by)
			} else {
				inc = append(inc, bson.E{Key: path, Value: by})
			}

		case PatchMove:
			return nil, fmt.Errorf("patch operation %d: move is not supported", i)

		default:
			return nil, fmt.Errorf("patch operation %d: unknown op %q", i, op.Op)
		}
	}

	var update bson.D
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	if len(inc) > 0 {
		update = append(update, bson.E{Key: "$inc", Value: inc})
	}
	return update, nil
}

// fieldPath converts /a/b to a.b. The identifier and the array-append
// segment cannot be patched.
func fieldPath(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return "", fmt.Errorf("empty path")
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		switch seg {
		case "":
			return "", fmt.Errorf("path %q has an empty segment", path)
		case "-":
			return "", fmt.Errorf("path %q: array append is not supported", path)
		}
	}
	if segments[0] == sourceID {
		return "", fmt.Errorf("path %q: id cannot be patched", path)
	}
	return strings.Join(segments, "."), nil
}

func indexOf(d bson.D, key string) int {
	for i, e := range d {
		if e.Key == key {
			return i
		}
	}
	return -1
}

func upsertElem(d bson.D, key string, value any) bson.D {
	if i := indexOf(d, key); i >= 0 {
		d[i].Value = value
		return d
	}
	return append(d, bson.E{Key: key, Value: value})
}

func numeric(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func addNumbers(a, b any) any {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		return ai + bi
	}
	return toFloat(a) + toFloat(b)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
