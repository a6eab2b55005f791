package docmatch

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// missing stands for an absent field inside expression evaluation, where
// "null" and "not there" are distinct.
type missingValue struct{}

var missing = missingValue{}

// Plain converts bson container types to their map/slice equivalents,
// recursively. Scalars pass through.
func Plain(v any) any {
	switch val := v.(type) {
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = Plain(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Plain(e)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Plain(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Plain(e)
		}
		return out
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	}
	return v
}

// Clone deep-copies a document.
func Clone(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	return Plain(doc).(map[string]any)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int32, int64:
		return true
	}
	return false
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	}
	f, _ := toFloat(v)
	return int64(f)
}

// typeName returns the MongoDB $type alias for v.
func typeName(v any) string {
	switch v.(type) {
	case missingValue:
		return "missing"
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32:
		return "int"
	case int64:
		return "long"
	case float32, float64:
		return "double"
	case []any, bson.A:
		return "array"
	case map[string]any, bson.D, bson.M:
		return "object"
	}
	return "unknown"
}

// typeRank orders values of different types the way MongoDB's
// comparison/sort order does.
func typeRank(v any) int {
	switch v.(type) {
	case missingValue, nil:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case string:
		return 3
	case map[string]any, bson.D, bson.M:
		return 4
	case []any, bson.A:
		return 5
	case bool:
		return 8
	}
	return 10
}

// compare orders a and b across types. Numbers compare numerically
// whatever their width.
func compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case 1:
		return 0
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		if isInteger(a) && isInteger(b) {
			return cmpInt64(toInt64(a), toInt64(b))
		}
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		case math.IsNaN(fa) && !math.IsNaN(fb):
			return -1
		case !math.IsNaN(fa) && math.IsNaN(fb):
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	case 4:
		return compareObjects(Plain(a).(map[string]any), Plain(b).(map[string]any))
	case 5:
		la, lb := Plain(a).([]any), Plain(b).([]any)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := compare(la[i], lb[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(la), len(lb))
	case 8:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}
	return 0
}

func compareObjects(a, b map[string]any) int {
	ka, kb := sortedKeys(a), sortedKeys(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := strings.Compare(ka[i], kb[i]); c != 0 {
			return c
		}
		if c := compare(a[ka[i]], b[kb[i]]); c != 0 {
			return c
		}
	}
	return cmpInt(len(ka), len(kb))
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// equal is MongoDB value equality: numbers across widths, objects and
// arrays structurally.
func equal(a, b any) bool {
	if typeRank(a) != typeRank(b) {
		return false
	}
	if _, ok := a.(missingValue); ok {
		_, ok := b.(missingValue)
		return ok
	}
	if _, ok := b.(missingValue); ok {
		return false
	}
	return compare(a, b) == 0
}

// comparable reports whether a range comparison between a and b is
// meaningful in a query filter: MongoDB only compares within one type
// bracket there.
func comparable(a, b any) bool {
	ra, rb := typeRank(a), typeRank(b)
	return ra == rb && ra != 1
}

// splitPath splits a dotted field path.
func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// lookup resolves a dotted path with MongoDB's array traversal: a
// non-index segment applied to an array descends into every element that
// is an object. The result lists every value reached.
func lookup(v any, parts []string) []any {
	if len(parts) == 0 {
		return []any{v}
	}
	head, rest := parts[0], parts[1:]

	switch val := v.(type) {
	case map[string]any:
		child, ok := val[head]
		if !ok {
			return nil
		}
		return lookup(child, rest)

	case []any:
		var out []any
		if idx, err := strconv.Atoi(head); err == nil && idx >= 0 {
			if idx < len(val) {
				out = append(out, lookup(val[idx], rest)...)
			}
		}
		for _, elem := range val {
			if m, ok := elem.(map[string]any); ok {
				out = append(out, lookup(m, parts)...)
			}
		}
		return out
	}
	return nil
}

// getPath resolves a dotted path without array fan-out, the way
// aggregation field references read scalar paths. A missing field yields
// missing.
func getPath(doc map[string]any, path string) any {
	var cur any = doc
	for _, part := range splitPath(path) {
		switch val := cur.(type) {
		case map[string]any:
			next, ok := val[part]
			if !ok {
				return missing
			}
			cur = next
		case []any:
			if idx, err := strconv.Atoi(part); err == nil {
				if idx < 0 || idx >= len(val) {
					return missing
				}
				cur = val[idx]
				continue
			}
			var out []any
			for _, elem := range val {
				if m, ok := elem.(map[string]any); ok {
					if got, ok := m[part]; ok {
						out = append(out, got)
					}
				}
			}
			cur = out
		default:
			return missing
		}
	}
	return cur
}

// truthy is aggregation-expression truthiness.
func truthy(v any) bool {
	switch val := v.(type) {
	case missingValue, nil:
		return false
	case bool:
		return val
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}
