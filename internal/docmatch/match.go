package docmatch

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Match reports whether doc satisfies filter. An empty filter matches
// every document.
func Match(doc map[string]any, filter bson.D) (bool, error) {
	for _, e := range filter {
		ok, err := matchElement(doc, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchElement(doc map[string]any, e bson.E) (bool, error) {
	switch e.Key {
	case "$and":
		clauses, err := clauseList(e)
		if err != nil {
			return false, err
		}
		for _, c := range clauses {
			ok, err := Match(doc, c)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case "$or":
		clauses, err := clauseList(e)
		if err != nil {
			return false, err
		}
		for _, c := range clauses {
			ok, err := Match(doc, c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case "$nor":
		clauses, err := clauseList(e)
		if err != nil {
			return false, err
		}
		for _, c := range clauses {
			ok, err := Match(doc, c)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
		return true, nil

	case "$expr":
		v, err := Eval(doc, e.Value)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	}

	if strings.HasPrefix(e.Key, "$") {
		return false, fmt.Errorf("unsupported top-level operator %s", e.Key)
	}

	values := lookup(doc, splitPath(e.Key))
	if ops, ok := operatorDoc(e.Value); ok {
		return matchOperators(values, ops)
	}
	return matchEq(values, Plain(e.Value)), nil
}

func clauseList(e bson.E) ([]bson.D, error) {
	var items []any
	switch v := e.Value.(type) {
	case bson.A:
		items = v
	case []any:
		items = v
	case []bson.D:
		out := make([]bson.D, len(v))
		copy(out, v)
		return out, nil
	default:
		return nil, fmt.Errorf("%s needs an array, got %T", e.Key, e.Value)
	}
	out := make([]bson.D, 0, len(items))
	for _, item := range items {
		d, ok := item.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s clause must be a document, got %T", e.Key, item)
		}
		out = append(out, d)
	}
	return out, nil
}

// operatorDoc reports whether v is a document whose keys are all
// operators, i.e. {$gt: 5} rather than an embedded-object literal.
func operatorDoc(v any) (bson.D, bool) {
	d, ok := v.(bson.D)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

// matchEq is implicit equality: a value equal to want, an array element
// equal to want, or (for null) no value at all.
func matchEq(values []any, want any) bool {
	if want == nil && len(values) == 0 {
		return true
	}
	for _, v := range values {
		if equal(v, want) {
			return true
		}
		if arr, ok := v.([]any); ok {
			for _, elem := range arr {
				if equal(elem, want) {
					return true
				}
			}
		}
	}
	return false
}

// matchAny applies test to every value and every element of array values.
func matchAny(values []any, test func(any) bool) bool {
	for _, v := range values {
		if test(v) {
			return true
		}
		if arr, ok := v.([]any); ok {
			for _, elem := range arr {
				if test(elem) {
					return true
				}
			}
		}
	}
	return false
}

func matchOperators(values []any, ops bson.D) (bool, error) {
	options := ""
	for _, op := range ops {
		if op.Key == "$options" {
			s, ok := op.Value.(string)
			if !ok {
				return false, fmt.Errorf("$options must be a string, got %T", op.Value)
			}
			options = s
		}
	}

	for _, op := range ops {
		ok, err := matchOperator(values, op, options)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchOperator(values []any, op bson.E, options string) (bool, error) {
	want := Plain(op.Value)

	switch op.Key {
	case "$eq":
		return matchEq(values, want), nil

	case "$ne":
		return !matchEq(values, want), nil

	case "$gt", "$gte", "$lt", "$lte":
		return matchAny(values, func(v any) bool {
			if !comparable(v, want) {
				return false
			}
			return rangeHolds(op.Key, compare(v, want))
		}), nil

	case "$in", "$nin":
		list, ok := want.([]any)
		if !ok {
			return false, fmt.Errorf("%s needs an array, got %T", op.Key, op.Value)
		}
		in := false
		for _, w := range list {
			if matchEq(values, w) {
				in = true
				break
			}
		}
		if op.Key == "$nin" {
			return !in, nil
		}
		return in, nil

	case "$exists":
		return (len(values) > 0) == truthy(want), nil

	case "$regex":
		pattern, ok := want.(string)
		if !ok {
			return false, fmt.Errorf("$regex must be a string, got %T", op.Value)
		}
		re, err := compileRegex(pattern, options)
		if err != nil {
			return false, err
		}
		return matchAny(values, func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}), nil

	case "$options":
		return true, nil
	}

	return false, fmt.Errorf("unsupported query operator %s", op.Key)
}

func rangeHolds(op string, c int) bool {
	switch op {
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	case "$lt":
		return c < 0
	case "$lte":
		return c <= 0
	}
	return false
}

func compileRegex(pattern, options string) (*regexp.Regexp, error) {
	var flags string
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags += string(o)
		default:
			return nil, fmt.Errorf("unsupported $options flag %q", o)
		}
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile $regex: %w", err)
	}
	return re, nil
}
