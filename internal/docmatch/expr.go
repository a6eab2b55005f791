package docmatch

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Eval evaluates an aggregation expression against doc.
//
// Strings starting with "$" are field references; a reference to an
// absent field yields a value whose $type is "missing". Documents with a
// single operator key are operator calls; other documents and arrays
// evaluate element-wise.
func Eval(doc map[string]any, expr any) (any, error) {
	switch val := expr.(type) {
	case string:
		if strings.HasPrefix(val, "$") && len(val) > 1 {
			return getPath(doc, val[1:]), nil
		}
		return val, nil

	case bson.A:
		return evalList(doc, val)
	case []any:
		return evalList(doc, val)

	case bson.D:
		if len(val) == 1 && strings.HasPrefix(val[0].Key, "$") {
			return evalOperator(doc, val[0].Key, val[0].Value)
		}
		out := make(map[string]any, len(val))
		for _, e := range val {
			v, err := Eval(doc, e.Value)
			if err != nil {
				return nil, err
			}
			if _, gone := v.(missingValue); !gone {
				out[e.Key] = v
			}
		}
		return out, nil
	}
	return Plain(expr), nil
}

func evalList(doc map[string]any, items []any) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		v, err := Eval(doc, item)
		if err != nil {
			return nil, err
		}
		if _, gone := v.(missingValue); gone {
			v = nil
		}
		out[i] = v
	}
	return out, nil
}

func evalArgs(doc map[string]any, op string, arg any, n int) ([]any, error) {
	var items []any
	switch a := arg.(type) {
	case bson.A:
		items = a
	case []any:
		items = a
	default:
		items = []any{arg}
	}
	if len(items) != n {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", op, n, len(items))
	}
	out := make([]any, n)
	for i, item := range items {
		v, err := Eval(doc, item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func evalOperator(doc map[string]any, op string, arg any) (any, error) {
	switch op {
	case "$cond":
		if d, ok := arg.(bson.D); ok {
			arg = bson.A{lookupKey(d, "if"), lookupKey(d, "then"), lookupKey(d, "else")}
		}
		args, err := rawArgs(op, arg, 3)
		if err != nil {
			return nil, err
		}
		cond, err := Eval(doc, args[0])
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return Eval(doc, args[1])
		}
		return Eval(doc, args[2])

	case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
		args, err := evalArgs(doc, op, arg, 2)
		if err != nil {
			return nil, err
		}
		c := compare(args[0], args[1])
		switch op {
		case "$eq":
			return c == 0, nil
		case "$ne":
			return c != 0, nil
		}
		return rangeHolds(op, c), nil

	case "$type":
		args, err := evalArgs(doc, op, arg, 1)
		if err != nil {
			return nil, err
		}
		return typeName(args[0]), nil

	case "$strLenCP":
		args, err := evalArgs(doc, op, arg, 1)
		if err != nil {
			return nil, err
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("$strLenCP requires a string, got %s", typeName(args[0]))
		}
		return int64(utf8.RuneCountInString(s)), nil

	case "$ifNull":
		args, err := evalArgs(doc, op, arg, 2)
		if err != nil {
			return nil, err
		}
		switch args[0].(type) {
		case nil, missingValue:
			return args[1], nil
		}
		return args[0], nil

	case "$literal":
		return Plain(arg), nil
	}
	return nil, fmt.Errorf("unsupported expression operator %s", op)
}

// rawArgs splits an argument array without evaluating it, for operators
// that evaluate lazily.
func rawArgs(op string, arg any, n int) ([]any, error) {
	var items []any
	switch a := arg.(type) {
	case bson.A:
		items = a
	case []any:
		items = a
	default:
		return nil, fmt.Errorf("%s needs an array, got %T", op, arg)
	}
	if len(items) != n {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", op, n, len(items))
	}
	return items, nil
}

func lookupKey(d bson.D, key string) any {
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}
