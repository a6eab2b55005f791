package docmatch

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Aggregate runs a pipeline of $match, $group, $project, $sort, $skip and
// $limit stages over docs.
func Aggregate(docs []map[string]any, pipeline []bson.D) ([]map[string]any, error) {
	cur := make([]map[string]any, len(docs))
	for i, doc := range docs {
		cur[i] = Clone(doc)
	}

	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("stage %d: a stage has exactly one operator, got %d keys", i, len(stage))
		}
		var err error
		cur, err = runStage(cur, stage[0])
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, stage[0].Key, err)
		}
	}
	return cur, nil
}

func runStage(docs []map[string]any, stage bson.E) ([]map[string]any, error) {
	switch stage.Key {
	case "$match":
		filter, ok := stage.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document, got %T", stage.Value)
		}
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
		return out, nil

	case "$group":
		spec, ok := stage.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document, got %T", stage.Value)
		}
		return group(docs, spec)

	case "$project":
		spec, ok := stage.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document, got %T", stage.Value)
		}
		out := make([]map[string]any, 0, len(docs))
		for _, doc := range docs {
			projected, err := Project(doc, spec)
			if err != nil {
				return nil, err
			}
			out = append(out, projected)
		}
		return out, nil

	case "$sort":
		spec, ok := stage.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document, got %T", stage.Value)
		}
		return docs, Sort(docs, spec)

	case "$skip", "$limit":
		n, ok := toFloat(stage.Value)
		if !ok || n < 0 {
			return nil, fmt.Errorf("needs a non-negative number, got %v", stage.Value)
		}
		if stage.Key == "$skip" {
			return page(docs, int64(n), 0), nil
		}
		if n == 0 {
			return nil, fmt.Errorf("limit must be positive")
		}
		return page(docs, 0, int64(n)), nil
	}
	return nil, fmt.Errorf("unsupported stage")
}

// accState accumulates one output field of one group.
type accState struct {
	op    string
	sum   any
	count int64
	best  any
}

func (a *accState) add(v any) {
	switch a.op {
	case "$sum", "$avg":
		if _, ok := toFloat(v); !ok {
			return
		}
		if a.sum == nil {
			a.sum = int64(0)
		}
		a.sum = add(a.sum, v)
		a.count++
	case "$min", "$max":
		switch v.(type) {
		case nil, missingValue:
			return
		}
		if a.best == nil {
			a.best = v
			return
		}
		c := compare(v, a.best)
		if (a.op == "$min" && c < 0) || (a.op == "$max" && c > 0) {
			a.best = v
		}
	}
}

func (a *accState) result() any {
	switch a.op {
	case "$sum":
		if a.sum == nil {
			return int64(0)
		}
		return a.sum
	case "$avg":
		if a.count == 0 {
			return nil
		}
		f, _ := toFloat(a.sum)
		return f / float64(a.count)
	}
	return a.best
}

type groupState struct {
	key  any
	accs []*accState
}

// group implements $group. Groups are emitted in order of first
// appearance; an empty input yields no groups.
func group(docs []map[string]any, spec bson.D) ([]map[string]any, error) {
	var idExpr any
	hasID := false
	type field struct {
		name string
		op   string
		expr any
	}
	var fields []field
	for _, e := range spec {
		if e.Key == "_id" {
			idExpr, hasID = e.Value, true
			continue
		}
		acc, ok := e.Value.(bson.D)
		if !ok || len(acc) != 1 {
			return nil, fmt.Errorf("field %q must be a single accumulator document", e.Key)
		}
		switch acc[0].Key {
		case "$sum", "$avg", "$min", "$max":
		default:
			return nil, fmt.Errorf("field %q: unsupported accumulator %s", e.Key, acc[0].Key)
		}
		fields = append(fields, field{name: e.Key, op: acc[0].Key, expr: acc[0].Value})
	}
	if !hasID {
		return nil, fmt.Errorf("$group needs an _id")
	}

	var groups []*groupState
	for _, doc := range docs {
		key, err := Eval(doc, idExpr)
		if err != nil {
			return nil, err
		}
		if _, absent := key.(missingValue); absent {
			key = nil
		}

		var g *groupState
		for _, existing := range groups {
			if equal(existing.key, key) {
				g = existing
				break
			}
		}
		if g == nil {
			g = &groupState{key: key}
			for _, f := range fields {
				g.accs = append(g.accs, &accState{op: f.op})
			}
			groups = append(groups, g)
		}

		for i, f := range fields {
			v, err := Eval(doc, f.expr)
			if err != nil {
				return nil, err
			}
			g.accs[i].add(v)
		}
	}

	out := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		doc := map[string]any{"_id": g.key}
		for i, f := range fields {
			doc[f.name] = g.accs[i].result()
		}
		out = append(out, doc)
	}
	return out, nil
}
