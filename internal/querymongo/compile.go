package querymongo

import (
	"fmt"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/cosmongo/internal/ir"
	"github.com/roach88/cosmongo/internal/queryir"
)

// IDField is the document identifier on the store side. References to
// the Cosmos "id" property are rewritten to it.
const IDField = "_id"

// Compiled is a ParsedQuery lowered to MongoDB documents.
//
// When IsAggregate is set only Pipeline is meaningful; otherwise Filter,
// Sort, Projection, Skip and Limit describe a find.
type Compiled struct {
	Filter     bson.D
	Sort       bson.D // nil = natural order
	Projection bson.D // nil = all fields
	Skip       int64
	Limit      int64 // 0 = unbounded

	IsAggregate bool
	Aggregate   queryir.AggregateKind
	Pipeline    []bson.D
}

// Compiler lowers queryir to MongoDB filter, sort, projection and pipeline
// documents.
//
// Lowering is deterministic: the same ParsedQuery always yields the same
// documents, key order included.
type Compiler struct{}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile lowers q.
func (c *Compiler) Compile(q *queryir.ParsedQuery) (*Compiled, error) {
	if q == nil {
		return nil, fmt.Errorf("cannot compile nil query")
	}

	if q.IsAggregate {
		pipeline, err := c.compilePipeline(q.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("compile pipeline: %w", err)
		}
		return &Compiled{
			Filter:      bson.D{},
			IsAggregate: true,
			Aggregate:   q.Aggregate,
			Pipeline:    pipeline,
		}, nil
	}

	filter, err := c.CompileFilter(q.Filter)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	return &Compiled{
		Filter:     filter,
		Sort:       c.compileSort(q.Sort),
		Projection: c.compileProjection(q.Projection),
		Skip:       q.Skip,
		Limit:      q.Limit,
	}, nil
}

// CompileFilter lowers one predicate tree. Nil lowers to the empty
// (match-all) filter.
func (c *Compiler) CompileFilter(p queryir.Predicate) (bson.D, error) {
	if p == nil {
		return bson.D{}, nil
	}

	switch pred := p.(type) {
	case queryir.Eq:
		return bson.D{{Key: storeField(pred.Field), Value: Value(pred.Value)}}, nil

	case queryir.Cmp:
		op, err := operator(pred.Op)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: storeField(pred.Field), Value: bson.D{{Key: op, Value: Value(pred.Value)}}}}, nil

	case queryir.In:
		values := make(bson.A, len(pred.Values))
		for i, v := range pred.Values {
			values[i] = Value(v)
		}
		op := "$in"
		if pred.Negate {
			op = "$nin"
		}
		return bson.D{{Key: storeField(pred.Field), Value: bson.D{{Key: op, Value: values}}}}, nil

	case queryir.Exists:
		return bson.D{{Key: storeField(pred.Field), Value: bson.D{{Key: "$exists", Value: pred.Exists}}}}, nil

	case queryir.Regex:
		cond := bson.D{{Key: "$regex", Value: pred.Pattern}}
		if pred.IgnoreCase {
			cond = append(cond, bson.E{Key: "$options", Value: "i"})
		}
		return bson.D{{Key: storeField(pred.Field), Value: cond}}, nil

	case queryir.StrLen:
		return c.compileStrLen(pred)

	case queryir.And:
		return c.compileAnd(pred)

	case queryir.Or:
		if len(pred.Predicates) == 0 {
			return bson.D{{Key: "$expr", Value: false}}, nil
		}
		clauses, err := c.compileList(pred.Predicates)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$or", Value: clauses}}, nil

	case queryir.Not:
		inner, err := c.CompileFilter(pred.Predicate)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$nor", Value: bson.A{inner}}}, nil

	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileList(preds []queryir.Predicate) (bson.A, error) {
	out := make(bson.A, 0, len(preds))
	for _, p := range preds {
		doc, err := c.CompileFilter(p)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// compileAnd merges children into one flat document when that is
// lossless. A child with a top-level operator key, or two children
// constraining the same key, forces an explicit $and so that
// "a > 5 AND a < 10" keeps both bounds.
func (c *Compiler) compileAnd(and queryir.And) (bson.D, error) {
	var children []bson.D
	for _, p := range and.Predicates {
		doc, err := c.CompileFilter(p)
		if err != nil {
			return nil, err
		}
		if len(doc) > 0 {
			children = append(children, doc)
		}
	}

	switch len(children) {
	case 0:
		return bson.D{}, nil
	case 1:
		return children[0], nil
	}

	if !mergeable(children) {
		clauses := make(bson.A, len(children))
		for i, doc := range children {
			clauses[i] = doc
		}
		return bson.D{{Key: "$and", Value: clauses}}, nil
	}

	var merged bson.D
	for _, doc := range children {
		merged = append(merged, doc...)
	}
	return merged, nil
}

func mergeable(children []bson.D) bool {
	seen := make(map[string]bool)
	for _, doc := range children {
		for _, e := range doc {
			if strings.HasPrefix(e.Key, "$") || seen[e.Key] {
				return false
			}
			seen[e.Key] = true
		}
	}
	return true
}

// compileStrLen counts code points of string fields; anything else
// (missing, null, numbers) counts as length zero.
func (c *Compiler) compileStrLen(p queryir.StrLen) (bson.D, error) {
	op, err := operator(p.Op)
	if err != nil {
		return nil, err
	}
	ref := "$" + storeField(p.Field)
	length := bson.D{{Key: "$strLenCP", Value: bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: ref}}, "string"}}},
		ref,
		"",
	}}}}}
	return bson.D{{Key: "$expr", Value: bson.D{{Key: op, Value: bson.A{length, p.Length}}}}}, nil
}

func operator(op queryir.CmpOp) (string, error) {
	switch op {
	case queryir.OpEq, queryir.OpNe, queryir.OpGt, queryir.OpGte, queryir.OpLt, queryir.OpLte:
		return "$" + string(op), nil
	}
	return "", fmt.Errorf("unsupported comparison operator: %q", op)
}

func (c *Compiler) compileSort(sort []queryir.SortField) bson.D {
	if len(sort) == 0 {
		return nil
	}
	out := make(bson.D, 0, len(sort))
	seen := make(map[string]bool, len(sort))
	for _, sf := range sort {
		field := storeField(sf.Field)
		if seen[field] {
			continue
		}
		seen[field] = true
		dir := 1
		if sf.Direction == queryir.Descending {
			dir = -1
		}
		out = append(out, bson.E{Key: field, Value: dir})
	}
	return out
}

// compileProjection includes the listed fields and suppresses _id unless
// id was requested. MongoDB rejects a path together with one of its
// sub-paths, so only the outermost path is kept, whichever came first.
func (c *Compiler) compileProjection(fields []string) bson.D {
	if fields == nil {
		return nil
	}

	var out bson.D
	wantID := false
	for _, f := range fields {
		field := storeField(f)
		if field == IDField {
			wantID = true
		}
		if covered(out, field) {
			continue
		}
		out = slices.DeleteFunc(out, func(e bson.E) bool {
			return strings.HasPrefix(e.Key, field+".")
		})
		out = append(out, bson.E{Key: field, Value: 1})
	}
	if !wantID {
		out = append(out, bson.E{Key: IDField, Value: 0})
	}
	return out
}

// covered reports whether field or one of its parents is already included.
func covered(included bson.D, field string) bool {
	for _, e := range included {
		if e.Key == field || strings.HasPrefix(field, e.Key+".") {
			return true
		}
	}
	return false
}

func (c *Compiler) compilePipeline(stages []queryir.Stage) ([]bson.D, error) {
	out := make([]bson.D, 0, len(stages))
	for _, stage := range stages {
		switch s := stage.(type) {
		case queryir.MatchStage:
			filter, err := c.CompileFilter(s.Filter)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.D{{Key: "$match", Value: filter}})

		case queryir.GroupStage:
			group := bson.D{{Key: IDField, Value: nil}}
			for _, acc := range s.Accumulators {
				expr, err := accumulator(acc)
				if err != nil {
					return nil, err
				}
				group = append(group, bson.E{Key: acc.Alias, Value: expr})
			}
			out = append(out, bson.D{{Key: "$group", Value: group}})

		case queryir.ProjectStage:
			project := make(bson.D, len(s.Exclude))
			for i, f := range s.Exclude {
				project[i] = bson.E{Key: f, Value: 0}
			}
			out = append(out, bson.D{{Key: "$project", Value: project}})

		default:
			return nil, fmt.Errorf("unsupported stage type: %T", stage)
		}
	}
	return out, nil
}

func accumulator(acc queryir.Accumulator) (bson.D, error) {
	ref := "$" + storeField(acc.Field)
	switch acc.Op {
	case queryir.AccCount:
		if acc.Field == "" {
			return bson.D{{Key: "$sum", Value: 1}}, nil
		}
		return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: ref}}, "missing"}}},
			0,
			1,
		}}}}}, nil
	case queryir.AccSum, queryir.AccAvg, queryir.AccMin, queryir.AccMax:
		if acc.Field == "" {
			return nil, fmt.Errorf("accumulator %q: %s needs a field", acc.Alias, acc.Op)
		}
		return bson.D{{Key: "$" + string(acc.Op), Value: ref}}, nil
	}
	return nil, fmt.Errorf("accumulator %q: unsupported op %q", acc.Alias, acc.Op)
}

// storeField maps the Cosmos identifier property to the store's.
func storeField(field string) string {
	if field == "id" {
		return IDField
	}
	return field
}

// Value converts an IR literal to the Go value the bson encoder expects.
// Objects become bson.D with sorted keys.
func Value(v ir.IRValue) any {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return int64(val)
	case ir.IRFloat:
		return float64(val)
	case ir.IRBool:
		return bool(val)
	case ir.IRArray:
		out := make(bson.A, len(val))
		for i, elem := range val {
			out[i] = Value(elem)
		}
		return out
	case ir.IRObject:
		out := make(bson.D, 0, len(val))
		for _, k := range val.SortedKeys() {
			out = append(out, bson.E{Key: k, Value: Value(val[k])})
		}
		return out
	}
	return nil
}
