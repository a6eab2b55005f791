package querymongo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/cosmongo/internal/cosmossql"
	"github.com/roach88/cosmongo/internal/ir"
	"github.com/roach88/cosmongo/internal/queryir"
)

func compileSQL(t *testing.T, sql string, params ...cosmossql.Parameter) *Compiled {
	t.Helper()
	out, err := NewCompiler().Compile(cosmossql.Parse(sql, params))
	require.NoError(t, err)
	return out
}

func assertDoc(t *testing.T, want, got any) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_NilQuery(t *testing.T) {
	_, err := NewCompiler().Compile(nil)
	assert.Error(t, err)
}

func TestCompile_ParameterEquality(t *testing.T) {
	out := compileSQL(t, "SELECT * FROM c WHERE c.status = @s", cosmossql.Parameter{Name: "s", Value: "open"})

	assert.False(t, out.IsAggregate)
	assertDoc(t, bson.D{{Key: "status", Value: "open"}}, out.Filter)
	assert.Nil(t, out.Sort)
	assert.Nil(t, out.Projection)
}

func TestCompile_CountPipeline(t *testing.T) {
	out := compileSQL(t, "SELECT VALUE COUNT(1) FROM c WHERE IS_DEFINED(c.archivedAt)")

	require.True(t, out.IsAggregate)
	assert.Equal(t, queryir.AggregateScalar, out.Aggregate)
	assertDoc(t, []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "archivedAt", Value: bson.D{{Key: "$exists", Value: true}}}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: nil}, {Key: "value", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}, out.Pipeline)
}

func TestCompile_ProjectionSortPaging(t *testing.T) {
	out := compileSQL(t, "SELECT c.id, c.name FROM c ORDER BY c.createdAt DESC OFFSET 10 LIMIT 5")

	assertDoc(t, bson.D{{Key: "_id", Value: 1}, {Key: "name", Value: 1}}, out.Projection)
	assertDoc(t, bson.D{{Key: "createdAt", Value: -1}}, out.Sort)
	assert.Equal(t, int64(10), out.Skip)
	assert.Equal(t, int64(5), out.Limit)
}

func TestCompile_ProjectionSuppressesID(t *testing.T) {
	out := compileSQL(t, "SELECT c.name, c.address, c.address.city FROM c")

	assertDoc(t, bson.D{
		{Key: "name", Value: 1},
		{Key: "address", Value: 1},
		{Key: "_id", Value: 0},
	}, out.Projection)
}

func TestCompile_ProjectionPathCollision(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bson.D
	}{
		{"parent first", "SELECT c.n, c.n.x FROM c", bson.D{{Key: "n", Value: 1}, {Key: "_id", Value: 0}}},
		{"sub-path first", "SELECT c.n.x, c.n FROM c", bson.D{{Key: "n", Value: 1}, {Key: "_id", Value: 0}}},
		{"several sub-paths", "SELECT c.n.x, c.m, c.n.y.z, c.n FROM c", bson.D{
			{Key: "m", Value: 1},
			{Key: "n", Value: 1},
			{Key: "_id", Value: 0},
		}},
		{"sibling prefix kept", "SELECT c.nx, c.n FROM c", bson.D{
			{Key: "nx", Value: 1},
			{Key: "n", Value: 1},
			{Key: "_id", Value: 0},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDoc(t, tt.want, compileSQL(t, tt.sql).Projection)
		})
	}
}

func TestCompile_AndCollisionKeepsBothBounds(t *testing.T) {
	out := compileSQL(t, "SELECT * FROM c WHERE c.a > 5 AND c.a < 10")

	assertDoc(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "a", Value: bson.D{{Key: "$gt", Value: int64(5)}}}},
		bson.D{{Key: "a", Value: bson.D{{Key: "$lt", Value: int64(10)}}}},
	}}}, out.Filter)
}

func TestCompile_AndFlatMerge(t *testing.T) {
	out := compileSQL(t, "SELECT * FROM c WHERE c.a = 1 AND c.b = 'x' AND c.id = 'k'")

	assertDoc(t, bson.D{
		{Key: "a", Value: int64(1)},
		{Key: "b", Value: "x"},
		{Key: "_id", Value: "k"},
	}, out.Filter)
}

func TestCompile_AndWithOperatorChild(t *testing.T) {
	out := compileSQL(t, "SELECT * FROM c WHERE c.a = 1 AND (c.b = 2 OR c.c = 3)")

	assertDoc(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "a", Value: int64(1)}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "b", Value: int64(2)}},
			bson.D{{Key: "c", Value: int64(3)}},
		}}},
	}}}, out.Filter)
}

func TestCompileFilter_Forms(t *testing.T) {
	tests := []struct {
		name string
		pred queryir.Predicate
		want bson.D
	}{
		{
			name: "nil matches all",
			pred: nil,
			want: bson.D{},
		},
		{
			name: "not equal",
			pred: queryir.Cmp{Op: queryir.OpNe, Field: "state", Value: ir.IRString("closed")},
			want: bson.D{{Key: "state", Value: bson.D{{Key: "$ne", Value: "closed"}}}},
		},
		{
			name: "in",
			pred: queryir.In{Field: "tags", Values: []ir.IRValue{ir.IRString("a"), ir.IRInt(2)}},
			want: bson.D{{Key: "tags", Value: bson.D{{Key: "$in", Value: bson.A{"a", int64(2)}}}}},
		},
		{
			name: "not in",
			pred: queryir.In{Field: "tags", Values: []ir.IRValue{ir.IRNull{}}, Negate: true},
			want: bson.D{{Key: "tags", Value: bson.D{{Key: "$nin", Value: bson.A{nil}}}}},
		},
		{
			name: "missing",
			pred: queryir.Exists{Field: "deletedAt", Exists: false},
			want: bson.D{{Key: "deletedAt", Value: bson.D{{Key: "$exists", Value: false}}}},
		},
		{
			name: "case-sensitive regex",
			pred: queryir.Regex{Field: "name", Pattern: "^ab"},
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^ab"}}}},
		},
		{
			name: "case-insensitive regex",
			pred: queryir.Regex{Field: "name", Pattern: "^ab$", IgnoreCase: true},
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^ab$"}, {Key: "$options", Value: "i"}}}},
		},
		{
			name: "string length",
			pred: queryir.StrLen{Field: "code", Op: queryir.OpGt, Length: 3},
			want: bson.D{{Key: "$expr", Value: bson.D{{Key: "$gt", Value: bson.A{
				bson.D{{Key: "$strLenCP", Value: bson.D{{Key: "$cond", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$code"}}, "string"}}},
					"$code",
					"",
				}}}}},
				int64(3),
			}}}}},
		},
		{
			name: "not",
			pred: queryir.Not{Predicate: queryir.Eq{Field: "a", Value: ir.IRBool(true)}},
			want: bson.D{{Key: "$nor", Value: bson.A{bson.D{{Key: "a", Value: true}}}}},
		},
		{
			name: "empty or matches nothing",
			pred: queryir.Or{},
			want: bson.D{{Key: "$expr", Value: false}},
		},
		{
			name: "single-child and unwraps",
			pred: queryir.And{Predicates: []queryir.Predicate{nil, queryir.Eq{Field: "a", Value: ir.IRInt(1)}}},
			want: bson.D{{Key: "a", Value: int64(1)}},
		},
		{
			name: "object value keys sorted",
			pred: queryir.Eq{Field: "meta", Value: ir.IRObject{"z": ir.IRInt(1), "a": ir.IRFloat(1.5)}},
			want: bson.D{{Key: "meta", Value: bson.D{{Key: "a", Value: 1.5}, {Key: "z", Value: int64(1)}}}},
		},
	}

	c := NewCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.CompileFilter(tt.pred)
			require.NoError(t, err)
			assertDoc(t, tt.want, got)
		})
	}
}

func TestCompileFilter_UnknownOperator(t *testing.T) {
	_, err := NewCompiler().CompileFilter(queryir.Cmp{Op: "like", Field: "a", Value: ir.IRInt(1)})
	assert.ErrorContains(t, err, "unsupported comparison operator")
}

func TestCompile_ObjectAggregate(t *testing.T) {
	out := compileSQL(t, "SELECT VALUE {total: SUM(c.amount), n: COUNT(c.amount), hi: MAX(c.amount)} FROM c WHERE c.kind = 'sale'")

	require.True(t, out.IsAggregate)
	assert.Equal(t, queryir.AggregateObject, out.Aggregate)
	assertDoc(t, []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "kind", Value: "sale"}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$amount"}}, "missing"}}},
				0,
				1,
			}}}}}},
			{Key: "hi", Value: bson.D{{Key: "$max", Value: "$amount"}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
	}, out.Pipeline)
}

func TestCompile_AccumulatorWithoutField(t *testing.T) {
	q := &queryir.ParsedQuery{
		IsAggregate: true,
		Aggregate:   queryir.AggregateScalar,
		Pipeline: []queryir.Stage{
			queryir.MatchStage{},
			queryir.GroupStage{Accumulators: []queryir.Accumulator{{Alias: "value", Op: queryir.AccSum}}},
		},
	}
	_, err := NewCompiler().Compile(q)
	assert.ErrorContains(t, err, "needs a field")
}

func TestCompile_Deterministic(t *testing.T) {
	sql := "SELECT * FROM c WHERE c.a IN (1, 2) AND LOWER(c.n) = 'x' OR c.b != null ORDER BY c.a"
	first := compileSQL(t, sql)
	for i := 0; i < 5; i++ {
		assertDoc(t, first, compileSQL(t, sql))
	}
}

func TestCompile_SortDeduplicates(t *testing.T) {
	q := &queryir.ParsedQuery{Sort: []queryir.SortField{
		{Field: "a"},
		{Field: "id", Direction: queryir.Descending},
		{Field: "a", Direction: queryir.Descending},
	}}
	out, err := NewCompiler().Compile(q)
	require.NoError(t, err)
	assertDoc(t, bson.D{{Key: "a", Value: 1}, {Key: "_id", Value: -1}}, out.Sort)
}
