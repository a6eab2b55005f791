package queryir

import "github.com/roach88/cosmongo/internal/ir"

// ParsedQuery is the translated form of one Cosmos SQL query.
//
// Exactly one of the find path (Filter, Sort, Projection, Skip, Limit) or
// the aggregate path (Pipeline) is authoritative, selected by IsAggregate.
type ParsedQuery struct {
	Filter     Predicate   // nil = match everything
	Sort       []SortField // empty = natural order
	Projection []string    // nil = all fields
	Skip       int64
	Limit      int64 // 0 = unbounded

	IsAggregate bool
	Aggregate   AggregateKind
	Pipeline    []Stage

	// Diagnostics lists every degradation applied while parsing, in order.
	Diagnostics []Diagnostic
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// SortField is one ORDER BY key.
type SortField struct {
	Field     string
	Direction Direction
}

// AggregateKind distinguishes how aggregate results are unwrapped.
type AggregateKind int

const (
	// AggregateNone marks a find-path query.
	AggregateNone AggregateKind = iota
	// AggregateScalar is SELECT VALUE AGG(...): results unwrap to a bare
	// number under the "value" accumulator.
	AggregateScalar
	// AggregateObject is SELECT VALUE {alias: AGG(...), ...}: results are
	// objects with the synthetic group key removed.
	AggregateObject
)

func (k AggregateKind) String() string {
	switch k {
	case AggregateScalar:
		return "scalar"
	case AggregateObject:
		return "object"
	default:
		return "none"
	}
}

// ScalarAlias is the accumulator name used for scalar aggregates.
const ScalarAlias = "value"

// Diagnostic codes.
const (
	DiagUnrecognizedPredicate = "UNRECOGNIZED_PREDICATE"
	DiagUnbalancedParens      = "UNBALANCED_PARENS"
	DiagMixedConnectors       = "MIXED_CONNECTORS"
	DiagUnresolvedParameter   = "UNRESOLVED_PARAMETER"
	DiagInvalidPaging         = "INVALID_PAGING"
	DiagUnsupportedSelect     = "UNSUPPORTED_SELECT"
	DiagTokenizeFailed        = "TOKENIZE_FAILED"
)

// Diagnostic records one fragment the translator could not fully honor.
type Diagnostic struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Fragment string `json:"fragment,omitempty"`
}

// Predicate is a filter condition. Sealed to this package.
type Predicate interface {
	predicateNode()
}

// CmpOp is a comparison operator.
type CmpOp string

const (
	OpEq  CmpOp = "eq"
	OpNe  CmpOp = "ne"
	OpGt  CmpOp = "gt"
	OpGte CmpOp = "gte"
	OpLt  CmpOp = "lt"
	OpLte CmpOp = "lte"
)

// Flip returns the operator with operands swapped (v < f becomes f > v).
func (op CmpOp) Flip() CmpOp {
	switch op {
	case OpGt:
		return OpLt
	case OpGte:
		return OpLte
	case OpLt:
		return OpGt
	case OpLte:
		return OpGte
	default:
		return op
	}
}

// Eq matches documents whose Field equals Value. When the field holds an
// array, any element equal to Value matches.
type Eq struct {
	Field string
	Value ir.IRValue
}

func (Eq) predicateNode() {}

// Cmp is an ordered or inequality comparison of Field against Value.
type Cmp struct {
	Op    CmpOp
	Field string
	Value ir.IRValue
}

func (Cmp) predicateNode() {}

// In matches when Field equals any of Values (or none of them, if Negate).
type In struct {
	Field  string
	Values []ir.IRValue
	Negate bool
}

func (In) predicateNode() {}

// Exists tests whether Field is present on the document.
type Exists struct {
	Field  string
	Exists bool
}

func (Exists) predicateNode() {}

// Regex matches string fields against Pattern (RE2 syntax, anchors
// explicit in the pattern).
type Regex struct {
	Field      string
	Pattern    string
	IgnoreCase bool
}

func (Regex) predicateNode() {}

// StrLen compares the code-point length of a string field against Length.
// Non-string and missing fields count as length zero.
type StrLen struct {
	Field  string
	Op     CmpOp
	Length int64
}

func (StrLen) predicateNode() {}

// And is a conjunction. Empty = always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. Empty = always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates Predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Stage is one aggregation pipeline step. Sealed to this package.
type Stage interface {
	stageNode()
}

// MatchStage filters documents entering the pipeline. Nil Filter matches
// everything.
type MatchStage struct {
	Filter Predicate
}

func (MatchStage) stageNode() {}

// GroupStage folds every matched document into one group (group key null).
type GroupStage struct {
	Accumulators []Accumulator
}

func (GroupStage) stageNode() {}

// ProjectStage removes fields from the grouped output.
type ProjectStage struct {
	Exclude []string
}

func (ProjectStage) stageNode() {}

// AccOp is an accumulator function.
type AccOp string

const (
	AccSum   AccOp = "sum"
	AccCount AccOp = "count"
	AccAvg   AccOp = "avg"
	AccMin   AccOp = "min"
	AccMax   AccOp = "max"
)

// Accumulator computes one output field of a group.
//
// Count with an empty Field counts every document; Count with a Field
// counts documents where the field is defined.
type Accumulator struct {
	Alias string
	Op    AccOp
	Field string
}

// Walk visits p and every nested predicate depth first. Returning false
// from fn stops descent into that node's children.
func Walk(p Predicate, fn func(Predicate) bool) {
	if p == nil || !fn(p) {
		return
	}
	switch pred := p.(type) {
	case And:
		for _, child := range pred.Predicates {
			Walk(child, fn)
		}
	case Or:
		for _, child := range pred.Predicates {
			Walk(child, fn)
		}
	case Not:
		Walk(pred.Predicate, fn)
	}
}
