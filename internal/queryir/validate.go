package queryir

import (
	"fmt"
	"regexp"
)

// ValidationResult contains the structural analysis of a ParsedQuery.
type ValidationResult struct {
	// Valid is true when no invariant is violated.
	Valid bool

	// Warnings lists every violated invariant. Empty when Valid is true.
	Warnings []string
}

// Validate checks the ParsedQuery invariants:
//  1. Exactly one authoritative path - aggregate queries leave every
//     find-path field at its zero value, find queries carry no pipeline
//  2. Skip and Limit are non-negative
//  3. Pipelines have the shape match → group → [project]
//  4. Field names are never empty
//  5. Regex patterns compile
//
// Violations are reported as warnings rather than errors; the adapter
// logs them and still executes the query.
//
// Validate is a pure function with no side effects.
func Validate(q *ParsedQuery) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery(q)

	return ValidationResult{
		Valid:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q *ParsedQuery) {
	if q == nil {
		v.addWarning("nil query")
		return
	}

	if q.Skip < 0 {
		v.addWarning("negative skip %d", q.Skip)
	}
	if q.Limit < 0 {
		v.addWarning("negative limit %d", q.Limit)
	}

	if q.IsAggregate {
		v.validateAggregate(q)
		return
	}

	if len(q.Pipeline) > 0 {
		v.addWarning("find query carries a %d-stage pipeline", len(q.Pipeline))
	}
	if q.Aggregate != AggregateNone {
		v.addWarning("find query has aggregate kind %s", q.Aggregate)
	}
	for i, sf := range q.Sort {
		if sf.Field == "" {
			v.addWarning("sort[%d] has empty field", i)
		}
	}
	for i, f := range q.Projection {
		if f == "" {
			v.addWarning("projection[%d] is empty", i)
		}
	}
	v.validatePredicate(q.Filter)
}

func (v *validator) validateAggregate(q *ParsedQuery) {
	if q.Filter != nil || len(q.Sort) > 0 || q.Projection != nil || q.Skip != 0 || q.Limit != 0 {
		v.addWarning("aggregate query also sets find-path fields")
	}
	if q.Aggregate == AggregateNone {
		v.addWarning("aggregate query has no aggregate kind")
	}

	n := len(q.Pipeline)
	if n < 2 || n > 3 {
		v.addWarning("pipeline has %d stages, want match → group → [project]", n)
	}

	for i, stage := range q.Pipeline {
		switch s := stage.(type) {
		case MatchStage:
			if i != 0 {
				v.addWarning("match stage at position %d", i)
			}
			v.validatePredicate(s.Filter)
		case GroupStage:
			if i != 1 {
				v.addWarning("group stage at position %d", i)
			}
			v.validateGroup(q.Aggregate, s)
		case ProjectStage:
			if i != 2 {
				v.addWarning("project stage at position %d", i)
			}
		default:
			v.addWarning("unknown stage type: %T", stage)
		}
	}
}

func (v *validator) validateGroup(kind AggregateKind, g GroupStage) {
	if len(g.Accumulators) == 0 {
		v.addWarning("group stage has no accumulators")
		return
	}
	if kind == AggregateScalar {
		if len(g.Accumulators) != 1 || g.Accumulators[0].Alias != ScalarAlias {
			v.addWarning("scalar aggregate must have exactly one %q accumulator", ScalarAlias)
		}
	}

	seen := make(map[string]bool, len(g.Accumulators))
	for _, acc := range g.Accumulators {
		if acc.Alias == "" {
			v.addWarning("accumulator with empty alias")
		}
		if seen[acc.Alias] {
			v.addWarning("duplicate accumulator alias %q", acc.Alias)
		}
		seen[acc.Alias] = true

		switch acc.Op {
		case AccCount:
		case AccSum, AccAvg, AccMin, AccMax:
			if acc.Field == "" {
				v.addWarning("accumulator %q (%s) has no field", acc.Alias, acc.Op)
			}
		default:
			v.addWarning("accumulator %q has unknown op %q", acc.Alias, acc.Op)
		}
	}
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return // nil predicates are valid (no filter)
	}

	switch pred := p.(type) {
	case Eq:
		v.checkField(pred.Field)
	case Cmp:
		v.checkField(pred.Field)
		v.checkOp(pred.Op)
	case In:
		v.checkField(pred.Field)
		if len(pred.Values) == 0 {
			v.addWarning("IN on '%s' has no values", pred.Field)
		}
	case Exists:
		v.checkField(pred.Field)
	case Regex:
		v.checkField(pred.Field)
		if _, err := regexp.Compile(pred.Pattern); err != nil {
			v.addWarning("regex on '%s' does not compile: %v", pred.Field, err)
		}
	case StrLen:
		v.checkField(pred.Field)
		v.checkOp(pred.Op)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		if len(pred.Predicates) == 0 {
			v.addWarning("empty OR never matches")
		}
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Not:
		if pred.Predicate == nil {
			v.addWarning("NOT without operand")
		}
		v.validatePredicate(pred.Predicate)
	default:
		v.addWarning("unknown predicate type: %T", p)
	}
}

func (v *validator) checkField(field string) {
	if field == "" {
		v.addWarning("predicate has empty field name")
	}
}

func (v *validator) checkOp(op CmpOp) {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
	default:
		v.addWarning("unknown comparison operator %q", op)
	}
}
