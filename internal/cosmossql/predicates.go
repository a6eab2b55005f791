package cosmossql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/cosmongo/internal/ir"
	"github.com/roach88/cosmongo/internal/queryir"
)

// predicateForm is one entry of the dispatch table: a structural matcher
// and the builder for the predicate it recognizes. A builder returning
// ok=false hands the fragment to the next form.
type predicateForm struct {
	name  string
	match *regexp.Regexp
	build func(p *parser, m []string) (pred queryir.Predicate, ok bool)
}

const (
	opPattern      = `<>|!=|<=|>=|=|<|>`
	literalPattern = `@[A-Za-z_]\w*|'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"|-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?|(?i:true|false|null)`
)

// predicateForms is evaluated in order; the first form that matches and
// builds wins. Populated in init because the NOT form recurses into the
// WHERE parser, which consults this table.
var predicateForms []predicateForm

func init() {
	predicateForms = []predicateForm{
		{
			name:  "is_defined",
			match: regexp.MustCompile(`(?i)^(NOT\s+)?IS_DEFINED\s*\(\s*(` + fieldPattern + `)\s*\)(?:\s*=\s*(true|false))?$`),
			build: (*parser).buildIsDefined,
		},
		{
			name:  "array_contains",
			match: regexp.MustCompile(`(?i)^(NOT\s+)?ARRAY_CONTAINS\s*\((.+)\)$`),
			build: (*parser).buildArrayContains,
		},
		{
			name:  "stringequals",
			match: regexp.MustCompile(`(?i)^(NOT\s+)?STRINGEQUALS\s*\((.+)\)$`),
			build: (*parser).buildStringEquals,
		},
		{
			name:  "string_match",
			match: regexp.MustCompile(`(?i)^(NOT\s+)?(CONTAINS|STARTSWITH|ENDSWITH)\s*\((.+)\)$`),
			build: (*parser).buildStringMatch,
		},
		{
			name:  "lower_in",
			match: regexp.MustCompile(`(?i)^(?:LOWER|UPPER)\s*\(\s*(` + fieldPattern + `)\s*\)\s+(NOT\s+)?IN\s*\((.*)\)$`),
			build: (*parser).buildLowerIn,
		},
		{
			name:  "lower_eq",
			match: regexp.MustCompile(`(?i)^(?:LOWER|UPPER)\s*\(\s*(` + fieldPattern + `)\s*\)\s*(=|!=|<>)\s*(.+)$`),
			build: (*parser).buildLowerEq,
		},
		{
			name:  "length",
			match: regexp.MustCompile(`(?i)^LENGTH\s*\(\s*(` + fieldPattern + `)\s*\)\s*(` + opPattern + `)\s*(.+)$`),
			build: (*parser).buildLength,
		},
		{
			name:  "between",
			match: regexp.MustCompile(`(?i)^(` + fieldPattern + `)\s+(NOT\s+)?BETWEEN\s+(.+?)\s+AND\s+(.+)$`),
			build: (*parser).buildBetween,
		},
		{
			name:  "in",
			match: regexp.MustCompile(`(?i)^(` + fieldPattern + `)\s+(NOT\s+)?IN\s*\((.*)\)$`),
			build: (*parser).buildIn,
		},
		{
			name:  "compare_reversed",
			match: regexp.MustCompile(`^(` + literalPattern + `)\s*(` + opPattern + `)\s*(` + fieldPattern + `)$`),
			build: (*parser).buildCompareReversed,
		},
		{
			name:  "compare",
			match: regexp.MustCompile(`^(` + fieldPattern + `)\s*(` + opPattern + `)\s*(.+)$`),
			build: (*parser).buildCompare,
		},
		{
			name:  "not",
			match: regexp.MustCompile(`(?i)^NOT\b\s*(.+)$`),
			build: (*parser).buildNot,
		},
		{
			name:  "constant",
			match: regexp.MustCompile(`(?i)^true$`),
			build: func(*parser, []string) (queryir.Predicate, bool) { return nil, true },
		},
		{
			name:  "truthy",
			match: regexp.MustCompile(`^(` + fieldPattern + `)$`),
			build: (*parser).buildTruthy,
		},
	}
}

// dispatch matches one leaf against the predicate forms. An unrecognized
// leaf contributes no constraint and records a diagnostic.
func (p *parser) dispatch(text string) queryir.Predicate {
	for _, form := range predicateForms {
		m := form.match.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if pred, ok := form.build(p, m); ok {
			return pred
		}
	}
	p.diag(queryir.DiagUnrecognizedPredicate, text, "unrecognized predicate; matching all documents")
	return nil
}

func (p *parser) buildIsDefined(m []string) (queryir.Predicate, bool) {
	field, ok := p.fieldPath(m[2])
	if !ok {
		return nil, false
	}
	exists := m[1] == ""
	if strings.EqualFold(m[3], "false") {
		exists = !exists
	}
	return queryir.Exists{Field: field, Exists: exists}, true
}

// buildArrayContains handles both argument orders:
//
//	ARRAY_CONTAINS(@ids, c.id)     c.id is one of @ids
//	ARRAY_CONTAINS(c.tags, 'x')    'x' is an element of c.tags
func (p *parser) buildArrayContains(m []string) (queryir.Predicate, bool) {
	args := splitArgs(m[2])
	if len(args) < 2 || len(args) > 3 {
		return nil, false
	}
	negate := m[1] != ""

	if p.isAliasedField(args[1]) && !p.isAliasedField(args[0]) {
		field, ok := p.fieldPath(args[1])
		if !ok {
			return nil, false
		}
		values := asList(p.parseValue(args[0]))
		return queryir.In{Field: field, Values: values, Negate: negate}, true
	}

	if p.isAliasedField(args[0]) && !p.isAliasedField(args[1]) {
		field, ok := p.fieldPath(args[0])
		if !ok {
			return nil, false
		}
		value := p.parseValue(args[1])
		if negate {
			return queryir.Cmp{Op: queryir.OpNe, Field: field, Value: value}, true
		}
		return queryir.Eq{Field: field, Value: value}, true
	}
	return nil, false
}

func asList(v ir.IRValue) []ir.IRValue {
	if arr, ok := v.(ir.IRArray); ok {
		return []ir.IRValue(arr)
	}
	return []ir.IRValue{v}
}

func (p *parser) buildStringEquals(m []string) (queryir.Predicate, bool) {
	args := splitArgs(m[2])
	if len(args) < 2 || len(args) > 3 {
		return nil, false
	}
	field, ok := p.fieldPath(args[0])
	if !ok {
		return nil, false
	}
	value := p.parseValue(args[1])
	ignoreCase := len(args) == 3 && strings.EqualFold(args[2], "true")

	var pred queryir.Predicate = queryir.Eq{Field: field, Value: value}
	if s, isString := value.(ir.IRString); isString && ignoreCase {
		pred = queryir.Regex{Field: field, Pattern: "^" + regexp.QuoteMeta(string(s)) + "$", IgnoreCase: true}
	}
	if m[1] != "" {
		return queryir.Not{Predicate: pred}, true
	}
	return pred, true
}

func (p *parser) buildStringMatch(m []string) (queryir.Predicate, bool) {
	args := splitArgs(m[3])
	if len(args) < 2 || len(args) > 3 {
		return nil, false
	}
	field, ok := p.fieldPath(args[0])
	if !ok {
		return nil, false
	}
	needle := regexp.QuoteMeta(valueText(p.parseValue(args[1])))

	var pattern string
	switch strings.ToUpper(m[2]) {
	case "CONTAINS":
		pattern = needle
	case "STARTSWITH":
		pattern = "^" + needle
	case "ENDSWITH":
		pattern = needle + "$"
	}
	ignoreCase := len(args) == 3 && strings.EqualFold(args[2], "true")

	var pred queryir.Predicate = queryir.Regex{Field: field, Pattern: pattern, IgnoreCase: ignoreCase}
	if m[1] != "" {
		pred = queryir.Not{Predicate: pred}
	}
	return pred, true
}

// valueText renders a value for use inside a regex.
func valueText(v ir.IRValue) string {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRNull, nil:
		return ""
	}
	return fmt.Sprint(ir.ToAny(v))
}

// exactFold is a case-insensitive whole-string match.
func exactFold(field string, v ir.IRValue) queryir.Regex {
	return queryir.Regex{
		Field:      field,
		Pattern:    "^" + regexp.QuoteMeta(valueText(v)) + "$",
		IgnoreCase: true,
	}
}

func (p *parser) buildLowerEq(m []string) (queryir.Predicate, bool) {
	field, ok := p.fieldPath(m[1])
	if !ok {
		return nil, false
	}
	if p.isAliasedField(m[3]) {
		return nil, false
	}
	pred := exactFold(field, p.parseValue(m[3]))
	if m[2] != "=" {
		return queryir.Not{Predicate: pred}, true
	}
	return pred, true
}

func (p *parser) buildLowerIn(m []string) (queryir.Predicate, bool) {
	field, ok := p.fieldPath(m[1])
	if !ok {
		return nil, false
	}
	var ors []queryir.Predicate
	for _, item := range splitArgs(m[3]) {
		for _, v := range asList(p.parseValue(item)) {
			ors = append(ors, exactFold(field, v))
		}
	}
	if len(ors) == 0 {
		return nil, false
	}

	var pred queryir.Predicate = queryir.Or{Predicates: ors}
	if len(ors) == 1 {
		pred = ors[0]
	}
	if m[2] != "" {
		return queryir.Not{Predicate: pred}, true
	}
	return pred, true
}

func (p *parser) buildLength(m []string) (queryir.Predicate, bool) {
	field, ok := p.fieldPath(m[1])
	if !ok {
		return nil, false
	}
	n, ok := p.parseInt(m[3])
	if !ok {
		return nil, false
	}
	op := comparisonOp(m[2])
	if op == queryir.OpNe {
		return queryir.Not{Predicate: queryir.StrLen{Field: field, Op: queryir.OpEq, Length: n}}, true
	}
	return queryir.StrLen{Field: field, Op: op, Length: n}, true
}

func (p *parser) buildBetween(m []string) (queryir.Predicate, bool) {
	field, ok := p.fieldPath(m[1])
	if !ok {
		return nil, false
	}
	pred := queryir.And{Predicates: []queryir.Predicate{
		queryir.Cmp{Op: queryir.OpGte, Field: field, Value: p.parseValue(m[3])},
		queryir.Cmp{Op: queryir.OpLte, Field: field, Value: p.parseValue(m[4])},
	}}
	if m[2] != "" {
		return queryir.Not{Predicate: pred}, true
	}
	return pred, true
}

func (p *parser) buildIn(m []string) (queryir.Predicate, bool) {
	field, ok := p.fieldPath(m[1])
	if !ok {
		return nil, false
	}
	items := splitArgs(m[3])
	values := make([]ir.IRValue, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		values = append(values, p.parseValue(item))
	}
	return queryir.In{Field: field, Values: values, Negate: m[2] != ""}, true
}

func (p *parser) buildCompareReversed(m []string) (queryir.Predicate, bool) {
	field, ok := p.fieldPath(m[3])
	if !ok {
		return nil, false
	}
	return comparison(field, comparisonOp(m[2]).Flip(), p.parseValue(m[1])), true
}

func (p *parser) buildCompare(m []string) (queryir.Predicate, bool) {
	field, ok := p.fieldPath(m[1])
	if !ok {
		return nil, false
	}
	// Property-to-property comparisons have no filter equivalent.
	if p.isAliasedField(m[3]) {
		return nil, false
	}
	return comparison(field, comparisonOp(m[2]), p.parseValue(m[3])), true
}

func comparison(field string, op queryir.CmpOp, v ir.IRValue) queryir.Predicate {
	if op == queryir.OpEq {
		return queryir.Eq{Field: field, Value: v}
	}
	return queryir.Cmp{Op: op, Field: field, Value: v}
}

func comparisonOp(op string) queryir.CmpOp {
	switch op {
	case "=":
		return queryir.OpEq
	case "!=", "<>":
		return queryir.OpNe
	case ">":
		return queryir.OpGt
	case ">=":
		return queryir.OpGte
	case "<":
		return queryir.OpLt
	default:
		return queryir.OpLte
	}
}

// buildNot negates a parenthesized group or any other leaf. Negating an
// unconstrained operand would match nothing, so it stays unconstrained.
func (p *parser) buildNot(m []string) (queryir.Predicate, bool) {
	inner := p.parseWhereText(m[1])
	if inner == nil {
		return nil, true
	}
	return queryir.Not{Predicate: inner}, true
}

// buildTruthy treats a bare property as "property = true".
func (p *parser) buildTruthy(m []string) (queryir.Predicate, bool) {
	switch strings.ToLower(m[1]) {
	case "true", "false", "null", "not":
		return nil, false
	}
	if !p.isAliasedField(m[1]) {
		return nil, false
	}
	field, ok := p.fieldPath(m[1])
	if !ok {
		return nil, false
	}
	return queryir.Eq{Field: field, Value: ir.IRBool(true)}, true
}
