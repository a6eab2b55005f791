package cosmossql

import (
	"strings"

	"github.com/roach88/cosmongo/internal/queryir"
)

// parseAggregate recognizes the three aggregate shapes and returns nil for
// everything else:
//
//	SELECT VALUE COUNT(1)                       scalar
//	SELECT VALUE SUM(c.amount)                  scalar
//	SELECT VALUE {n: COUNT(1), t: SUM(c.x)}     object
//
// An unaliased select list made only of aliased aggregate calls
// (SELECT COUNT(1) AS n) is treated as an object aggregate too.
func (p *parser) parseAggregate(sel selectHead, c clauses) *queryir.ParsedQuery {
	kind, accs, ok := p.aggregateShape(sel.spec)
	if !ok {
		return nil
	}

	var filter queryir.Predicate
	if c.where != nil {
		filter = p.parseWhere(c.where)
	}
	if sel.top != "" || c.orderBy != nil || c.offset != nil || c.limit != nil {
		p.diag(queryir.DiagUnsupportedSelect, sel.spec, "TOP, ORDER BY, OFFSET and LIMIT are ignored for aggregates")
	}

	pipeline := []queryir.Stage{
		queryir.MatchStage{Filter: filter},
		queryir.GroupStage{Accumulators: accs},
	}
	if kind == queryir.AggregateObject {
		pipeline = append(pipeline, queryir.ProjectStage{Exclude: []string{"_id"}})
	}

	return &queryir.ParsedQuery{
		IsAggregate: true,
		Aggregate:   kind,
		Pipeline:    pipeline,
	}
}

func (p *parser) aggregateShape(spec string) (queryir.AggregateKind, []queryir.Accumulator, bool) {
	if m := valuePrefix.FindStringSubmatch(spec); m != nil {
		value := strings.TrimSpace(m[1])

		if call := aggregateCall.FindStringSubmatch(value); call != nil {
			acc, ok := p.accumulator(queryir.ScalarAlias, call[1], call[2], value)
			if !ok {
				return queryir.AggregateNone, nil, false
			}
			return queryir.AggregateScalar, []queryir.Accumulator{acc}, true
		}

		if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
			accs := p.objectAccumulators(value[1 : len(value)-1])
			if len(accs) == 0 {
				return queryir.AggregateNone, nil, false
			}
			return queryir.AggregateObject, accs, true
		}
		return queryir.AggregateNone, nil, false
	}

	items := splitArgs(spec)
	if len(items) == 0 {
		return queryir.AggregateNone, nil, false
	}
	var accs []queryir.Accumulator
	for _, item := range items {
		m := aggregateItem.FindStringSubmatch(item)
		if m == nil {
			if aggregateCall.MatchString(item) {
				p.diag(queryir.DiagUnsupportedSelect, item, "aggregate in a select list needs an alias")
			}
			return queryir.AggregateNone, nil, false
		}
		acc, ok := p.accumulator(m[3], m[1], m[2], item)
		if !ok {
			return queryir.AggregateNone, nil, false
		}
		accs = append(accs, acc)
	}
	return queryir.AggregateObject, accs, true
}

// objectAccumulators parses the body of SELECT VALUE {alias: AGG(arg), ...}.
// Entries that are not aggregate calls are dropped with a diagnostic.
func (p *parser) objectAccumulators(body string) []queryir.Accumulator {
	var accs []queryir.Accumulator
	seen := map[string]bool{}
	for _, entry := range splitArgs(body) {
		m := objectEntry.FindStringSubmatch(entry)
		if m == nil {
			p.diag(queryir.DiagUnsupportedSelect, entry, "object aggregate entry is not alias: AGG(arg); ignored")
			continue
		}
		alias := m[1]
		if alias[0] == '"' || alias[0] == '\'' {
			alias = alias[1 : len(alias)-1]
		}
		if alias == "" || alias == "_id" || seen[alias] {
			p.diag(queryir.DiagUnsupportedSelect, entry, "invalid or duplicate aggregate alias %q; ignored", alias)
			continue
		}
		acc, ok := p.accumulator(alias, m[2], m[3], entry)
		if !ok {
			continue
		}
		seen[alias] = true
		accs = append(accs, acc)
	}
	return accs
}

// accumulator builds one accumulator. COUNT(1), COUNT(*) and COUNT() count
// every document; COUNT(c.f) counts documents where f is defined. The
// other functions need a property argument.
func (p *parser) accumulator(alias, fn, arg, fragment string) (queryir.Accumulator, bool) {
	op := queryir.AccOp(strings.ToLower(fn))
	arg = strings.TrimSpace(arg)

	if op == queryir.AccCount && (arg == "" || arg == "*" || intLiteral.MatchString(arg) || arg == p.alias) {
		return queryir.Accumulator{Alias: alias, Op: op}, true
	}

	field, ok := p.fieldPath(arg)
	if !ok {
		p.diag(queryir.DiagUnsupportedSelect, fragment, "%s needs a property argument, got %q", strings.ToUpper(fn), arg)
		return queryir.Accumulator{}, false
	}
	return queryir.Accumulator{Alias: alias, Op: op, Field: field}, true
}
