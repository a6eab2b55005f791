package queryir

import "github.com/roach88/cosmongo/internal/ir"

// Snapshot renders q as plain maps and slices ready for
// ir.MarshalCanonical. Field order is irrelevant; canonical encoding sorts
// keys. Identical queries always produce identical snapshots.
func Snapshot(q *ParsedQuery) map[string]any {
	if q == nil {
		return nil
	}

	sort := make([]any, len(q.Sort))
	for i, sf := range q.Sort {
		sort[i] = map[string]any{"field": sf.Field, "direction": sf.Direction.String()}
	}

	var projection any
	if q.Projection != nil {
		fields := make([]any, len(q.Projection))
		for i, f := range q.Projection {
			fields[i] = f
		}
		projection = fields
	}

	pipeline := make([]any, len(q.Pipeline))
	for i, stage := range q.Pipeline {
		pipeline[i] = snapshotStage(stage)
	}

	diagnostics := make([]any, len(q.Diagnostics))
	for i, d := range q.Diagnostics {
		diagnostics[i] = map[string]any{"code": d.Code, "message": d.Message, "fragment": d.Fragment}
	}

	return map[string]any{
		"filter":      SnapshotPredicate(q.Filter),
		"sort":        sort,
		"projection":  projection,
		"skip":        q.Skip,
		"limit":       q.Limit,
		"isAggregate": q.IsAggregate,
		"aggregate":   q.Aggregate.String(),
		"pipeline":    pipeline,
		"diagnostics": diagnostics,
	}
}

// SnapshotPredicate renders one predicate tree. Nil renders as nil.
func SnapshotPredicate(p Predicate) any {
	switch pred := p.(type) {
	case nil:
		return nil
	case Eq:
		return map[string]any{"kind": "eq", "field": pred.Field, "value": value(pred.Value)}
	case Cmp:
		return map[string]any{"kind": "cmp", "op": string(pred.Op), "field": pred.Field, "value": value(pred.Value)}
	case In:
		values := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			values[i] = value(v)
		}
		return map[string]any{"kind": "in", "field": pred.Field, "values": values, "negate": pred.Negate}
	case Exists:
		return map[string]any{"kind": "exists", "field": pred.Field, "exists": pred.Exists}
	case Regex:
		return map[string]any{"kind": "regex", "field": pred.Field, "pattern": pred.Pattern, "ignoreCase": pred.IgnoreCase}
	case StrLen:
		return map[string]any{"kind": "strlen", "field": pred.Field, "op": string(pred.Op), "length": pred.Length}
	case And:
		return map[string]any{"kind": "and", "predicates": snapshotList(pred.Predicates)}
	case Or:
		return map[string]any{"kind": "or", "predicates": snapshotList(pred.Predicates)}
	case Not:
		return map[string]any{"kind": "not", "predicate": SnapshotPredicate(pred.Predicate)}
	}
	return map[string]any{"kind": "unknown"}
}

func snapshotList(preds []Predicate) []any {
	out := make([]any, len(preds))
	for i, p := range preds {
		out[i] = SnapshotPredicate(p)
	}
	return out
}

func snapshotStage(s Stage) any {
	switch stage := s.(type) {
	case MatchStage:
		return map[string]any{"stage": "match", "filter": SnapshotPredicate(stage.Filter)}
	case GroupStage:
		accs := make([]any, len(stage.Accumulators))
		for i, acc := range stage.Accumulators {
			accs[i] = map[string]any{"alias": acc.Alias, "op": string(acc.Op), "field": acc.Field}
		}
		return map[string]any{"stage": "group", "accumulators": accs}
	case ProjectStage:
		exclude := make([]any, len(stage.Exclude))
		for i, f := range stage.Exclude {
			exclude[i] = f
		}
		return map[string]any{"stage": "project", "exclude": exclude}
	}
	return map[string]any{"stage": "unknown"}
}

// value keeps nil IRValues encodable.
func value(v ir.IRValue) any {
	if v == nil {
		return ir.IRNull{}
	}
	return v
}
