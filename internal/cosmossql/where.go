package cosmossql

import (
	"strings"

	"github.com/roach88/cosmongo/internal/queryir"
)

type connector int

const (
	connAnd connector = iota
	connOr
)

// parseWhere parses a WHERE clause (or a parenthesized group of one) into
// a predicate. A nil result means "no constraint".
//
// Connectors are split at paren depth 0 only. When AND and OR are mixed
// at one level a diagnostic is recorded and AND binds tighter than OR.
func (p *parser) parseWhere(toks []token) queryir.Predicate {
	toks = trimSpace(toks)
	segments, conns := splitConnectors(toks)

	if len(segments) == 1 {
		return p.parseLeaf(segments[0])
	}

	mixed := false
	for _, c := range conns[1:] {
		if c != conns[0] {
			mixed = true
			break
		}
	}

	if !mixed {
		preds := p.parseAll(segments)
		if conns[0] == connOr {
			return orOf(preds)
		}
		return andOf(preds)
	}

	p.diag(queryir.DiagMixedConnectors, join(toks),
		"AND and OR mixed without parentheses; AND binds tighter")

	// Group AND runs, then OR the groups.
	var groups [][][]token
	run := [][]token{segments[0]}
	for i, c := range conns {
		if c == connOr {
			groups = append(groups, run)
			run = nil
		}
		run = append(run, segments[i+1])
	}
	groups = append(groups, run)

	var ors []queryir.Predicate
	for _, g := range groups {
		conj := andOf(p.parseAll(g))
		if conj == nil {
			// One OR branch is unconstrained, so the whole disjunction is.
			return nil
		}
		ors = append(ors, conj)
	}
	return orOf(ors)
}

func (p *parser) parseAll(segments [][]token) []queryir.Predicate {
	preds := make([]queryir.Predicate, len(segments))
	for i, seg := range segments {
		preds[i] = p.parseLeaf(seg)
	}
	return preds
}

// andOf drops unconstrained children; a lone child is returned bare.
func andOf(preds []queryir.Predicate) queryir.Predicate {
	var kept []queryir.Predicate
	for _, pred := range preds {
		if pred != nil {
			kept = append(kept, pred)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return queryir.And{Predicates: kept}
}

// orOf returns nil when any branch is unconstrained: the disjunction then
// matches everything.
func orOf(preds []queryir.Predicate) queryir.Predicate {
	for _, pred := range preds {
		if pred == nil {
			return nil
		}
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return queryir.Or{Predicates: preds}
}

// splitConnectors splits toks at top-level AND/OR. The AND of a
// BETWEEN x AND y belongs to the BETWEEN.
func splitConnectors(toks []token) ([][]token, []connector) {
	var segments [][]token
	var conns []connector
	depth, start := 0, 0
	inBetween := false

	for i, t := range toks {
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
			continue
		}
		if depth != 0 || t.kind != tokIdent {
			continue
		}
		switch {
		case t.keyword("BETWEEN"):
			inBetween = true
		case t.keyword("AND") && inBetween:
			inBetween = false
		case t.keyword("AND"), t.keyword("OR"):
			segments = append(segments, trimSpace(toks[start:i]))
			if t.keyword("AND") {
				conns = append(conns, connAnd)
			} else {
				conns = append(conns, connOr)
			}
			start = i + 1
		}
	}
	segments = append(segments, trimSpace(toks[start:]))
	return segments, conns
}

// parseLeaf handles one connector-free segment: a parenthesized group
// recurses, anything else goes through the predicate dispatch table.
func (p *parser) parseLeaf(toks []token) queryir.Predicate {
	toks = trimSpace(toks)
	text := join(toks)

	if !balanced(toks) {
		p.diag(queryir.DiagUnbalancedParens, text, "unbalanced parentheses; predicate ignored")
		return nil
	}
	if inner, ok := stripOuterParens(toks); ok {
		return p.parseWhere(inner)
	}
	return p.dispatch(text)
}

// parseWhereText re-enters the WHERE parser on a text fragment.
func (p *parser) parseWhereText(text string) queryir.Predicate {
	toks, err := tokenize(strings.TrimSpace(text))
	if err != nil {
		p.diag(queryir.DiagTokenizeFailed, text, "%v", err)
		return nil
	}
	return p.parseWhere(mergeBrackets(toks))
}
