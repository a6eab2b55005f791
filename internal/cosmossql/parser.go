package cosmossql

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/roach88/cosmongo/internal/ir"
	"github.com/roach88/cosmongo/internal/queryir"
)

// DefaultAlias is assumed when a query has no FROM clause.
const DefaultAlias = "c"

// parser carries the per-call state of one Parse.
type parser struct {
	alias     string
	params    map[string]ir.IRValue
	badParams map[string]error
	diags     []queryir.Diagnostic
}

// Parse translates Cosmos SQL text with bound parameters into a ParsedQuery.
//
// Parse is pure and deterministic: identical inputs give structurally
// identical results. It never returns an error. Fragments it cannot honor
// are logged, recorded in ParsedQuery.Diagnostics, and contribute no
// constraint to the filter, so a query degrades to returning too many
// rows rather than failing or returning none.
func Parse(sql string, params []Parameter) *queryir.ParsedQuery {
	p := &parser{alias: DefaultAlias}
	p.bindParameters(params)

	toks, err := tokenize(sql)
	if err != nil {
		p.diag(queryir.DiagTokenizeFailed, sql, "%v", err)
		return &queryir.ParsedQuery{Diagnostics: p.diags}
	}
	c := splitClauses(mergeBrackets(toks))

	if c.from != nil {
		p.parseFrom(join(c.from))
	}
	if !c.hasSelect {
		p.diag(queryir.DiagUnsupportedSelect, join(toks), "query has no SELECT clause")
	}
	if c.groupBy != nil {
		p.diag(queryir.DiagUnsupportedSelect, join(c.groupBy), "GROUP BY is not supported; clause ignored")
	}

	sel := p.parseSelectHead(join(c.selectToks))

	// Aggregates take precedence over every find-path clause.
	if q := p.parseAggregate(sel, c); q != nil {
		q.Diagnostics = p.diags
		return q
	}

	q := &queryir.ParsedQuery{}
	q.Projection = p.parseProjection(sel.spec)
	if c.where != nil {
		q.Filter = p.parseWhere(c.where)
	}
	if c.orderBy != nil {
		q.Sort = p.parseOrderBy(c.orderBy)
	}

	if sel.top != "" {
		if n, ok := p.parseInt(sel.top); ok {
			q.Limit = n
		} else {
			p.diag(queryir.DiagInvalidPaging, sel.top, "TOP %s is not a non-negative integer", sel.top)
		}
	}
	if c.offset != nil {
		if n, ok := p.parseInt(join(c.offset)); ok {
			q.Skip = n
		} else {
			p.diag(queryir.DiagInvalidPaging, join(c.offset), "OFFSET %s is not a non-negative integer", join(c.offset))
		}
	}
	if c.limit != nil {
		if n, ok := p.parseInt(join(c.limit)); ok {
			q.Limit = n
		} else {
			p.diag(queryir.DiagInvalidPaging, join(c.limit), "LIMIT %s is not a non-negative integer", join(c.limit))
		}
	}

	q.Diagnostics = p.diags
	return q
}

// diag records a diagnostic and logs it.
func (p *parser) diag(code, fragment, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.diags = append(p.diags, queryir.Diagnostic{Code: code, Message: msg, Fragment: fragment})
	slog.Warn("query diagnostic",
		"code", code,
		"message", msg,
		"fragment", fragment,
	)
}

// clauses holds the top-level clauses of one query.
type clauses struct {
	hasSelect  bool
	selectToks []token
	from       []token
	where      []token
	orderBy    []token
	groupBy    []token
	offset     []token
	limit      []token
}

// splitClauses finds clause keywords at paren depth 0. Keywords inside
// string literals or property paths never match because those are single
// tokens.
func splitClauses(toks []token) clauses {
	var c clauses
	var current *[]token
	depth := 0

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
		}

		if depth == 0 && t.kind == tokIdent {
			next := nextWord(toks, i)
			switch {
			case t.keyword("SELECT") && !c.hasSelect:
				c.hasSelect = true
				c.selectToks = []token{}
				current = &c.selectToks
				continue
			case t.keyword("FROM"):
				c.from = []token{}
				current = &c.from
				continue
			case t.keyword("WHERE"):
				c.where = []token{}
				current = &c.where
				continue
			case t.keyword("ORDER") && next >= 0 && toks[next].keyword("BY"):
				c.orderBy = []token{}
				current = &c.orderBy
				i = next
				continue
			case t.keyword("GROUP") && next >= 0 && toks[next].keyword("BY"):
				c.groupBy = []token{}
				current = &c.groupBy
				i = next
				continue
			case t.keyword("OFFSET"):
				c.offset = []token{}
				current = &c.offset
				continue
			case t.keyword("LIMIT"):
				c.limit = []token{}
				current = &c.limit
				continue
			}
		}

		if current != nil {
			*current = append(*current, t)
		}
	}
	return c
}

// nextWord returns the index of the first non-space token after i, or -1.
func nextWord(toks []token, i int) int {
	for j := i + 1; j < len(toks); j++ {
		if toks[j].kind != tokSpace {
			return j
		}
	}
	return -1
}

var fromClause = regexp.MustCompile(`(?i)^([A-Za-z_$][\w$]*)(?:\s+(?:AS\s+)?([A-Za-z_$][\w$]*))?$`)

func (p *parser) parseFrom(text string) {
	m := fromClause.FindStringSubmatch(text)
	if m == nil {
		p.diag(queryir.DiagUnsupportedSelect, text, "unsupported FROM clause; only FROM <alias> is honored")
		if fields := strings.Fields(text); len(fields) > 0 {
			p.alias = fields[0]
		}
		return
	}
	p.alias = m[1]
	if m[2] != "" {
		p.alias = m[2]
	}
}

// selectHead is a SELECT clause with its modifiers peeled off.
type selectHead struct {
	top  string
	spec string
}

var selectModifiers = regexp.MustCompile(`(?i)^(DISTINCT\s+)?(?:TOP\s+(@[A-Za-z_]\w*|\S+)\s+)?(.*)$`)

func (p *parser) parseSelectHead(text string) selectHead {
	m := selectModifiers.FindStringSubmatch(text)
	if m == nil {
		return selectHead{spec: text}
	}
	if m[1] != "" {
		p.diag(queryir.DiagUnsupportedSelect, strings.TrimSpace(m[1]), "DISTINCT is not supported; duplicates are returned")
	}
	return selectHead{top: m[2], spec: strings.TrimSpace(m[3])}
}

var (
	fieldPattern  = `[A-Za-z_$][\w$]*(?:\.[A-Za-z_$0-9][\w$-]*)*`
	fieldRef      = regexp.MustCompile(`^` + fieldPattern + `$`)
	valuePrefix   = regexp.MustCompile(`(?i)^VALUE\s+(.+)$`)
	selectItem    = regexp.MustCompile(`(?i)^(` + fieldPattern + `)(?:\s+(?:AS\s+)?([A-Za-z_$][\w$]*))?$`)
	orderItem     = regexp.MustCompile(`(?i)^(` + fieldPattern + `)(?:\s+(ASC|DESC))?$`)
	aggregateCall = regexp.MustCompile(`(?i)^(COUNT|SUM|AVG|MIN|MAX)\s*\(\s*(.*?)\s*\)$`)
	aggregateItem = regexp.MustCompile(`(?i)^(COUNT|SUM|AVG|MIN|MAX)\s*\(\s*(.*?)\s*\)\s+(?:AS\s+)?([A-Za-z_$][\w$]*)$`)
	objectEntry   = regexp.MustCompile(`(?i)^([A-Za-z_$][\w$]*|"[^"]*"|'[^']*')\s*:\s*(COUNT|SUM|AVG|MIN|MAX)\s*\(\s*(.*?)\s*\)$`)
)

// fieldPath strips the FROM alias from a property reference, keeping the
// dotted sub-path. ok is false when ref is not a property path, names the
// whole document, or is rooted somewhere other than the alias.
func (p *parser) fieldPath(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if !fieldRef.MatchString(ref) {
		return "", false
	}
	field, ok := strings.CutPrefix(ref, p.alias+".")
	if !ok {
		return "", false
	}
	return field, true
}

// isAliasedField reports whether text is a property path rooted at the
// FROM alias.
func (p *parser) isAliasedField(text string) bool {
	text = strings.TrimSpace(text)
	return fieldRef.MatchString(text) && strings.HasPrefix(text, p.alias+".")
}

func (p *parser) parseProjection(spec string) []string {
	if spec == "" || spec == "*" || spec == p.alias {
		return nil
	}
	if m := valuePrefix.FindStringSubmatch(spec); m != nil {
		value := strings.TrimSpace(m[1])
		if value == p.alias {
			return nil
		}
		if f, ok := p.fieldPath(value); ok {
			p.diag(queryir.DiagUnsupportedSelect, spec, "SELECT VALUE of a property returns objects holding %s", f)
			return []string{f}
		}
		p.diag(queryir.DiagUnsupportedSelect, spec, "unsupported SELECT VALUE expression; returning whole documents")
		return nil
	}

	var fields []string
	seen := map[string]bool{}
	for _, item := range splitArgs(spec) {
		m := selectItem.FindStringSubmatch(item)
		if m == nil {
			p.diag(queryir.DiagUnsupportedSelect, item, "unsupported select item; ignored")
			continue
		}
		if m[1] == p.alias {
			// SELECT c, c.x is everything.
			return nil
		}
		f, ok := p.fieldPath(m[1])
		if !ok {
			p.diag(queryir.DiagUnsupportedSelect, item, "unsupported select item; ignored")
			continue
		}
		if m[2] != "" {
			p.diag(queryir.DiagUnsupportedSelect, item, "alias %s ignored; field returned as %s", m[2], f)
		}
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (p *parser) parseOrderBy(toks []token) []queryir.SortField {
	var sort []queryir.SortField
	for _, part := range splitTopLevel(toks) {
		item := join(part)
		m := orderItem.FindStringSubmatch(item)
		if m == nil {
			p.diag(queryir.DiagUnsupportedSelect, item, "unsupported ORDER BY item; ignored")
			continue
		}
		f, ok := p.fieldPath(m[1])
		if !ok {
			p.diag(queryir.DiagUnsupportedSelect, item, "unsupported ORDER BY item; ignored")
			continue
		}
		dir := queryir.Ascending
		if strings.EqualFold(m[2], "DESC") {
			dir = queryir.Descending
		}
		sort = append(sort, queryir.SortField{Field: f, Direction: dir})
	}
	return sort
}
