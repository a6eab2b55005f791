package cosmossql

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// sqlLexer splits Cosmos SQL into coarse tokens. It never fails on its own:
// the Other rule catches any character the specific rules do not.
//
// Dotted property paths (c.attributes.industry) lex as a single Ident so
// keyword detection never fires on a property named like a keyword.
var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`},
	{Name: "Param", Pattern: `@[A-Za-z_][\w]*`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*`},
	{Name: "Operator", Pattern: `<>|!=|<=|>=|=|<|>`},
	{Name: "Punct", Pattern: `[(),\[\]{}:.*]`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Other", Pattern: `.`},
})

type tokenKind int

const (
	tokOther tokenKind = iota
	tokString
	tokParam
	tokNumber
	tokIdent
	tokOperator
	tokPunct
	tokSpace
)

type token struct {
	kind tokenKind
	text string
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

// keyword reports whether t is the bare identifier kw (case-insensitive).
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

var kindBySymbol = func() map[lexer.TokenType]tokenKind {
	kinds := map[string]tokenKind{
		"String":     tokString,
		"Param":      tokParam,
		"Number":     tokNumber,
		"Ident":      tokIdent,
		"Operator":   tokOperator,
		"Punct":      tokPunct,
		"Whitespace": tokSpace,
		"Other":      tokOther,
	}
	out := make(map[lexer.TokenType]tokenKind, len(kinds))
	for name, tt := range sqlLexer.Symbols() {
		if k, ok := kinds[name]; ok {
			out[tt] = k
		}
	}
	return out
}()

// tokenize lexes s, collapsing every whitespace run to a single space
// token. String literal contents are untouched.
func tokenize(s string) ([]token, error) {
	lex, err := sqlLexer.LexString("", s)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	var toks []token
	for {
		t, err := lex.Next()
		if err != nil {
			return nil, fmt.Errorf("tokenize: %w", err)
		}
		if t.EOF() {
			return toks, nil
		}
		kind := kindBySymbol[t.Type]
		if kind == tokSpace {
			if len(toks) == 0 || toks[len(toks)-1].kind == tokSpace {
				continue
			}
			toks = append(toks, token{kind: tokSpace, text: " "})
			continue
		}
		toks = append(toks, token{kind: kind, text: t.Value})
	}
}

// trimSpace drops leading and trailing whitespace tokens.
func trimSpace(toks []token) []token {
	for len(toks) > 0 && toks[0].kind == tokSpace {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].kind == tokSpace {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// join renders tokens back to text.
func join(toks []token) string {
	var b strings.Builder
	for _, t := range trimSpace(toks) {
		b.WriteString(t.text)
	}
	return b.String()
}

// mergeBrackets rewrites bracketed property access into dotted paths:
// c["x"] becomes c.x and c.tags[0] becomes c.tags.0. Keys that are not
// plain names are left alone.
func mergeBrackets(toks []token) []token {
	out := make([]token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.is(tokPunct, "[") && len(out) > 0 && out[len(out)-1].kind == tokIdent && i+2 < len(toks) && toks[i+2].is(tokPunct, "]") {
			if key, ok := bracketKey(toks[i+1]); ok {
				out[len(out)-1].text += "." + key
				i += 2
				continue
			}
		}
		// A dotted tail after a bracket (c["a"].b) lexes as Punct "." + Ident.
		if t.is(tokPunct, ".") && len(out) > 0 && out[len(out)-1].kind == tokIdent && i+1 < len(toks) && toks[i+1].kind == tokIdent {
			out[len(out)-1].text += "." + toks[i+1].text
			i++
			continue
		}
		out = append(out, t)
	}
	return out
}

func bracketKey(t token) (string, bool) {
	switch t.kind {
	case tokString:
		key, err := decodeString(t.text)
		if err != nil || key == "" || strings.ContainsAny(key, ". \t\n$") {
			return "", false
		}
		return key, true
	case tokNumber:
		if strings.ContainsAny(t.text, "-.eE") {
			return "", false
		}
		return t.text, true
	}
	return "", false
}

// Normalize collapses whitespace outside string literals and rewrites
// bracketed property access to dotted paths. Text that cannot be
// tokenized is returned trimmed but otherwise unchanged.
func Normalize(sql string) string {
	toks, err := tokenize(sql)
	if err != nil {
		return strings.TrimSpace(sql)
	}
	return join(mergeBrackets(toks))
}

// splitTopLevel splits toks on commas at paren/bracket/brace depth 0.
func splitTopLevel(toks []token) [][]token {
	toks = trimSpace(toks)
	if len(toks) == 0 {
		return nil
	}

	var parts [][]token
	depth, start := 0, 0
	for i, t := range toks {
		switch {
		case t.kind != tokPunct:
		case t.text == "(" || t.text == "[" || t.text == "{":
			depth++
		case t.text == ")" || t.text == "]" || t.text == "}":
			depth--
		case t.text == "," && depth == 0:
			parts = append(parts, trimSpace(toks[start:i]))
			start = i + 1
		}
	}
	return append(parts, trimSpace(toks[start:]))
}

// splitArgs splits comma-separated text at depth 0.
func splitArgs(text string) []string {
	toks, err := tokenize(text)
	if err != nil {
		return []string{strings.TrimSpace(text)}
	}
	parts := splitTopLevel(toks)
	if parts == nil {
		return nil
	}
	out := make([]string, len(parts))
	for i, part := range parts {
		out[i] = join(part)
	}
	return out
}

// balanced reports whether every bracket in toks closes in order.
func balanced(toks []token) bool {
	depth := 0
	for _, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// stripOuterParens removes one enclosing paren pair when it spans the
// whole of toks. ok is false when toks is not wrapped that way.
func stripOuterParens(toks []token) ([]token, bool) {
	toks = trimSpace(toks)
	if len(toks) < 2 || !toks[0].is(tokPunct, "(") || !toks[len(toks)-1].is(tokPunct, ")") {
		return toks, false
	}
	depth := 0
	for i, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 && i != len(toks)-1 {
				// (a) OR (b): first paren closes early.
				return toks, false
			}
		}
	}
	if depth != 0 {
		return toks, false
	}
	return trimSpace(toks[1 : len(toks)-1]), true
}
