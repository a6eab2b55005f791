package cosmossql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/cosmongo/internal/ir"
	"github.com/roach88/cosmongo/internal/queryir"
)

// Parameter is one bound query parameter. Name may carry the leading @.
type Parameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

var (
	intLiteral   = regexp.MustCompile(`^-?\d+$`)
	floatLiteral = regexp.MustCompile(`^-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?$`)
	paramRef     = regexp.MustCompile(`^@[A-Za-z_]\w*$`)
	caseWrapper  = regexp.MustCompile(`(?i)^(?:LOWER|UPPER)\s*\((.+)\)$`)
)

// bindParameters converts parameter values to IR once per parse. The first
// binding of a name wins.
func (p *parser) bindParameters(params []Parameter) {
	p.params = make(map[string]ir.IRValue, len(params))
	p.badParams = make(map[string]error)
	for _, param := range params {
		name := strings.TrimPrefix(param.Name, "@")
		if _, seen := p.params[name]; seen {
			continue
		}
		if _, seen := p.badParams[name]; seen {
			continue
		}
		v, err := ir.FromAny(param.Value)
		if err != nil {
			p.badParams[name] = err
			continue
		}
		p.params[name] = v
	}
}

// resolveParam looks up @name. Unresolved parameters become null and
// record a diagnostic.
func (p *parser) resolveParam(ref string) ir.IRValue {
	name := strings.TrimPrefix(ref, "@")
	if v, ok := p.params[name]; ok {
		return v
	}
	if err, ok := p.badParams[name]; ok {
		p.diag(queryir.DiagUnresolvedParameter, ref, "parameter %s has unsupported value: %v", ref, err)
		return ir.IRNull{}
	}
	p.diag(queryir.DiagUnresolvedParameter, ref, "parameter %s is not bound", ref)
	return ir.IRNull{}
}

// parseValue resolves a value expression: a parameter, a quoted string,
// true/false/null, a number, or an array literal. LOWER()/UPPER() around
// the value are unwrapped. Anything else passes through as an opaque
// string.
func (p *parser) parseValue(text string) ir.IRValue {
	text = strings.TrimSpace(text)
	if m := caseWrapper.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	switch {
	case paramRef.MatchString(text):
		return p.resolveParam(text)
	case len(text) >= 2 && (text[0] == '\'' || text[0] == '"') && text[len(text)-1] == text[0]:
		if s, err := decodeString(text); err == nil {
			return ir.IRString(s)
		}
		return ir.IRString(text)
	case strings.EqualFold(text, "true"):
		return ir.IRBool(true)
	case strings.EqualFold(text, "false"):
		return ir.IRBool(false)
	case strings.EqualFold(text, "null"):
		return ir.IRNull{}
	case intLiteral.MatchString(text):
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return ir.IRInt(n)
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return ir.IRFloat(f)
		}
	case floatLiteral.MatchString(text):
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return ir.IRFloat(f)
		}
	case strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]"):
		items := splitArgs(text[1 : len(text)-1])
		arr := make(ir.IRArray, 0, len(items))
		for _, item := range items {
			if item == "" {
				continue
			}
			arr = append(arr, p.parseValue(item))
		}
		return arr
	}
	return ir.IRString(text)
}

// parseInt resolves a paging or length operand to a non-negative integer.
func (p *parser) parseInt(text string) (int64, bool) {
	n, ok := ir.AsInt64(p.parseValue(text))
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}

// decodeString strips the quotes from a single- or double-quoted literal
// and decodes backslash escapes.
func decodeString(lit string) (string, error) {
	if len(lit) < 2 {
		return "", fmt.Errorf("string literal too short: %q", lit)
	}
	quote := lit[0]
	if (quote != '\'' && quote != '"') || lit[len(lit)-1] != quote {
		return "", fmt.Errorf("not a quoted string: %q", lit)
	}

	body := lit[1 : len(lit)-1]
	if !strings.Contains(body, `\`) {
		return body, nil
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("dangling escape in %q", lit)
		}
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+4 >= len(body) {
				return "", fmt.Errorf("short unicode escape in %q", lit)
			}
			r, err := strconv.ParseUint(body[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad unicode escape in %q: %w", lit, err)
			}
			var buf [utf8.UTFMax]byte
			n := utf8.EncodeRune(buf[:], rune(r))
			b.Write(buf[:n])
			i += 4
		default:
			// \' \" \\ \/ and unknown escapes yield the character itself.
			b.WriteByte(body[i])
		}
	}
	return b.String(), nil
}
