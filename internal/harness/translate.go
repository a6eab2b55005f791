package harness

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/cosmongo/internal/cosmos"
	"github.com/roach88/cosmongo/internal/cosmossql"
	"github.com/roach88/cosmongo/internal/docmatch"
	"github.com/roach88/cosmongo/internal/ir"
	"github.com/roach88/cosmongo/internal/queryir"
	"github.com/roach88/cosmongo/internal/querymongo"
)

// Translation is everything the translator produces for one query.
type Translation struct {
	Query       string               `json:"query"`
	Normalized  string               `json:"normalized"`
	Fingerprint string               `json:"fingerprint"`
	IR          map[string]any       `json:"ir"`
	Mongo       map[string]any       `json:"mongo"`
	Diagnostics []queryir.Diagnostic `json:"diagnostics,omitempty"`

	// Warnings lists violated IR invariants.
	Warnings []string `json:"warnings,omitempty"`
}

// Translate parses, validates and lowers sql.
func Translate(sql string, params []cosmos.Parameter) (*Translation, error) {
	pq := cosmossql.Parse(sql, params)
	snapshot := queryir.Snapshot(pq)

	fp, err := ir.QueryFingerprint(snapshot)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}

	compiled, err := querymongo.NewCompiler().Compile(pq)
	if err != nil {
		return nil, fmt.Errorf("lower: %w", err)
	}

	return &Translation{
		Query:       sql,
		Normalized:  cosmossql.Normalize(sql),
		Fingerprint: fp,
		IR:          snapshot,
		Mongo:       MongoSnapshot(compiled),
		Diagnostics: pq.Diagnostics,
		Warnings:    queryir.Validate(pq).Warnings,
	}, nil
}

// Snapshot renders t for ir.MarshalCanonical.
func (t *Translation) Snapshot() map[string]any {
	return map[string]any{
		"query":       t.Query,
		"normalized":  t.Normalized,
		"fingerprint": t.Fingerprint,
		"ir":          t.IR,
		"mongo":       t.Mongo,
	}
}

// DiagnosticCodes lists the diagnostic codes in order.
func (t *Translation) DiagnosticCodes() []any {
	codes := make([]any, len(t.Diagnostics))
	for i, d := range t.Diagnostics {
		codes[i] = d.Code
	}
	return codes
}

// MongoSnapshot renders lowered documents as plain maps. Sort keys keep
// their order as a list of single-key objects.
func MongoSnapshot(c *querymongo.Compiled) map[string]any {
	if c.IsAggregate {
		pipeline := make([]any, len(c.Pipeline))
		for i, stage := range c.Pipeline {
			pipeline[i] = docmatch.Plain(stage)
		}
		return map[string]any{
			"aggregate": c.Aggregate.String(),
			"pipeline":  pipeline,
		}
	}

	var sort any
	if c.Sort != nil {
		keys := make([]any, len(c.Sort))
		for i, e := range c.Sort {
			keys[i] = map[string]any{e.Key: docmatch.Plain(e.Value)}
		}
		sort = keys
	}

	return map[string]any{
		"aggregate":  c.Aggregate.String(),
		"filter":     docmatch.Plain(c.Filter),
		"sort":       sort,
		"projection": plainOrNil(c.Projection),
		"skip":       c.Skip,
		"limit":      c.Limit,
	}
}

func plainOrNil(d bson.D) any {
	if d == nil {
		return nil
	}
	return docmatch.Plain(d)
}
