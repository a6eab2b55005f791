// Package docmatch evaluates MongoDB query, update and aggregation
// documents against in-memory documents.
//
// It backs the SQLite store and serves as the reference evaluator in tests
// that check the SQL translation end to end. Only the operator subset the
// lowering in internal/querymongo emits, plus the update operators the
// Cosmos adapter uses, is implemented; anything else is an error rather
// than a silent mismatch.
//
// Documents are map[string]any trees of string, int64, float64, bool, nil,
// []any and map[string]any. Other integer and float widths are accepted
// and compared numerically.
package docmatch
