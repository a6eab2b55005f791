package store

import (
	"fmt"

	"github.com/roach88/cosmongo/internal/ir"
)

// marshalBody converts a document to JSON TEXT for storage. Keys are
// written in sorted order so identical documents store identical text.
func marshalBody(doc map[string]any) (string, error) {
	v, err := ir.FromAny(doc)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	return string(data), nil
}

// unmarshalBody parses stored JSON TEXT back into a document.
// Uses ir.UnmarshalIRValue which keeps large integers exact via
// json.Number.
func unmarshalBody(data string) (map[string]any, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal body: %w", err)
	}
	doc, ok := ir.ToAny(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unmarshal body: stored value is %T, not an object", v)
	}
	return doc, nil
}

// marshalID derives the doc_id key from an _id value.
func marshalID(id any) (string, error) {
	v, err := ir.FromAny(id)
	if err != nil {
		return "", fmt.Errorf("marshal _id: %w", err)
	}
	if _, isNull := v.(ir.IRNull); isNull {
		return "", fmt.Errorf("marshal _id: _id is null")
	}
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal _id: %w", err)
	}
	return string(data), nil
}
