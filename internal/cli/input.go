package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cosmongo/internal/cosmos"
)

// parseParams converts --param name=value flags. The value is parsed as
// JSON; text that is not valid JSON is taken as a plain string, so
// --param status=active and --param 'status="active"' agree.
func parseParams(flags []string) ([]cosmos.Parameter, error) {
	params := make([]cosmos.Parameter, 0, len(flags))
	for _, flag := range flags {
		name, raw, ok := strings.Cut(flag, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q: want name=value", flag)
		}
		if !strings.HasPrefix(name, "@") {
			name = "@" + name
		}

		value, err := decodeValue([]byte(raw))
		if err != nil {
			value = raw
		}
		params = append(params, cosmos.Parameter{Name: name, Value: value})
	}
	return params, nil
}

// readInput resolves a document argument: "-" reads stdin, "@path" reads
// a file, anything else is the JSON text itself.
func readInput(cmd *cobra.Command, arg string) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(cmd.InOrStdin())
	case strings.HasPrefix(arg, "@"):
		return os.ReadFile(arg[1:])
	}
	return []byte(arg), nil
}

// readDocument reads a JSON object argument.
func readDocument(cmd *cobra.Command, arg string) (map[string]any, error) {
	data, err := readInput(cmd, arg)
	if err != nil {
		return nil, err
	}
	value, err := decodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	doc, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document: want a JSON object, got %T", value)
	}
	return doc, nil
}

// decodeValue decodes one JSON value. Integral numbers become int64 and
// the rest float64.
func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return numbers(v), nil
}

func numbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, elem := range val {
			val[k] = numbers(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = numbers(elem)
		}
		return val
	}
	return v
}
