package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cosmongo/internal/cosmos"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":    event.Seq,
			"op":     event.Op,
			"status": int64(event.Status),
		}
		if event.ID != "" {
			eventMap["id"] = event.ID
		}
		if event.Query != "" {
			eventMap["query"] = event.Query
		}
		if event.Result != nil {
			eventMap["result"] = event.Result
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// TraceJSON renders the canonical trace snapshot of a scenario run, the
// bytes stored in golden files.
func TraceJSON(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Trace:        result.Trace,
	}
	return canonical(snapshot.toCanonicalMap())
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	traceJSON, err := TraceJSON(scenario, result)
	if err != nil {
		return nil, err
	}

	newGoldie(t).Assert(t, scenario.Name, traceJSON)
	return result, nil
}

// AssertTranslationGolden translates sql and compares the canonical
// snapshot (normalized text, fingerprint, IR and lowered documents)
// against testdata/golden/{name}.golden.
func AssertTranslationGolden(t *testing.T, name, sql string, params ...cosmos.Parameter) *Translation {
	t.Helper()

	tr, err := Translate(sql, params)
	if err != nil {
		t.Fatalf("Translate(%q) failed: %v", sql, err)
	}
	data, err := canonical(tr.Snapshot())
	if err != nil {
		t.Fatalf("canonical snapshot failed: %v", err)
	}

	newGoldie(t).Assert(t, name, data)
	return tr
}
