package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cosmongo/internal/cosmos"
)

// Scenario defines an adapter conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Container names the container the steps run against.
	// Defaults to "items".
	Container string `yaml:"container,omitempty"`

	// Seed documents are created before the first step.
	Seed []map[string]any `yaml:"seed,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// IDPrefix prefixes synthesized ids (prefix-1, prefix-2, ...).
	// Defaults to "item".
	IDPrefix string `yaml:"id_prefix,omitempty"`
}

// Step is one adapter operation.
type Step struct {
	// Op is query, create, upsert, replace, patch, delete, read or batch.
	Op string `yaml:"op"`

	// ID addresses replace, patch, delete and read.
	ID string `yaml:"id,omitempty"`

	// Query and Params are used by query.
	Query  string         `yaml:"query,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`

	// Document is the body of create, upsert and replace.
	Document map[string]any `yaml:"document,omitempty"`

	// Patch lists the operations of patch.
	Patch []PatchStep `yaml:"patch,omitempty"`

	// Batch lists the operations of batch.
	Batch []BatchStep `yaml:"batch,omitempty"`

	// Expect, when set, is checked against the step's outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// PatchStep is a patch operation in YAML form.
type PatchStep struct {
	Op    string `yaml:"op"`
	Path  string `yaml:"path"`
	Value any    `yaml:"value,omitempty"`
}

// BatchStep is a batch operation in YAML form.
type BatchStep struct {
	Op       string         `yaml:"op"`
	ID       string         `yaml:"id,omitempty"`
	Document map[string]any `yaml:"document,omitempty"`
	Patch    []PatchStep    `yaml:"patch,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Status is the expected status code. Zero skips the check.
	Status int `yaml:"status,omitempty"`

	// Error is the expected error class: conflict, not_found,
	// bad_request or any. Empty expects success.
	Error string `yaml:"error,omitempty"`

	// Resource is a subset match against the step's resource.
	Resource map[string]any `yaml:"resource,omitempty"`

	// Resources is an exact match against a query's resources.
	Resources []any `yaml:"resources,omitempty"`

	// IDs is an exact, ordered match against the ids of a query's
	// resources.
	IDs []string `yaml:"ids,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is trace_count, final_state or final_count.
	Type string `yaml:"type"`

	// Op is the counted op (trace_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number (trace_count, final_count).
	Count int `yaml:"count,omitempty"`

	// ID addresses the item (final_state).
	ID string `yaml:"id,omitempty"`

	// Expect contains expected field values (final_state, subset match).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts the item does not exist (final_state).
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount = "trace_count"
	AssertFinalState = "final_state"
	AssertFinalCount = "final_count"
)

// Step op constants.
const (
	OpQuery   = "query"
	OpCreate  = "create"
	OpUpsert  = "upsert"
	OpReplace = "replace"
	OpPatch   = "patch"
	OpDelete  = "delete"
	OpRead    = "read"
	OpBatch   = "batch"
)

var batchOps = map[string]cosmos.OperationType{
	OpCreate:  cosmos.OpCreate,
	OpUpsert:  cosmos.OpUpsert,
	OpReplace: cosmos.OpReplace,
	OpDelete:  cosmos.OpDelete,
	OpRead:    cosmos.OpRead,
	OpPatch:   cosmos.OpPatch,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTraceCount:
			if a.Op == "" {
				return fmt.Errorf("assertion %d: trace_count requires op", i)
			}
		case AssertFinalState:
			if a.ID == "" {
				return fmt.Errorf("assertion %d: final_state requires id", i)
			}
		case AssertFinalCount:
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case OpQuery:
		if step.Query == "" {
			return fmt.Errorf("query requires query text")
		}
	case OpCreate, OpUpsert:
		if step.Document == nil {
			return fmt.Errorf("%s requires document", step.Op)
		}
	case OpReplace:
		if step.ID == "" || step.Document == nil {
			return fmt.Errorf("replace requires id and document")
		}
	case OpPatch:
		if step.ID == "" {
			return fmt.Errorf("patch requires id")
		}
	case OpDelete, OpRead:
		if step.ID == "" {
			return fmt.Errorf("%s requires id", step.Op)
		}
	case OpBatch:
		if len(step.Batch) == 0 {
			return fmt.Errorf("batch requires operations")
		}
		for j, op := range step.Batch {
			if _, ok := batchOps[op.Op]; !ok {
				return fmt.Errorf("batch operation %d: unknown op %q", j, op.Op)
			}
		}
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.Expect != nil {
		switch step.Expect.Error {
		case "", errConflict, errNotFound, errBadRequest, errAny:
		default:
			return fmt.Errorf("unknown expected error %q", step.Expect.Error)
		}
	}
	return nil
}
