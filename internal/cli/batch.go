package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cosmongo/internal/cosmos"
)

var batchOpTypes = map[string]cosmos.OperationType{
	"create":  cosmos.OpCreate,
	"upsert":  cosmos.OpUpsert,
	"replace": cosmos.OpReplace,
	"delete":  cosmos.OpDelete,
	"read":    cosmos.OpRead,
	"patch":   cosmos.OpPatch,
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <container> <file.json>",
		Short: "Run a list of item operations in order",
		Long: `Run the item operations listed in a JSON file, in order, stopping at the
first failure. Operations are not atomic: those before the failure stay
applied.

The file holds an array of operations:

  [
    {"op": "create", "document": {"id": "a1", "owner": "ada"}},
    {"op": "patch", "id": "a1", "patch": [{"op": "set", "path": "/tier", "value": "gold"}]},
    {"op": "delete", "id": "a0"}
  ]

Examples:
  cosmongo batch accounts ./ops.json
  cat ops.json | cosmongo batch accounts -`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runBatch(opts *RootOptions, container, file string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	arg := file
	if arg != "-" {
		arg = "@" + file
	}
	data, err := readInput(cmd, arg)
	if err != nil {
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read batch file", err)
	}
	ops, err := decodeBatch(data)
	if err != nil {
		_ = f.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid batch file", err)
	}

	return withDatabase(opts, cmd, func(ctx context.Context, db *cosmos.Database) error {
		cont, err := db.Container(ctx, container)
		if err != nil {
			return reportError(f, "open container", err)
		}

		resp, err := cont.Items().Batch(ctx, ops, nil)
		if err == nil {
			if opts.Format == "text" {
				for _, r := range resp.Results {
					f.Pass("%s %s: %d", r.Operation, r.ID, r.StatusCode)
				}
				return nil
			}
			return f.Success(resp)
		}

		if opts.Format != "text" {
			_ = f.Respond("error", resp, &CLIError{Code: errorCode(err), Message: err.Error()})
			return WrapExitError(ExitFailure, "batch failed", err)
		}
		for i, r := range resp.Results {
			if i == len(resp.Results)-1 {
				f.Fail("%s %s: %d", r.Operation, r.ID, r.StatusCode)
				break
			}
			f.Pass("%s %s: %d", r.Operation, r.ID, r.StatusCode)
		}
		return reportError(f, "batch failed", err)
	})
}

func decodeBatch(data []byte) ([]cosmos.BatchOperation, error) {
	value, err := decodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("batch: want a JSON array of operations, got %T", value)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("batch: no operations")
	}

	ops := make([]cosmos.BatchOperation, len(list))
	for i, elem := range list {
		raw, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("batch operation %d: want an object", i)
		}
		name, _ := raw["op"].(string)
		typ, ok := batchOpTypes[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("batch operation %d: unknown op %q", i, name)
		}

		op := cosmos.BatchOperation{Type: typ}
		op.ID, _ = raw["id"].(string)
		op.Document, _ = raw["document"].(map[string]any)
		if list, ok := raw["patch"].([]any); ok {
			patch, err := patchOperations(list)
			if err != nil {
				return nil, fmt.Errorf("batch operation %d: %w", i, err)
			}
			op.Patch = patch
		}
		ops[i] = op
	}
	return ops, nil
}
