package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roach88/cosmongo/internal/cosmos"
)

// NewItemCommand creates the item command and its subcommands.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Read and write single items",
		Long: `Read and write single items of a container in the configured database.

Document and patch arguments are JSON text, @file to read a file, or -
to read stdin.

Examples:
  cosmongo item create accounts '{"id": "a1", "owner": "ada"}'
  cosmongo item read accounts a1
  cosmongo item patch accounts a1 '[{"op": "incr", "path": "/balance", "value": 5}]'
  cosmongo item delete accounts a1`,
	}

	cmd.AddCommand(
		itemCommand(rootOpts, "read <container> <id>", "Read an item", 2, readItem),
		itemCommand(rootOpts, "create <container> <document>", "Create an item", 2, createItem),
		itemCommand(rootOpts, "upsert <container> <document>", "Insert or merge an item", 2, upsertItem),
		itemCommand(rootOpts, "replace <container> <id> <document>", "Replace an existing item", 3, replaceItem),
		itemCommand(rootOpts, "patch <container> <id> <operations>", "Patch an existing item", 3, patchItem),
		itemCommand(rootOpts, "delete <container> <id>", "Delete an item", 2, deleteItem),
	)
	return cmd
}

// itemOp performs one item operation. args excludes the container.
type itemOp func(ctx context.Context, cmd *cobra.Command, cont *cosmos.Container, args []string) (*cosmos.ItemResponse, error)

func itemCommand(rootOpts *RootOptions, use, short string, nargs int, op itemOp) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.ExactArgs(nargs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItem(rootOpts, cmd, args, op)
		},
	}
}

func runItem(opts *RootOptions, cmd *cobra.Command, args []string, op itemOp) error {
	f := opts.formatter(cmd)

	return withDatabase(opts, cmd, func(ctx context.Context, db *cosmos.Database) error {
		cont, err := db.Container(ctx, args[0])
		if err != nil {
			return reportError(f, "open container", err)
		}

		resp, err := op(ctx, cmd, cont, args[1:])
		if err != nil {
			return reportError(f, cmd.Name()+" failed", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			msg := fmt.Sprintf("item %s not found in %s", args[1], args[0])
			_ = f.Error(ErrCodeNotFound, msg, nil)
			return NewExitError(ExitFailure, msg)
		}

		f.VerboseLog("%s %s: status %d", cmd.Name(), args[0], resp.StatusCode)
		if opts.Format == "text" {
			if resp.Resource == nil {
				return f.Success(fmt.Sprintf("%s: %s", http.StatusText(resp.StatusCode), args[1]))
			}
			return f.Success(resp.Resource)
		}
		return f.Success(resp)
	})
}

func readItem(ctx context.Context, _ *cobra.Command, cont *cosmos.Container, args []string) (*cosmos.ItemResponse, error) {
	return cont.Item(args[0], nil).Read(ctx)
}

func createItem(ctx context.Context, cmd *cobra.Command, cont *cosmos.Container, args []string) (*cosmos.ItemResponse, error) {
	doc, err := documentArg(cmd, args[0])
	if err != nil {
		return nil, err
	}
	return cont.Items().Create(ctx, doc)
}

func upsertItem(ctx context.Context, cmd *cobra.Command, cont *cosmos.Container, args []string) (*cosmos.ItemResponse, error) {
	doc, err := documentArg(cmd, args[0])
	if err != nil {
		return nil, err
	}
	return cont.Items().Upsert(ctx, doc)
}

func replaceItem(ctx context.Context, cmd *cobra.Command, cont *cosmos.Container, args []string) (*cosmos.ItemResponse, error) {
	doc, err := documentArg(cmd, args[1])
	if err != nil {
		return nil, err
	}
	return cont.Item(args[0], nil).Replace(ctx, doc)
}

func patchItem(ctx context.Context, cmd *cobra.Command, cont *cosmos.Container, args []string) (*cosmos.ItemResponse, error) {
	ops, err := patchArg(cmd, args[1])
	if err != nil {
		return nil, err
	}
	return cont.Item(args[0], nil).Patch(ctx, ops)
}

func deleteItem(ctx context.Context, _ *cobra.Command, cont *cosmos.Container, args []string) (*cosmos.ItemResponse, error) {
	resp, err := cont.Item(args[0], nil).Delete(ctx)
	if err != nil {
		return nil, err
	}
	// Delete is idempotent; a missing item is not a failure here.
	if resp.StatusCode == http.StatusNotFound {
		resp.StatusCode = http.StatusNoContent
	}
	return resp, nil
}

// documentArg reads a document argument, reporting malformed input as a
// 400 so it maps to ErrCodeBadInput.
func documentArg(cmd *cobra.Command, arg string) (map[string]any, error) {
	doc, err := readDocument(cmd, arg)
	if err != nil {
		return nil, &cosmos.StatusError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	return doc, nil
}

func patchArg(cmd *cobra.Command, arg string) ([]cosmos.PatchOperation, error) {
	data, err := readInput(cmd, arg)
	if err != nil {
		return nil, &cosmos.StatusError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	ops, err := decodePatch(data)
	if err != nil {
		return nil, &cosmos.StatusError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	return ops, nil
}

func decodePatch(data []byte) ([]cosmos.PatchOperation, error) {
	value, err := decodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("patch: %w", err)
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("patch: want a JSON array of operations, got %T", value)
	}
	return patchOperations(list)
}

func patchOperations(list []any) ([]cosmos.PatchOperation, error) {
	ops := make([]cosmos.PatchOperation, len(list))
	for i, elem := range list {
		raw, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("patch operation %d: want an object", i)
		}
		op, _ := raw["op"].(string)
		path, _ := raw["path"].(string)
		ops[i] = cosmos.PatchOperation{Op: cosmos.PatchOp(op), Path: path, Value: raw["value"]}
	}
	return ops, nil
}
