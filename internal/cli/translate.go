package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cosmongo/internal/harness"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Params []string
	IR     bool // include the IR snapshot in text output
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <sql>",
		Short: "Translate a Cosmos SQL query to MongoDB",
		Long: `Translate a Cosmos DB SQL query to MongoDB filter, sort, projection
and pipeline documents without touching a backend.

Parameters are bound with --param name=value, where value is JSON
(plain text is taken as a string).

Examples:
  cosmongo translate "SELECT * FROM c WHERE c.status = @s" --param s=active
  cosmongo translate "SELECT VALUE COUNT(1) FROM c" --format json
  cosmongo translate "SELECT c.id FROM c ORDER BY c._ts DESC" --ir`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "query parameter name=value (repeatable)")
	cmd.Flags().BoolVar(&opts.IR, "ir", false, "also print the intermediate representation")

	return cmd
}

func runTranslate(opts *TranslateOptions, sql string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	params, err := parseParams(opts.Params)
	if err != nil {
		_ = f.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid parameter", err)
	}

	t, err := harness.Translate(sql, params)
	if err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "translation failed", err)
	}

	if opts.Format != "text" {
		return f.Success(t)
	}

	fmt.Fprintf(f.Writer, "%s %s\n", labelColor.Sprint("normalized:"), t.Normalized)
	fmt.Fprintf(f.Writer, "%s %s\n", labelColor.Sprint("fingerprint:"), t.Fingerprint)
	if opts.IR {
		f.Label("ir")
		if err := writeIndentedJSON(f.Writer, t.IR); err != nil {
			return err
		}
	}
	f.Label("mongo")
	if err := writeIndentedJSON(f.Writer, t.Mongo); err != nil {
		return err
	}
	f.Diagnostics(t.Diagnostics)
	for _, w := range t.Warnings {
		warnColor.Fprintf(f.GetErrWriter(), "warning: %s\n", w)
	}
	return nil
}
