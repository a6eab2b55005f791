package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cosmongo/internal/cosmos"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Params []string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <container> <sql>",
		Short: "Run a Cosmos SQL query against the configured backend",
		Long: `Translate a Cosmos DB SQL query and run it against a container of the
configured database.

Examples:
  cosmongo query accounts "SELECT * FROM c WHERE c.tier = @t" --param t=gold
  cosmongo query accounts "SELECT VALUE COUNT(1) FROM c" --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "query parameter name=value (repeatable)")

	return cmd
}

func runQuery(opts *QueryOptions, container, sql string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	params, err := parseParams(opts.Params)
	if err != nil {
		_ = f.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid parameter", err)
	}

	return withDatabase(opts.RootOptions, cmd, func(ctx context.Context, db *cosmos.Database) error {
		cont, err := db.Container(ctx, container)
		if err != nil {
			return reportError(f, "open container", err)
		}

		feed, err := cont.Items().Query(cosmos.QuerySpec{Query: sql, Parameters: params}).FetchAll(ctx)
		if err != nil {
			return reportError(f, "query failed", err)
		}

		f.Diagnostics(feed.Diagnostics)
		if opts.Format == "text" {
			return f.Success(feed.Resources)
		}
		return f.Success(feed)
	})
}
