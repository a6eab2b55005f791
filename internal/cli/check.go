package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/cosmongo/internal/harness"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Filter string // case name filter (glob pattern)
}

// CheckResult holds the outcome of a fixture run.
type CheckResult struct {
	Files  int                  `json:"files"`
	Cases  []harness.CaseResult `json:"cases"`
	Passed int                  `json:"passed"`
	Failed int                  `json:"failed"`
	Total  int                  `json:"total"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <fixtures-dir>",
		Short: "Check translation fixtures",
		Long: `Translate every case of the CUE fixture files in a directory and
compare the lowered documents with the case expectations.

Each file declares a cases list:

  cases: [{
      name:  "active accounts"
      query: "SELECT * FROM c WHERE c.status = @s"
      params: "@s": "active"
      expect: filter: status: "active"
  }]

Exit codes:
  0 - All cases passed
  1 - One or more cases failed
  2 - Command error (invalid path, malformed CUE, etc.)

Examples:
  cosmongo check ./fixtures
  cosmongo check ./fixtures --filter "count*" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter cases by glob pattern on the case name")

	return cmd
}

func runCheck(opts *CheckOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	set, err := harness.LoadFixtures(dir)
	if err != nil {
		_ = f.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load fixtures", err)
	}
	f.VerboseLog("Loaded %d case(s) from %d file(s)", len(set.Cases), set.Files)

	result := CheckResult{Files: set.Files, Cases: []harness.CaseResult{}}
	for _, fixture := range set.Cases {
		if opts.Filter != "" {
			matched, err := filepath.Match(opts.Filter, fixture.Name)
			if err != nil {
				_ = f.Error(ErrCodeBadInput, fmt.Sprintf("invalid filter pattern: %v", err), nil)
				return WrapExitError(ExitCommandError, "invalid filter pattern", err)
			}
			if !matched {
				continue
			}
		}

		res := harness.CheckFixture(fixture)
		result.Cases = append(result.Cases, res)
		result.Total++
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}

		if opts.Format == "text" {
			if res.Pass {
				f.Pass("%s", res.Name)
				continue
			}
			f.Fail("%s (%s)", res.Name, fixture.Pos)
			for _, e := range res.Errors {
				fmt.Fprintf(f.Writer, "  %s\n", e)
			}
		}
	}

	if opts.Format != "text" {
		if result.Failed > 0 {
			if err := f.Respond("error", result, &CLIError{
				Code:    ErrCodeCheckFailed,
				Message: fmt.Sprintf("%d case(s) failed", result.Failed),
			}); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", result.Failed))
		}
		return f.Success(result)
	}

	fmt.Fprintln(f.Writer)
	fmt.Fprintf(f.Writer, "Check Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", result.Failed))
	}
	f.Pass("All cases passed")
	return nil
}
