package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run every scenario under a directory.

Each scenario must satisfy its assertions. When <dir>/golden/<name>.golden
exists the trace must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  cadence test ./scenarios
  cadence test ./scenarios --filter "fade*"
  cadence test ./scenarios --update
  cadence test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	suite, err := harness.RunSuite(cmd.Context(), dir, harness.SuiteOptions{
		Filter:  opts.Filter,
		Update:  opts.Update,
		Options: []harness.Option{harness.WithLogger(opts.logger())},
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, suite)
	}
	return outputTestText(cmd.OutOrStdout(), suite)
}

// outputTestJSON outputs the suite result as JSON.
func outputTestJSON(f *OutputFormatter, suite *harness.SuiteResult) error {
	response := CLIResponse{Status: "ok", Data: suite}

	if suite.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", suite.Failed),
		}
	}

	if err := f.Encode(response); err != nil {
		return err
	}

	if suite.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}
	return nil
}

// outputTestText outputs the suite result as text.
func outputTestText(w io.Writer, suite *harness.SuiteResult) error {
	if suite.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, report := range suite.Scenarios {
		if report.Pass {
			suffix := ""
			if report.Golden == harness.GoldenUpdated {
				suffix = " (golden updated)"
			}
			fmt.Fprintf(w, "✓ %s%s\n", report.Name, suffix)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", report.Name)
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		if report.Golden == harness.GoldenMismatch {
			fmt.Fprintln(w, "  Golden file mismatch (run with --update to regenerate)")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)

	if suite.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
