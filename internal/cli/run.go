package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, the harness default UUIDv7Generator is used.
	RunIDs harness.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario",
		Long: `Run a single scenario with its own host updates.

Prints every trace event followed by the assertion results. The scenario
file may be YAML, JSON or CUE.

Exit codes:
  0 - All assertions held
  1 - One or more assertions failed
  2 - The scenario could not be loaded

Examples:
  cadence run scenarios/fade.yaml
  cadence run scenarios/fade.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	return cmd
}

func (o *RunOptions) harnessOptions() []harness.Option {
	opts := []harness.Option{harness.WithLogger(o.logger())}
	if o.RunIDs != nil {
		opts = append(opts, harness.WithRunIDGenerator(o.RunIDs))
	}
	return opts
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	logger.Debug("scenario loaded", "path", path, "name", scenario.Name)

	result, err := harness.Run(scenario, opts.harnessOptions()...)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalid, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeFailed,
				Message: fmt.Sprintf("scenario %s failed", result.Name),
				Details: result.Errors,
			}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		writeResultText(cmd.OutOrStdout(), result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", result.Name))
	}
	return nil
}

// writeResultText prints the trace and a one-line verdict.
func writeResultText(w io.Writer, result *harness.Result) {
	fmt.Fprintf(w, "Scenario %s (run %s)\n", result.Name, result.RunID)
	for _, e := range result.Trace {
		fmt.Fprintf(w, "  %s\n", e)
	}
	fmt.Fprintln(w)

	verdict := "PASS"
	if !result.Pass {
		verdict = "FAIL"
	}
	fmt.Fprintf(w, "%s ticks=%d elapsed=%g drained=%t digest=%s steps=%d/%d\n",
		verdict, result.Ticks, result.Elapsed, result.Drained, shortDigest(result.Digest),
		result.Steps, result.MaxSteps)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
