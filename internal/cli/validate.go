package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/harness"
)

// ValidationResult holds the outcome of validating one scenario file.
type ValidationResult struct {
	Path   string `json:"path"`
	Name   string `json:"name,omitempty"`
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Validate scenarios without running them",
		Long: `Load scenario files and build their command trees without running any update.

Catches decoding errors, unknown fields, malformed nodes and invalid
assertions. CUE errors report the line and column of the offending value.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	results := make([]ValidationResult, 0, len(paths))
	invalid := 0
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		r := validateScenario(path)
		if !r.Valid {
			invalid++
		}
		results = append(results, r)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: results}
		if invalid > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeInvalid,
				Message: fmt.Sprintf("%d scenario(s) invalid", invalid),
			}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "✓ %s (%s)\n", r.Path, r.Name)
			} else {
				fmt.Fprintf(w, "✗ %s\n  %s\n", r.Path, r.Error)
			}
		}
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) invalid", invalid))
	}
	return nil
}

// validateScenario loads a file and builds a session from it.
func validateScenario(path string) ValidationResult {
	r := ValidationResult{Path: path}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		r.Error = err.Error()
		var le *harness.LoadError
		if errors.As(err, &le) && le.Pos.IsValid() {
			r.Line = le.Pos.Line()
			r.Column = le.Pos.Column()
		}
		return r
	}
	r.Name = scenario.Name

	if _, err := harness.NewSession(scenario); err != nil {
		r.Error = err.Error()
		return r
	}

	r.Valid = true
	return r
}
