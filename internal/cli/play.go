package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/harness"
	"github.com/roach88/cadence/internal/trace"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	FPS      int
	Duration time.Duration
}

// PlayOutcome says why a play loop stopped.
type PlayOutcome string

const (
	PlayDrained     PlayOutcome = "drained"
	PlayInterrupted PlayOutcome = "interrupted"
	PlayTimedOut    PlayOutcome = "timed_out"
	PlayStopped     PlayOutcome = "stopped" // frame source closed
	PlayFailed      PlayOutcome = "failed"
)

// PlayResult summarizes a play session.
type PlayResult struct {
	Outcome PlayOutcome `json:"outcome"`
	Frames  int         `json:"frames"`
	Elapsed float64     `json:"elapsed"`
	Error   string      `json:"error,omitempty"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <scenario>",
		Short: "Drive a scenario from a real frame clock",
		Long: `Play a scenario's command tree against wall-clock time.

A ticker fires --fps times per second and every frame feeds the measured
time since the previous frame into the driver. The scenario's own updates
and assertions are ignored. Marks are printed as they fire.

Play stops when the driver drains, on Ctrl-C, or after --duration.

Examples:
  cadence play scenarios/fade.yaml
  cadence play scenarios/fade.yaml --fps 30 --duration 5s`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.FPS, "fps", 60, "frames per second")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 10*time.Second, "stop after this long (0 = no limit)")

	return cmd
}

func runPlay(opts *PlayOptions, path string, cmd *cobra.Command) error {
	if opts.FPS <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--fps must be positive, got %d", opts.FPS))
	}
	if opts.Duration < 0 {
		return NewExitError(ExitCommandError, "--duration must not be negative")
	}

	formatter := opts.formatter(cmd)
	logger := opts.logger()
	w := cmd.OutOrStdout()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	sessionOpts := []harness.Option{harness.WithLogger(logger)}
	if !formatter.JSON() {
		sessionOpts = append(sessionOpts, harness.WithEventSink(markPrinter(w)))
	}
	session, err := harness.NewSession(scenario, sessionOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalid, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to build scenario", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second / time.Duration(opts.FPS))
	defer ticker.Stop()

	logger.Info("play started", "scenario", scenario.Name, "fps", opts.FPS, "duration", opts.Duration)
	result := playLoop(ctx, session, ticker.C, time.Now())
	logger.Info("play stopped", "outcome", result.Outcome, "frames", result.Frames)

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result, RunID: session.Result().RunID}
		if result.Outcome == PlayFailed {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeFailed, Message: result.Error}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "%s after %d frames (%.3fs)\n", result.Outcome, result.Frames, result.Elapsed)
		if result.Error != "" {
			fmt.Fprintf(w, "  %s\n", result.Error)
		}
	}

	if result.Outcome == PlayFailed {
		return NewExitError(ExitFailure, result.Error)
	}
	return nil
}

// playLoop steps session once per frame with the time measured since the
// previous frame, starting from start. It returns when the driver drains,
// the session fails, ctx is done or frames is closed.
func playLoop(ctx context.Context, session *harness.Session, frames <-chan time.Time, start time.Time) PlayResult {
	var result PlayResult
	last := start

	for {
		select {
		case <-ctx.Done():
			result.Outcome = PlayInterrupted
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				result.Outcome = PlayTimedOut
			}
			return result

		case now, ok := <-frames:
			if !ok {
				result.Outcome = PlayStopped
				return result
			}

			dt := now.Sub(last).Seconds()
			if dt < 0 {
				dt = 0
			}
			last = now

			result.Frames++
			drained, err := session.Step(dt)
			if err != nil {
				result.Outcome = PlayFailed
				result.Error = err.Error()
				return result
			}
			result.Elapsed += dt
			if drained {
				result.Outcome = PlayDrained
				return result
			}
		}
	}
}

// markPrinter prints marks and failures as they are recorded.
func markPrinter(w io.Writer) func(trace.Event) {
	return func(e trace.Event) {
		switch e.Kind {
		case trace.KindMark, trace.KindFail, trace.KindError:
			fmt.Fprintf(w, "[%d] %s %s\n", e.Tick, e.Kind, e.Label)
		}
	}
}
