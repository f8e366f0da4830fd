package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/testutil"
)

func TestRunCommand_Text(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "fade.yaml", passingScenario)

	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		RunIDs:      testutil.NewFixedRunIDGenerator("run-7"),
	}

	require.NoError(t, runScenario(opts, path, cmd))

	out := buf.String()
	assert.Contains(t, out, "Scenario fade_then_mark (run run-7)")
	assert.Contains(t, out, "  1 progress fade=0.5000\n")
	assert.Contains(t, out, "  2 progress fade=1.0000\n")
	assert.Contains(t, out, "  2 mark done\n")
	assert.Contains(t, out, "PASS ticks=2 elapsed=1 drained=true")
	assert.Contains(t, out, "/1000000\n", "step quota is reported")
}

func TestRunCommand_JSON(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "fade.yaml", passingScenario)

	out, err := execute(t, NewRunCommand, "json", path)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		RunID  string `json:"run_id"`
		Data   struct {
			Name  string `json:"name"`
			Pass  bool   `json:"pass"`
			Ticks int64  `json:"ticks"`
			Trace []struct {
				Tick  int64  `json:"tick"`
				Kind  string `json:"kind"`
				Label string `json:"label"`
			} `json:"trace"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "fade_then_mark", resp.Data.Name)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, int64(2), resp.Data.Ticks)
	require.Len(t, resp.Data.Trace, 3)
	assert.Equal(t, "mark", resp.Data.Trace[2].Kind)
}

func TestRunCommand_FailingScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "wrong.yaml", failingScenario)

	out, err := execute(t, NewRunCommand, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL ticks=1")
	assert.Contains(t, out, "Expected: 5 ticks")
}

func TestRunCommand_FailingScenarioJSON(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "wrong.yaml", failingScenario)

	out, err := execute(t, NewRunCommand, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFailed, resp.Error.Code)
}

func TestRunCommand_MissingFile(t *testing.T) {
	out, err := execute(t, NewRunCommand, "text", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_LOAD]")
}

func TestRunCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, NewRunCommand, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
