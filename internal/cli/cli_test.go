package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: fade_then_mark
description: A duration finishes before the mark runs
commands:
  - duration: {label: fade, length: 1.0}
  - mark: done
updates:
  - dt: 0.5
    count: 2
assertions:
  - type: trace_order
    marks: [done]
`

const failingScenario = `
name: wrong_ticks
description: Asserts a tick count that never happens
commands: [{mark: a}]
updates: [{process: true}]
assertions: [{type: ticks, count: 5}]
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs a subcommand built by newCmd with args and returns stdout.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newCmd(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
