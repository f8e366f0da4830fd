package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/testutil"
)

// Golden files are regenerated with:
//
//	go test ./internal/harness -update
func TestRunWithGolden_FadeThenMark(t *testing.T) {
	scenario := mustParse(t, `
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
`)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_PauseResume(t *testing.T) {
	scenario := mustParse(t, `
name: pause_resume
description: Host pause holds the queue without losing the wait
commands:
  - wait: 1.0
  - mark: done
updates:
  - dt: 0.5
  - pause: true
  - dt: 5
  - resume: true
  - dt: 0.5
assertions:
  - type: trace_count
    label: done
    count: 1
  - type: elapsed
    seconds: 6
`)

	result, err := RunWithGolden(t, scenario, WithRunIDGenerator(testutil.NewFixedRunIDGenerator("golden")))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(3), result.Trace[2].Tick, "the wait resumes where it stopped")
}

func TestCompareGolden(t *testing.T) {
	result, err := Run(mustParse(t, `
name: compare
description: Golden comparison without testing.T
commands: [{mark: a}]
updates: [{process: true}]
assertions: [{type: ticks, count: 1}]
`))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "golden", "compare.golden")

	status, err := CompareGolden(path, result, false)
	require.NoError(t, err)
	assert.Equal(t, GoldenMissing, status)

	status, err = CompareGolden(path, result, true)
	require.NoError(t, err)
	assert.Equal(t, GoldenUpdated, status)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"kind\":\"mark\",\"label\":\"a\",\"tick\":1}\n", string(data))

	status, err = CompareGolden(path, result, false)
	require.NoError(t, err)
	assert.Equal(t, GoldenMatch, status)

	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	status, err = CompareGolden(path, result, false)
	require.NoError(t, err)
	assert.Equal(t, GoldenMismatch, status)
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "fade.golden"), GoldenPath("scenarios", "fade"))
}
