package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseScenario_Fields(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: full
description: Every top-level field
driver: scheduler
seed: 9
max_steps: 50
counters: {hp: 3}
commands:
  - duration: {label: fade, length: 0.5}
  - repeat: {count: 2, body: [{mark: r}]}
  - require:
      require: {counter: hp, ge: 1}
      body: [{wait: 1}]
      on_fail: [{mark: dead}]
      while_failing: [{incr: waits}]
updates:
  - dt: 0.1
    count: 3
  - until_drained: {dt: 0.5, max_ticks: 10}
assertions:
  - type: elapsed
    seconds: 0.3
    tolerance: 0.001
`))
	require.NoError(t, err)
	require.NoError(t, ValidateScenario(scenario))

	assert.Equal(t, "full", scenario.Name)
	assert.Equal(t, DriverScheduler, scenario.Driver)
	assert.Equal(t, uint64(9), scenario.Seed)
	assert.Equal(t, 50, scenario.MaxSteps)
	assert.Equal(t, map[string]int{"hp": 3}, scenario.Counters)

	require.Len(t, scenario.Commands, 3)
	assert.Equal(t, &DurationSpec{Label: "fade", Length: 0.5}, scenario.Commands[0].Duration)
	assert.Equal(t, 2, scenario.Commands[1].Repeat.Count)
	require.NotNil(t, scenario.Commands[2].Require.Require.Ge)
	assert.Equal(t, 1, *scenario.Commands[2].Require.Require.Ge)
	assert.Equal(t, []Node{{Incr: "waits"}}, scenario.Commands[2].Require.WhileFailing)

	require.Len(t, scenario.Updates, 2)
	assert.Equal(t, 0.1, *scenario.Updates[0].DT)
	assert.Equal(t, 3, scenario.Updates[0].Count)
	assert.Equal(t, &UntilDrainedSpec{DT: 0.5, MaxTicks: 10}, scenario.Updates[1].UntilDrained)

	assert.Equal(t, 0.001, scenario.Assertions[0].Tolerance)
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: misspelled key
commands: [{mark: a}]
updates: [{process: true}]
assertion: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "basic.yaml", `
name: basic
description: A single mark
commands: [{mark: a}]
updates: [{process: true}]
assertions: [{type: ticks, count: 1}]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "basic", scenario.Name)
}

func TestLoadScenario_CUE(t *testing.T) {
	path := writeFile(t, t.TempDir(), "basic.cue", `
_fade: 0.5

name:        "cue_basic"
description: "Scenario authored in CUE"
commands: [
	{duration: {label: "fade", length: _fade}},
	{mark: "done"},
]
updates: [{dt: _fade, count: 1}]
assertions: [
	{type: "progress", label: "fade", progress: 1.0},
]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "cue_basic", scenario.Name)
	assert.Equal(t, 0.5, scenario.Commands[0].Duration.Length)
	assert.Equal(t, 0.5, *scenario.Updates[0].DT)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestLoadScenario_CUESyntaxErrorHasPosition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.cue", "name: \"unterminated\n")

	_, err := LoadScenario(path)
	require.Error(t, err)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, path, le.Path)
	assert.True(t, le.Pos.IsValid())
}

func TestLoadScenario_CUEMustBeConcrete(t *testing.T) {
	path := writeFile(t, t.TempDir(), "abstract.cue", `
name:        string
description: "Name is left open"
commands: [{mark: "a"}]
updates: [{process: true}]
assertions: [{type: "ticks", count: 1}]
`)

	_, err := LoadScenario(path)
	require.Error(t, err)

	var le *LoadError
	assert.True(t, errors.As(err, &le))
}

func TestLoadScenario_JSON(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "basic.json", `{
  "name": "json_basic",
  "description": "Scenario authored in JSON",
  "commands": [{"mark": "a"}],
  "updates": [{"process": true}],
  "assertions": [{"type": "trace_order", "marks": ["a"]}]
}`)
	bad := writeFile(t, dir, "bad.json", `{"name": "x", "descripton": "typo"}`)

	scenario, err := LoadScenario(good)
	require.NoError(t, err)
	assert.Equal(t, "json_basic", scenario.Name)

	_, err = LoadScenario(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "descripton")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_InvalidIsRejected(t *testing.T) {
	path := writeFile(t, t.TempDir(), "invalid.yaml", `
name: invalid
description: No commands
commands: []
updates: [{process: true}]
assertions: [{type: ticks, count: 0}]
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commands list is required")
}

func TestIsScenarioFile(t *testing.T) {
	for path, want := range map[string]bool{
		"a.yaml": true,
		"a.yml":  true,
		"a.cue":  true,
		"a.json": true,
		"a.go":   false,
		"golden": false,
	} {
		assert.Equal(t, want, IsScenarioFile(path), path)
	}
}

func TestValidateScenario_Errors(t *testing.T) {
	base := func() *Scenario {
		return &Scenario{
			Name:        "v",
			Description: "d",
			Commands:    []Node{{Mark: "a"}},
			Updates:     []Update{{Process: true}},
			Assertions:  []Assertion{{Type: AssertTicks, Count: intPtr(1)}},
		}
	}

	tests := []struct {
		name   string
		mutate func(s *Scenario)
		want   string
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"unknown driver", func(s *Scenario) { s.Driver = "thread" }, "driver must be"},
		{"negative max_steps", func(s *Scenario) { s.MaxSteps = -1 }, "max_steps must be non-negative"},
		{"no updates", func(s *Scenario) { s.Updates = nil }, "updates list is required"},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"empty node", func(s *Scenario) { s.Commands = []Node{{}} }, "commands[0]: node has no command key"},
		{"several keys", func(s *Scenario) {
			s.Commands = []Node{{Mark: "a", Incr: "n"}}
		}, "several command keys: mark, incr"},
		{"tick outside coroutine", func(s *Scenario) {
			s.Commands = []Node{{Sequence: []Node{{Tick: true}}}}
		}, "commands[0].sequence[0]: tick is only valid directly inside a coroutine"},
		{"repeat count", func(s *Scenario) {
			s.Commands = []Node{{Repeat: &RepeatSpec{Count: 0}}}
		}, "repeat.count must be >= 1"},
		{"empty repeat_forever", func(s *Scenario) {
			s.Commands = []Node{{RepeatForever: []Node{}}}
		}, "repeat_forever needs at least one command"},
		{"negative frames", func(s *Scenario) {
			s.Commands = []Node{{WaitFrames: intPtr(-1)}}
		}, "wait_frames must be >= 0"},
		{"unlabelled duration", func(s *Scenario) {
			s.Commands = []Node{{Duration: &DurationSpec{Length: 1}}}
		}, "duration.label is required"},
		{"predicate without bound", func(s *Scenario) {
			s.Commands = []Node{{While: &WhileSpec{While: Predicate{Counter: "n"}, Body: []Node{{Mark: "a"}}}}}
		}, "exactly one of eq, ne, lt, le, gt, ge is required"},
		{"predicate with two bounds", func(s *Scenario) {
			s.Commands = []Node{{Condition: &ConditionSpec{
				If:   Predicate{Counter: "n", Eq: intPtr(1), Lt: intPtr(2)},
				Then: []Node{{Mark: "a"}},
			}}}
		}, "exactly one of eq, ne, lt, le, gt, ge is required"},
		{"while without body", func(s *Scenario) {
			s.Commands = []Node{{While: &WhileSpec{While: Predicate{Counter: "n", Lt: intPtr(1)}}}}
		}, "while.body is required"},
		{"while_failing child error", func(s *Scenario) {
			s.Commands = []Node{{Require: &RequireSpec{
				Require:      Predicate{Counter: "n", Gt: intPtr(0)},
				Body:         []Node{{Mark: "a"}},
				WhileFailing: []Node{{}},
			}}}
		}, "commands[0].require.while_failing[0]: node has no command key"},
		{"nested child error", func(s *Scenario) {
			s.Commands = []Node{{Parallel: []Node{{Mark: "a"}, {Queue: []Node{{}}}}}}
		}, "commands[0].parallel[1].queue[0]: node has no command key"},
		{"two update steps", func(s *Scenario) {
			s.Updates = []Update{{Process: true, Pause: true}}
		}, "updates[0]: exactly one of"},
		{"negative dt", func(s *Scenario) {
			s.Updates = []Update{{DT: floatPtr(-0.1)}}
		}, "dt must be non-negative"},
		{"count without dt", func(s *Scenario) {
			s.Updates = []Update{{Process: true, Count: 2}}
		}, "count is only valid with dt"},
		{"until_drained zero dt", func(s *Scenario) {
			s.Updates = []Update{{UntilDrained: &UntilDrainedSpec{}}}
		}, "until_drained.dt must be positive"},
		{"unknown assertion", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: "final_state"}}
		}, `unknown assertion type "final_state"`},
		{"assertion missing field", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertCounter, Counter: "n"}}
		}, "counter and value are required"},
		{"negative tolerance", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertElapsed, Seconds: floatPtr(1), Tolerance: -1}}
		}, "tolerance must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)
			err := ValidateScenario(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	require.NoError(t, ValidateScenario(base()))
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
