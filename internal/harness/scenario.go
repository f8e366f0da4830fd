package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance run: a command tree, the driver that runs
// it, the host updates that feed it and the assertions on what happened.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Driver is "queue" (default) or "scheduler".
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty"`

	// Seed feeds the random source of choose_random nodes.
	Seed uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`

	// MaxSteps bounds the number of command advances in the whole run.
	// Zero means DefaultMaxSteps.
	MaxSteps int `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`

	// Counters holds initial counter values. Unlisted counters start at 0.
	Counters map[string]int `yaml:"counters,omitempty" json:"counters,omitempty"`

	// Commands are enqueued in order (queue) or added one by one (scheduler).
	Commands []Node `yaml:"commands" json:"commands"`

	// Updates are the host steps, applied in order.
	Updates []Update `yaml:"updates" json:"updates"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions" json:"assertions"`
}

// Driver names.
const (
	DriverQueue     = "queue"
	DriverScheduler = "scheduler"
)

// DefaultMaxSteps is the advance budget of a run when max_steps is unset.
const DefaultMaxSteps = 1_000_000

// Node describes one command. Exactly one field is set.
type Node struct {
	Mark       string   `yaml:"mark,omitempty" json:"mark,omitempty"`
	Incr       string   `yaml:"incr,omitempty" json:"incr,omitempty"`
	Set        *SetSpec `yaml:"set,omitempty" json:"set,omitempty"`
	Fail       string   `yaml:"fail,omitempty" json:"fail,omitempty"`
	Pause      bool     `yaml:"pause,omitempty" json:"pause,omitempty"`
	Resume     bool     `yaml:"resume,omitempty" json:"resume,omitempty"`
	UpdateSelf bool     `yaml:"update_self,omitempty" json:"update_self,omitempty"`
	Enqueue    []Node   `yaml:"enqueue,omitempty" json:"enqueue,omitempty"`
	Noop       bool     `yaml:"noop,omitempty" json:"noop,omitempty"`
	Tick       bool     `yaml:"tick,omitempty" json:"tick,omitempty"`

	Wait       *float64      `yaml:"wait,omitempty" json:"wait,omitempty"`
	WaitFrames *int          `yaml:"wait_frames,omitempty" json:"wait_frames,omitempty"`
	Duration   *DurationSpec `yaml:"duration,omitempty" json:"duration,omitempty"`

	Sequence      []Node         `yaml:"sequence,omitempty" json:"sequence,omitempty"`
	Parallel      []Node         `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	Repeat        *RepeatSpec    `yaml:"repeat,omitempty" json:"repeat,omitempty"`
	RepeatForever []Node         `yaml:"repeat_forever,omitempty" json:"repeat_forever,omitempty"`
	Condition     *ConditionSpec `yaml:"condition,omitempty" json:"condition,omitempty"`
	While         *WhileSpec     `yaml:"while,omitempty" json:"while,omitempty"`
	Require       *RequireSpec   `yaml:"require,omitempty" json:"require,omitempty"`
	ChooseRandom  []Node         `yaml:"choose_random,omitempty" json:"choose_random,omitempty"`
	Defer         []Node         `yaml:"defer,omitempty" json:"defer,omitempty"`
	Coroutine     []Node         `yaml:"coroutine,omitempty" json:"coroutine,omitempty"`
	Queue         []Node         `yaml:"queue,omitempty" json:"queue,omitempty"`
}

// SetSpec writes a counter.
type SetSpec struct {
	Counter string `yaml:"counter" json:"counter"`
	Value   int    `yaml:"value" json:"value"`
}

// DurationSpec is a labelled Duration whose progress is traced.
type DurationSpec struct {
	Label  string  `yaml:"label" json:"label"`
	Length float64 `yaml:"length" json:"length"`
}

// RepeatSpec runs Body Count times.
type RepeatSpec struct {
	Count int    `yaml:"count" json:"count"`
	Body  []Node `yaml:"body" json:"body"`
}

// ConditionSpec picks Then or Else when it starts.
type ConditionSpec struct {
	If   Predicate `yaml:"if" json:"if"`
	Then []Node    `yaml:"then" json:"then"`
	Else []Node    `yaml:"else,omitempty" json:"else,omitempty"`
}

// WhileSpec reruns Body while the predicate holds.
type WhileSpec struct {
	While Predicate `yaml:"while" json:"while"`
	Body  []Node    `yaml:"body" json:"body"`
}

// RequireSpec guards Body with a predicate checked every call.
type RequireSpec struct {
	Require Predicate `yaml:"require" json:"require"`
	Body    []Node    `yaml:"body" json:"body"`
	OnFail  []Node    `yaml:"on_fail,omitempty" json:"on_fail,omitempty"`
	// WhileFailing keeps the guard alive while the predicate is false.
	WhileFailing []Node `yaml:"while_failing,omitempty" json:"while_failing,omitempty"`
}

// Predicate compares a counter, optionally reduced modulo Mod, against
// exactly one bound.
type Predicate struct {
	Counter string `yaml:"counter" json:"counter"`
	Mod     int    `yaml:"mod,omitempty" json:"mod,omitempty"`
	Eq      *int   `yaml:"eq,omitempty" json:"eq,omitempty"`
	Ne      *int   `yaml:"ne,omitempty" json:"ne,omitempty"`
	Lt      *int   `yaml:"lt,omitempty" json:"lt,omitempty"`
	Le      *int   `yaml:"le,omitempty" json:"le,omitempty"`
	Gt      *int   `yaml:"gt,omitempty" json:"gt,omitempty"`
	Ge      *int   `yaml:"ge,omitempty" json:"ge,omitempty"`
}

// Update is one host step. Exactly one of dt, process, run_to_end,
// until_drained, pause, resume or set is given.
type Update struct {
	DT    *float64 `yaml:"dt,omitempty" json:"dt,omitempty"`
	Count int      `yaml:"count,omitempty" json:"count,omitempty"`

	Process      bool              `yaml:"process,omitempty" json:"process,omitempty"`
	RunToEnd     bool              `yaml:"run_to_end,omitempty" json:"run_to_end,omitempty"`
	UntilDrained *UntilDrainedSpec `yaml:"until_drained,omitempty" json:"until_drained,omitempty"`
	Pause        bool              `yaml:"pause,omitempty" json:"pause,omitempty"`
	Resume       bool              `yaml:"resume,omitempty" json:"resume,omitempty"`
	Set          *SetSpec          `yaml:"set,omitempty" json:"set,omitempty"`
}

// UntilDrainedSpec updates at a fixed rate until the driver drains.
type UntilDrainedSpec struct {
	DT       float64 `yaml:"dt" json:"dt"`
	MaxTicks int     `yaml:"max_ticks,omitempty" json:"max_ticks,omitempty"`
}

// DefaultMaxTicks bounds until_drained when max_ticks is unset.
const DefaultMaxTicks = 100_000

// Assertion validates the trace or final state of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type" json:"type"`

	// Marks is the expected mark order (trace_order).
	Marks []string `yaml:"marks,omitempty" json:"marks,omitempty"`

	// Kind and Label select events (trace_count); Label also names the
	// duration of a progress assertion. Kind defaults to "mark".
	Kind  string `yaml:"kind,omitempty" json:"kind,omitempty"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`

	// Counter and Value check a final counter value (counter).
	Counter string `yaml:"counter,omitempty" json:"counter,omitempty"`
	Value   *int   `yaml:"value,omitempty" json:"value,omitempty"`

	// Count is the expected number of events (trace_count) or ticks (ticks).
	Count *int `yaml:"count,omitempty" json:"count,omitempty"`

	// Expect is the expected drained flag (drained).
	Expect *bool `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Seconds is the expected fed time (elapsed).
	Seconds *float64 `yaml:"seconds,omitempty" json:"seconds,omitempty"`

	// Progress is the expected last progress of Label (progress).
	Progress *float64 `yaml:"progress,omitempty" json:"progress,omitempty"`

	// Tolerance applies to elapsed and progress. Zero means 1e-9.
	Tolerance float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`

	// Contains must be a substring of the run error (error).
	Contains string `yaml:"contains,omitempty" json:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceOrder = "trace_order"
	AssertTraceCount = "trace_count"
	AssertCounter    = "counter"
	AssertDrained    = "drained"
	AssertElapsed    = "elapsed"
	AssertTicks      = "ticks"
	AssertProgress   = "progress"
	AssertError      = "error"
)

// LoadError reports a scenario that could not be read or decoded. Pos is set
// for CUE errors that carry a source position.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// IsScenarioFile reports whether path has a scenario extension.
func IsScenarioFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".cue", ".json":
		return true
	}
	return false
}

// LoadScenario reads and parses a scenario file. YAML, JSON and CUE are
// accepted, chosen by extension. Unknown fields are rejected in every format
// so typos like "assertion:" fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	switch filepath.Ext(path) {
	case ".cue":
		scenario, err = parseCUE(path, data)
	case ".json":
		scenario, err = parseJSON(path, data)
	default:
		scenario, err = ParseScenario(data)
		if err != nil {
			err = &LoadError{Path: path, Message: err.Error()}
		}
	}
	if err != nil {
		return nil, err
	}

	if err := ValidateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return scenario, nil
}

// ParseScenario decodes YAML scenario data without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func parseJSON(path string, data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&scenario); err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("failed to parse JSON: %v", err)}
	}
	return &scenario, nil
}

// parseCUE evaluates a CUE scenario, requires it to be concrete and decodes
// its JSON export.
func parseCUE(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, cueLoadError(path, err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(path, err)
	}

	exported, err := value.MarshalJSON()
	if err != nil {
		return nil, cueLoadError(path, err)
	}
	return parseJSON(path, exported)
}

func cueLoadError(path string, err error) *LoadError {
	le := &LoadError{Path: path, Message: err.Error()}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		le.Pos = positions[0]
		le.Message = cueerrors.Details(err, nil)
		le.Message = strings.TrimSpace(le.Message)
	}
	return le
}

// ValidateScenario checks required fields and the shape of every node,
// update and assertion. The command tree itself is checked again when it is
// built.
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Driver {
	case "", DriverQueue, DriverScheduler:
	default:
		return fmt.Errorf("driver must be %q or %q, got %q", DriverQueue, DriverScheduler, s.Driver)
	}

	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}
	if len(s.Commands) == 0 {
		return fmt.Errorf("commands list is required and must be non-empty")
	}
	if len(s.Updates) == 0 {
		return fmt.Errorf("updates list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, n := range s.Commands {
		if err := validateNode(fmt.Sprintf("commands[%d]", i), n, false); err != nil {
			return err
		}
	}
	for i, u := range s.Updates {
		if err := validateUpdate(i, u); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// nodeKind returns the single key set on n, or an error naming the problem.
func nodeKind(n Node) (string, error) {
	var kinds []string
	add := func(set bool, name string) {
		if set {
			kinds = append(kinds, name)
		}
	}

	add(n.Mark != "", "mark")
	add(n.Incr != "", "incr")
	add(n.Set != nil, "set")
	add(n.Fail != "", "fail")
	add(n.Pause, "pause")
	add(n.Resume, "resume")
	add(n.UpdateSelf, "update_self")
	add(n.Enqueue != nil, "enqueue")
	add(n.Noop, "noop")
	add(n.Tick, "tick")
	add(n.Wait != nil, "wait")
	add(n.WaitFrames != nil, "wait_frames")
	add(n.Duration != nil, "duration")
	add(n.Sequence != nil, "sequence")
	add(n.Parallel != nil, "parallel")
	add(n.Repeat != nil, "repeat")
	add(n.RepeatForever != nil, "repeat_forever")
	add(n.Condition != nil, "condition")
	add(n.While != nil, "while")
	add(n.Require != nil, "require")
	add(n.ChooseRandom != nil, "choose_random")
	add(n.Defer != nil, "defer")
	add(n.Coroutine != nil, "coroutine")
	add(n.Queue != nil, "queue")

	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("node has no command key")
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("node has several command keys: %s", strings.Join(kinds, ", "))
	}
}

// validateNode checks n and its children. inCoroutine allows tick steps.
func validateNode(path string, n Node, inCoroutine bool) error {
	kind, err := nodeKind(n)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	children := func(field string, nodes []Node, coroutine bool) error {
		for i, c := range nodes {
			if err := validateNode(fmt.Sprintf("%s.%s[%d]", path, field, i), c, coroutine); err != nil {
				return err
			}
		}
		return nil
	}

	switch kind {
	case "tick":
		if !inCoroutine {
			return fmt.Errorf("%s: tick is only valid directly inside a coroutine", path)
		}
	case "noop":
		// Only meaningful as a choose_random slot, harmless elsewhere.
	case "set":
		if n.Set.Counter == "" {
			return fmt.Errorf("%s: set.counter is required", path)
		}
	case "wait":
		if math.IsNaN(*n.Wait) {
			return fmt.Errorf("%s: wait must be a number", path)
		}
	case "wait_frames":
		if *n.WaitFrames < 0 {
			return fmt.Errorf("%s: wait_frames must be >= 0", path)
		}
	case "duration":
		if n.Duration.Label == "" {
			return fmt.Errorf("%s: duration.label is required", path)
		}
		if math.IsNaN(n.Duration.Length) {
			return fmt.Errorf("%s: duration.length must be a number", path)
		}
	case "enqueue":
		return children("enqueue", n.Enqueue, false)
	case "sequence":
		return children("sequence", n.Sequence, false)
	case "parallel":
		return children("parallel", n.Parallel, false)
	case "repeat":
		if n.Repeat.Count < 1 {
			return fmt.Errorf("%s: repeat.count must be >= 1", path)
		}
		return children("repeat.body", n.Repeat.Body, false)
	case "repeat_forever":
		if len(n.RepeatForever) == 0 {
			return fmt.Errorf("%s: repeat_forever needs at least one command", path)
		}
		return children("repeat_forever", n.RepeatForever, false)
	case "condition":
		if err := validatePredicate(path+".condition.if", n.Condition.If); err != nil {
			return err
		}
		if len(n.Condition.Then) == 0 {
			return fmt.Errorf("%s: condition.then is required", path)
		}
		if err := children("condition.then", n.Condition.Then, false); err != nil {
			return err
		}
		return children("condition.else", n.Condition.Else, false)
	case "while":
		if err := validatePredicate(path+".while.while", n.While.While); err != nil {
			return err
		}
		if len(n.While.Body) == 0 {
			return fmt.Errorf("%s: while.body is required", path)
		}
		return children("while.body", n.While.Body, false)
	case "require":
		if err := validatePredicate(path+".require.require", n.Require.Require); err != nil {
			return err
		}
		if len(n.Require.Body) == 0 {
			return fmt.Errorf("%s: require.body is required", path)
		}
		if err := children("require.body", n.Require.Body, false); err != nil {
			return err
		}
		if err := children("require.on_fail", n.Require.OnFail, false); err != nil {
			return err
		}
		return children("require.while_failing", n.Require.WhileFailing, false)
	case "choose_random":
		return children("choose_random", n.ChooseRandom, false)
	case "defer":
		return children("defer", n.Defer, false)
	case "coroutine":
		return children("coroutine", n.Coroutine, true)
	case "queue":
		return children("queue", n.Queue, false)
	}
	return nil
}

func validatePredicate(path string, p Predicate) error {
	if p.Counter == "" {
		return fmt.Errorf("%s: counter is required", path)
	}
	if p.Mod < 0 {
		return fmt.Errorf("%s: mod must be non-negative", path)
	}

	bounds := 0
	for _, b := range []*int{p.Eq, p.Ne, p.Lt, p.Le, p.Gt, p.Ge} {
		if b != nil {
			bounds++
		}
	}
	if bounds != 1 {
		return fmt.Errorf("%s: exactly one of eq, ne, lt, le, gt, ge is required", path)
	}
	return nil
}

func validateUpdate(index int, u Update) error {
	steps := 0
	for _, set := range []bool{u.DT != nil, u.Process, u.RunToEnd, u.UntilDrained != nil, u.Pause, u.Resume, u.Set != nil} {
		if set {
			steps++
		}
	}
	if steps != 1 {
		return fmt.Errorf("updates[%d]: exactly one of dt, process, run_to_end, until_drained, pause, resume, set is required", index)
	}

	switch {
	case u.DT != nil:
		if *u.DT < 0 || math.IsNaN(*u.DT) {
			return fmt.Errorf("updates[%d]: dt must be non-negative", index)
		}
		if u.Count < 0 {
			return fmt.Errorf("updates[%d]: count must be non-negative", index)
		}
	case u.UntilDrained != nil:
		if u.UntilDrained.DT <= 0 || math.IsNaN(u.UntilDrained.DT) {
			return fmt.Errorf("updates[%d]: until_drained.dt must be positive", index)
		}
		if u.UntilDrained.MaxTicks < 0 {
			return fmt.Errorf("updates[%d]: until_drained.max_ticks must be non-negative", index)
		}
	case u.Set != nil:
		if u.Set.Counter == "" {
			return fmt.Errorf("updates[%d]: set.counter is required", index)
		}
	}
	if u.Count != 0 && u.DT == nil {
		return fmt.Errorf("updates[%d]: count is only valid with dt", index)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceOrder:
		if len(a.Marks) == 0 {
			return fmt.Errorf("assertions[%d]: marks list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for trace_count", index)
		}
	case AssertCounter:
		if a.Counter == "" || a.Value == nil {
			return fmt.Errorf("assertions[%d]: counter and value are required for counter", index)
		}
	case AssertDrained:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for drained", index)
		}
	case AssertElapsed:
		if a.Seconds == nil {
			return fmt.Errorf("assertions[%d]: seconds is required for elapsed", index)
		}
	case AssertTicks:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for ticks", index)
		}
	case AssertProgress:
		if a.Label == "" || a.Progress == nil {
			return fmt.Errorf("assertions[%d]: label and progress are required for progress", index)
		}
	case AssertError:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Tolerance < 0 {
		return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
	}
	return nil
}
