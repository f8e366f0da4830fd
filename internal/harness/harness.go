package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/trace"
)

// RunIDGenerator stamps each run with an identifier.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Option configures a run.
type Option func(*config)

type config struct {
	logger *slog.Logger
	runIDs RunIDGenerator
	rng    engine.Rand
	sinks  []func(trace.Event)
}

// WithLogger sets the logger passed to the driver. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(gen RunIDGenerator) Option {
	return func(c *config) {
		c.runIDs = gen
	}
}

// WithRand overrides the seeded random source of choose_random nodes.
func WithRand(rng engine.Rand) Option {
	return func(c *config) {
		c.rng = rng
	}
}

// WithEventSink registers fn to observe every trace event as it is recorded.
func WithEventSink(fn func(trace.Event)) Option {
	return func(c *config) {
		c.sinks = append(c.sinks, fn)
	}
}

// Session is a scenario bound to live state: counters, a driver and a trace
// recorder. Run drives a session with the scenario's own updates; hosts with
// a real frame loop call Step instead.
//
// Thread-safety: none. A Session belongs to the goroutine that steps it.
type Session struct {
	scenario *Scenario
	runID    string

	counters map[string]int
	progress map[string]float64
	rec      *trace.Recorder
	clock    *engine.Clock
	queue    *engine.Queue
	sched    *engine.Scheduler
	rng      engine.Rand
	quota    *QuotaEnforcer
	logger   *slog.Logger

	elapsed float64
	drained bool
	err     error
}

// NewSession validates the scenario, builds its command tree and loads it
// into a fresh driver. No update has happened yet.
func NewSession(scenario *Scenario, opts ...Option) (*Session, error) {
	if err := ValidateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	cfg := &config{runIDs: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewPCG(scenario.Seed, scenario.Seed))
	}

	maxSteps := scenario.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}

	s := &Session{
		scenario: scenario,
		runID:    cfg.runIDs.Generate(),
		counters: make(map[string]int, len(scenario.Counters)),
		progress: make(map[string]float64),
		clock:    engine.NewClock(),
		rng:      cfg.rng,
		quota:    NewQuotaEnforcer(maxSteps),
		logger:   cfg.logger.With("scenario", scenario.Name),
	}
	for k, v := range scenario.Counters {
		s.counters[k] = v
	}
	s.rec = trace.NewRecorder(s.clock.Current)
	for _, sink := range cfg.sinks {
		s.rec.Subscribe(sink)
	}

	if scenario.Driver == DriverScheduler {
		s.sched = engine.NewScheduler(
			engine.WithSchedulerLogger(s.logger),
			engine.WithSchedulerClock(s.clock),
		)
	} else {
		s.queue = engine.NewQueue(
			engine.WithQueueName(scenario.Name),
			engine.WithQueueLogger(s.logger),
			engine.WithQueueClock(s.clock),
		)
	}

	cmds, err := s.build(scenario.Commands)
	if err != nil {
		return nil, fmt.Errorf("build commands: %w", err)
	}
	if err := s.add(cmds...); err != nil {
		return nil, fmt.Errorf("load commands: %w", err)
	}

	return s, nil
}

// Run executes a scenario with its own update steps and evaluates its
// assertions.
//
// The returned error reports a scenario that could not be built. Failures
// during the run (command errors, exhausted step quota, a driver that never
// drains) are recorded on the Result instead, where error assertions can
// match them.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	s, err := NewSession(scenario, opts...)
	if err != nil {
		return nil, err
	}

	for i, u := range scenario.Updates {
		if err := s.apply(u); err != nil {
			s.fail(err)
			s.logger.Debug("update failed", "update", i, "error", err)
			break
		}
	}

	result := s.Result()
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	if result.RunError != "" && !hasErrorAssertion(scenario.Assertions) {
		result.AddError("run failed: " + result.RunError)
	}

	s.logger.Debug("scenario finished",
		"run_id", result.RunID,
		"pass", result.Pass,
		"ticks", result.Ticks,
	)
	return result, nil
}

func hasErrorAssertion(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}

// Step advances the session's driver by dt seconds, as one host frame.
// After the first error the session is failed and Step returns that error
// again without updating.
func (s *Session) Step(dt float64) (bool, error) {
	return s.tick(dt, true)
}

// tick updates the driver once; counted ticks add dt to the fed time.
func (s *Session) tick(dt float64, counted bool) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	drained, err := s.update(dt)
	if err != nil {
		s.fail(err)
		return false, err
	}
	if counted {
		s.elapsed += dt
	}
	return drained, nil
}

// apply runs one scenario update step.
func (s *Session) apply(u Update) error {
	switch {
	case u.DT != nil:
		count := u.Count
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			if _, err := s.Step(*u.DT); err != nil {
				return err
			}
		}

	case u.Process:
		_, err := s.tick(0, false)
		return err

	case u.RunToEnd:
		// Not counted in elapsed: the budget is effectively infinite.
		_, err := s.tick(math.MaxFloat64, false)
		return err

	case u.UntilDrained != nil:
		maxTicks := u.UntilDrained.MaxTicks
		if maxTicks == 0 {
			maxTicks = DefaultMaxTicks
		}
		for i := 0; i < maxTicks; i++ {
			drained, err := s.Step(u.UntilDrained.DT)
			if err != nil {
				return err
			}
			if drained {
				return nil
			}
		}
		return &NotDrainedError{Ticks: maxTicks}

	case u.Pause:
		s.setPaused(true)
		s.rec.Record(trace.KindPause, "host", "")

	case u.Resume:
		s.setPaused(false)
		s.rec.Record(trace.KindResume, "host", "")

	case u.Set != nil:
		s.setCounter(*u.Set)
	}
	return nil
}

// update drives the scenario's driver once.
func (s *Session) update(dt float64) (bool, error) {
	var (
		drained bool
		err     error
	)
	if s.sched != nil {
		drained, err = s.sched.Update(dt)
	} else {
		drained, err = s.queue.Update(dt)
	}
	if err == nil {
		s.drained = drained
	}
	return drained, err
}

// add hands commands to the driver.
func (s *Session) add(cmds ...engine.Command) error {
	if s.sched == nil {
		return s.queue.Enqueue(cmds...)
	}
	for _, c := range cmds {
		if err := s.sched.Add(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) setPaused(paused bool) {
	if s.sched != nil {
		s.sched.SetPaused(paused)
		return
	}
	s.queue.SetPaused(paused)
}

func (s *Session) fail(err error) {
	if s.err != nil {
		return
	}
	s.err = err
	s.rec.Record(trace.KindError, errorLabel(err), "")
}

// errorLabel classifies a run error for the trace.
func errorLabel(err error) string {
	var re *engine.RuntimeError
	switch {
	case errors.As(err, &re):
		return string(re.Code)
	case IsStepsExceededError(err):
		return "STEPS_EXCEEDED"
	case errors.Is(err, ErrScenarioFailure):
		return "FAIL"
	case IsNotDrainedError(err):
		return "NOT_DRAINED"
	default:
		return "ERROR"
	}
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	return s.err
}

// Drained reports the driver state after the last successful update.
func (s *Session) Drained() bool {
	return s.drained
}

// Events returns the trace so far.
func (s *Session) Events() []trace.Event {
	return s.rec.Events()
}

// Result snapshots the session state. Assertions are not evaluated.
func (s *Session) Result() *Result {
	result := NewResult()
	result.Name = s.scenario.Name
	result.RunID = s.runID
	result.Trace = s.rec.Events()
	result.Ticks = s.clock.Current()
	result.Elapsed = s.elapsed
	result.Drained = s.drained
	result.Steps = s.quota.Current()
	result.MaxSteps = s.quota.MaxSteps()
	for k, v := range s.counters {
		result.Counters[k] = v
	}
	for k, v := range s.progress {
		result.Progress[k] = v
	}
	if s.err != nil {
		result.RunError = s.err.Error()
	}
	if digest, err := trace.Digest(result.Trace); err == nil {
		result.Digest = digest
	}
	return result
}

// NotDrainedError is returned when until_drained exhausts its tick budget.
type NotDrainedError struct {
	Ticks int
}

func (e *NotDrainedError) Error() string {
	return fmt.Sprintf("driver not drained after %d ticks", e.Ticks)
}

// IsNotDrainedError returns true if the error is a NotDrainedError.
func IsNotDrainedError(err error) bool {
	var nd *NotDrainedError
	return errors.As(err, &nd)
}
