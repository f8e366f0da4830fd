package engine

import (
	"io"
	"log/slog"
	"math"
	"slices"
)

// Scheduler advances an unordered set of independent commands.
//
// Every active command receives its own copy of the same delta each Update.
// Commands that report done are dropped. No ordering is implied between
// entries beyond each one observing the same elapsed time per tick.
//
// Unlike Queue, a Scheduler does not carry leftover budget between ticks:
// each entry is fully decoupled from its siblings.
type Scheduler struct {
	entries  []Command
	paused   bool
	updating bool

	clock  *Clock
	logger *slog.Logger
}

// SchedulerOption allows configuration of scheduler parameters.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the logger for Debug lifecycle records.
// Default: slog.Default(). Pass nil to discard.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithSchedulerClock sets the tick clock.
func WithSchedulerClock(clock *Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:  NewClock(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.clock == nil {
		s.clock = NewClock()
	}

	return s
}

// Add registers cmd for per-tick advancement. A command added while the
// scheduler is updating is first advanced on the next Update.
func (s *Scheduler) Add(cmd Command) error {
	if cmd == nil {
		return NewNilCommandError("Scheduler.Add", 0)
	}
	s.entries = append(s.entries, cmd)
	return nil
}

// Update advances every active command by deltaTime seconds (>= 0).
//
// Returns true iff no active command remains. An error from a command aborts
// the call; entries that already finished in this call are still dropped and
// the rest keep their state.
func (s *Scheduler) Update(deltaTime float64) (idle bool, err error) {
	if deltaTime < 0 || math.IsNaN(deltaTime) {
		return false, NewNegativeDeltaError("Scheduler.Update", deltaTime)
	}
	if s.updating {
		return false, NewReentrantError("Scheduler.Update")
	}

	s.updating = true
	s.clock.Next()
	defer func() {
		s.updating = false
		s.entries = slices.DeleteFunc(s.entries, func(c Command) bool { return c == nil })
	}()

	if s.paused {
		return len(s.entries) == 0, nil
	}

	// Entries appended during this loop sit beyond n.
	n := len(s.entries)
	for i := 0; i < n; i++ {
		// Pausing mid-call stops the remaining entries.
		if s.paused {
			break
		}
		local := deltaTime
		done, err := s.entries[i].Advance(&local)
		if err != nil {
			return false, err
		}
		if done {
			s.entries[i] = nil
			s.logger.Debug("scheduled command finished", "tick", s.clock.Current())
		}
	}

	return countActive(s.entries) == 0, nil
}

func countActive(entries []Command) int {
	active := 0
	for _, c := range entries {
		if c != nil {
			active++
		}
	}
	return active
}

// Len returns the number of active commands.
func (s *Scheduler) Len() int {
	return countActive(s.entries)
}

// Paused reports whether the scheduler is paused.
func (s *Scheduler) Paused() bool {
	return s.paused
}

// SetPaused pauses or resumes the scheduler. A paused scheduler advances
// nothing; entries keep their state. Pausing from inside an entry takes
// effect before the next entry of the same Update.
func (s *Scheduler) SetPaused(paused bool) {
	s.paused = paused
}

// Updating reports whether the scheduler is inside an Update call.
func (s *Scheduler) Updating() bool {
	return s.updating
}

// Ticks returns the number of accepted Update calls.
func (s *Scheduler) Ticks() int64 {
	return s.clock.Current()
}
