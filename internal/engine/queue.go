package engine

import (
	"io"
	"log/slog"
	"math"
)

// Queue runs top-level commands one at a time in FIFO order.
//
// Update feeds the queue a delta of elapsed time. The delta is added to an
// accumulated budget which is offered to the current command; whenever a
// command completes, the leftover is offered to the next pending one in the
// same call. The accumulated budget is reset to zero at the end of an Update
// only when no command is in progress.
//
// Thread-safety: none. A Queue belongs to the host loop that updates it.
// Update must never be entered recursively on the same instance; doing so
// returns ErrCodeReentrantUpdate.
//
// INVARIANTS:
//   - current != nil iff a command has started and not yet completed
//   - pending is append-only FIFO; commands enqueued during Update run after
//     everything already pending
type Queue struct {
	pending  []Command
	current  Command
	accum    float64
	paused   bool
	updating bool

	clock  *Clock
	name   string
	logger *slog.Logger
}

// QueueOption allows configuration of queue parameters.
type QueueOption func(*Queue)

// WithQueueName sets the name attached to the queue's log records.
func WithQueueName(name string) QueueOption {
	return func(q *Queue) {
		q.name = name
	}
}

// WithQueueLogger sets the logger for Debug lifecycle records.
// Default: slog.Default(). Pass nil to discard.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithQueueClock sets the tick clock, e.g. to resume numbering at a known tick.
func WithQueueClock(clock *Clock) QueueOption {
	return func(q *Queue) {
		q.clock = clock
	}
}

// NewQueue creates an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		pending: make([]Command, 0, 8),
		clock:   NewClock(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if q.clock == nil {
		q.clock = NewClock()
	}

	return q
}

// Enqueue appends commands to the back of the queue in the order given.
// Enqueue(a, b) is equivalent to Enqueue(a) followed by Enqueue(b).
//
// Enqueueing during Update is legal, including from a command running on this
// queue; the new commands run after everything already pending.
// Returns an ErrCodeNilCommand error, and enqueues nothing, if any command is nil.
func (q *Queue) Enqueue(cmds ...Command) error {
	for i, c := range cmds {
		if c == nil {
			return NewNilCommandError("Queue.Enqueue", i)
		}
	}
	q.pending = append(q.pending, cmds...)
	return nil
}

// Parallel enqueues cmds as a single Parallel command.
func (q *Queue) Parallel(cmds ...Command) error {
	for i, c := range cmds {
		if c == nil {
			return NewNilCommandError("Queue.Parallel", i)
		}
	}
	return q.Enqueue(Parallel(cmds...))
}

// Update advances the queue by deltaTime seconds (>= 0).
//
// Returns true iff, on exit, no command is pending or in progress. A paused
// queue reports its drained state without consuming time or running anything.
// Errors from commands abort the call and leave the current command in place.
func (q *Queue) Update(deltaTime float64) (bool, error) {
	return q.update(&deltaTime)
}

// Process is Update(0): it starts the first available command without
// advancing time.
func (q *Queue) Process() (bool, error) {
	return q.Update(0)
}

// RunToEnd updates the queue with an effectively infinite delta. Commands
// that wait on external state changes may never complete; the caller accepts
// that risk.
func (q *Queue) RunToEnd() (bool, error) {
	return q.Update(math.MaxFloat64)
}

// update is the shared body of Update and QueueCommand. On return *dt holds
// the queue's accumulated budget.
func (q *Queue) update(dt *float64) (drained bool, err error) {
	if *dt < 0 || math.IsNaN(*dt) {
		return false, NewNegativeDeltaError("Queue.Update", *dt)
	}
	if q.updating {
		return false, NewReentrantError("Queue.Update")
	}

	q.updating = true
	q.clock.Next()

	// A paused queue leaves *dt untouched so an embedding command can pass
	// the budget through.
	if q.paused {
		q.updating = false
		return q.Drained(), nil
	}

	defer func() {
		q.updating = false
		*dt = q.accum
		if q.current == nil {
			q.accum = 0
		}
	}()

	q.accum += *dt
	for q.current != nil || len(q.pending) > 0 {
		if q.current == nil {
			q.current = q.dequeue()
			q.logger.Debug("command started",
				"queue", q.name,
				"tick", q.clock.Current(),
				"pending", len(q.pending),
			)
		}

		done, err := q.current.Advance(&q.accum)
		if err != nil {
			return false, err
		}
		if !done {
			break
		}

		q.current = nil
		q.logger.Debug("command finished",
			"queue", q.name,
			"tick", q.clock.Current(),
			"leftover", q.accum,
		)

		// Pausing mid-call stops the next command from starting.
		if q.paused {
			break
		}
	}

	drained = q.Drained()
	if drained {
		q.logger.Debug("queue drained", "queue", q.name, "tick", q.clock.Current())
	}
	return drained, nil
}

// dequeue removes and returns the front pending command.
func (q *Queue) dequeue() Command {
	c := q.pending[0]

	// Nil out the slot so the backing array does not retain finished commands.
	q.pending[0] = nil
	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}

	return c
}

// Paused reports whether the queue is paused.
func (q *Queue) Paused() bool {
	return q.paused
}

// SetPaused pauses or resumes the queue. Pausing takes effect immediately:
// no further command starts until the queue is resumed, but the command in
// progress keeps its state.
func (q *Queue) SetPaused(paused bool) {
	q.paused = paused
}

// Updating reports whether the queue is inside an Update call.
func (q *Queue) Updating() bool {
	return q.updating
}

// Accumulated returns the budget the command in progress left unconsumed,
// e.g. the deltas banked while a frame wait is counting.
func (q *Queue) Accumulated() float64 {
	return q.accum
}

// Len returns the number of pending (not yet started) commands.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Drained reports whether no command is pending or in progress.
func (q *Queue) Drained() bool {
	return q.current == nil && len(q.pending) == 0
}

// Ticks returns the number of accepted Update calls.
func (q *Queue) Ticks() int64 {
	return q.clock.Current()
}

// queueNode embeds a whole queue as a single command.
type queueNode struct {
	q *Queue
}

// QueueCommand wraps q as a Command. Advancing it forwards the budget into
// q's own Update and it is done exactly when q drains. While q is not drained
// it keeps the carried budget itself, so the caller sees the budget as fully
// consumed; once q drains its leftover is handed back.
//
// A queue that ends up running itself this way returns ErrCodeReentrantUpdate.
func QueueCommand(q *Queue) Command {
	mustNonNil("QueueCommand", "queue", q != nil)
	return &queueNode{q: q}
}

func (n *queueNode) Advance(dt *float64) (bool, error) {
	local := *dt
	drained, err := n.q.update(&local)
	if err != nil {
		return false, err
	}
	if !drained {
		*dt = 0
		return false, nil
	}
	*dt = local
	return true, nil
}
