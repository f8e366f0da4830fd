// Package engine implements the cadence cooperative command engine.
//
// A host loop advances long-running, composable commands by feeding them a
// budget of elapsed time once per update tick. There are no goroutines and
// no native coroutines: every command is a small resumable state machine and
// all progress happens inline inside the caller's Update call.
//
// ARCHITECTURE:
//
// Commands:
// A Command receives a pointer to the remaining time budget (seconds) and
// reports whether it has finished. It may consume none, part or all of the
// budget. Whatever it does not consume is handed to the next step in the same
// tick, so no time is dropped inside a single Update.
//
// Combinators:
// Sequence, Parallel, Repeat, RepeatForever, Condition, While, Require,
// Duration, WaitForSeconds, WaitForFrames, ChooseRandom, Defer, Coroutine and
// QueueCommand build composite commands. Each variant is a concrete node type
// that owns its progress fields (elapsed time, child index, loop counter,
// generator cursor) and resets them when it reports done, so a finished node
// can be started again from scratch.
//
// Drivers:
// Queue runs top-level commands one at a time in FIFO order and carries the
// unconsumed budget from one command to the next. Scheduler advances an
// unordered set of independent commands with the same delta each tick.
//
// CRITICAL PATTERNS:
//
// No drift:
// Durations account in absolute elapsed time and hand back exactly
// elapsed-length as leftover. Repeating thousands of cycles stays within one
// tick of the analytic total.
//
// Re-entrancy:
// A Queue carries an explicit updating flag. Calling Update on a queue that is
// already inside Update (directly, through QueueCommand, or from an action) is
// rejected with ErrCodeReentrantUpdate.
//
// Failure propagation:
// Errors returned by user actions abort the current Update unchanged. The
// engine never catches, retries or logs them.
package engine
