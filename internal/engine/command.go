package engine

// Command is a resumable unit of work advanced by a time budget.
//
// Advance receives the remaining budget of the current tick in seconds. The
// command may lower *dt by the time it consumed, never below zero. It returns
// done=true once it has permanently finished; with done=false the unconsumed
// part of *dt must be left intact for the caller.
//
// A non-nil error aborts the driving Update. Progress state is left exactly
// where the failing call put it.
//
// Every Command built by this package resets its own progress when it reports
// done, so it can be started again from scratch.
type Command interface {
	Advance(dt *float64) (done bool, err error)
}

// CommandFunc adapts a plain function to the Command interface.
// Hosts use it for producers that keep their own state.
type CommandFunc func(dt *float64) (bool, error)

// Advance calls f(dt).
func (f CommandFunc) Advance(dt *float64) (bool, error) {
	return f(dt)
}

// Ease remaps normalized progress in [0,1] before it reaches an action.
// It must be pure; results outside [0,1] are allowed (overshoot curves).
type Ease func(t float64) float64

// Linear is the identity Ease.
func Linear(t float64) float64 {
	return t
}

// doNode runs an action once and consumes no time.
type doNode struct {
	fn func() error
}

// Do returns a Command that runs fn once, consumes no time and is done on the
// first call.
func Do(fn func()) Command {
	mustNonNil("Do", "fn", fn != nil)
	return &doNode{fn: func() error {
		fn()
		return nil
	}}
}

// Try is like Do for actions that can fail. A returned error aborts the
// driving Update.
func Try(fn func() error) Command {
	mustNonNil("Try", "fn", fn != nil)
	return &doNode{fn: fn}
}

func (n *doNode) Advance(dt *float64) (bool, error) {
	if err := n.fn(); err != nil {
		return false, err
	}
	return true, nil
}

// ForEachSequence converts every item with factory and runs the results one
// after another.
func ForEachSequence[T any](items []T, factory func(T) Command) Command {
	mustNonNil("ForEachSequence", "factory", factory != nil)
	return Sequence(mapCommands(items, factory)...)
}

// ForEachParallel converts every item with factory and runs the results
// concurrently.
func ForEachParallel[T any](items []T, factory func(T) Command) Command {
	mustNonNil("ForEachParallel", "factory", factory != nil)
	return Parallel(mapCommands(items, factory)...)
}

func mapCommands[T any](items []T, factory func(T) Command) []Command {
	cmds := make([]Command, 0, len(items))
	for _, item := range items {
		cmds = append(cmds, factory(item))
	}
	return cmds
}
