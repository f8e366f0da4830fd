package engine

// conditionNode picks a branch once per start.
type conditionNode struct {
	predicate func() bool
	ifTrue    Command
	ifFalse   Command
	selected  Command
}

// Condition returns a Command that evaluates predicate when it starts and then
// behaves as ifTrue or ifFalse until that branch completes. The predicate is
// not consulted again until the next start. ifFalse may be nil, in which case
// a false predicate completes immediately.
func Condition(predicate func() bool, ifTrue, ifFalse Command) Command {
	mustNonNil("Condition", "predicate", predicate != nil)
	mustNonNil("Condition", "ifTrue", ifTrue != nil)
	return &conditionNode{predicate: predicate, ifTrue: ifTrue, ifFalse: ifFalse}
}

func (n *conditionNode) Advance(dt *float64) (bool, error) {
	if n.selected == nil {
		if n.predicate() {
			n.selected = n.ifTrue
		} else if n.ifFalse != nil {
			n.selected = n.ifFalse
		} else {
			return true, nil
		}
	}

	done, err := n.selected.Advance(dt)
	if err != nil || !done {
		return false, err
	}
	n.selected = nil
	return true, nil
}

// whileNode reruns its body while a predicate holds.
type whileNode struct {
	predicate func() bool
	body      Command
	running   bool
}

// While returns a Command that checks predicate every time the body is about
// to (re)start and runs the body while it is true. It completes, without
// running the body, the first time the predicate is false.
func While(predicate func() bool, children ...Command) Command {
	mustNonNil("While", "predicate", predicate != nil)
	return &whileNode{predicate: predicate, body: body("While", children)}
}

func (n *whileNode) Advance(dt *float64) (bool, error) {
	for {
		if !n.running {
			if !n.predicate() {
				return true, nil
			}
			n.running = true
		}

		done, err := n.body.Advance(dt)
		if err != nil || !done {
			return false, err
		}
		n.running = false
	}
}

type requirePhase int

const (
	requireRunning requirePhase = iota
	requireOnFail
	requireWaiting
)

// requireNode guards a body with a predicate checked once per call.
type requireNode struct {
	predicate    func() bool
	factory      func() Command
	onFail       Command
	whileFailing Command
	body         Command
	phase        requirePhase
}

// RequireBranches holds the failure branches of RequireWith.
type RequireBranches struct {
	// OnFail runs once, as a sequence, when the predicate is found false.
	OnFail []Command
	// WhileFailing runs, as a sequence restarted on the following call each
	// time it completes, for as long as the predicate stays false.
	WhileFailing []Command
}

// Require returns a Command that runs a body built by factory for as long as
// predicate holds. The predicate is checked once at the start of every call,
// so a flip in the middle of a tick is only observed on the next one.
//
// When the predicate is false the active body is abandoned (never resumed)
// and the onFail commands run as a sequence; Require completes when they do,
// or immediately when none were given. A body that finishes on its own
// completes the Require. Each restart builds a fresh body.
func Require(predicate func() bool, factory func() Command, onFail ...Command) Command {
	return RequireWith(predicate, factory, RequireBranches{OnFail: onFail})
}

// RequireWith is Require with both failure branches.
//
// Without WhileFailing it behaves exactly like Require. With it, Require does
// not complete when the predicate fails: after OnFail finishes, WhileFailing
// is advanced once per call while the predicate is false, and the first call
// that finds the predicate true again builds a fresh body and runs it. A
// WhileFailing sequence interrupted by the recovery picks up where it
// stopped the next time the predicate fails.
func RequireWith(predicate func() bool, factory func() Command, branches RequireBranches) Command {
	mustNonNil("Require", "predicate", predicate != nil)
	mustNonNil("Require", "factory", factory != nil)
	mustCommands("Require", branches.OnFail)
	mustCommands("Require", branches.WhileFailing)

	n := &requireNode{predicate: predicate, factory: factory}
	if len(branches.OnFail) > 0 {
		n.onFail = body("Require", branches.OnFail)
	}
	if len(branches.WhileFailing) > 0 {
		n.whileFailing = body("Require", branches.WhileFailing)
	}
	return n
}

func (n *requireNode) Advance(dt *float64) (bool, error) {
	switch n.phase {
	case requireRunning:
		if !n.predicate() {
			n.body = nil
			n.phase = requireOnFail
		}
	case requireWaiting:
		if n.predicate() {
			n.phase = requireRunning
		}
	}

	if n.phase == requireOnFail {
		if n.onFail != nil {
			done, err := n.onFail.Advance(dt)
			if err != nil || !done {
				return false, err
			}
		}
		if n.whileFailing == nil {
			n.phase = requireRunning
			return true, nil
		}
		n.phase = requireWaiting
	}

	if n.phase == requireWaiting {
		// Completion restarts the branch on the next call, not this one.
		if _, err := n.whileFailing.Advance(dt); err != nil {
			return false, err
		}
		return false, nil
	}

	if n.body == nil {
		n.body = n.factory()
		if n.body == nil {
			return false, NewNilCommandError("Require.factory", 0)
		}
	}

	done, err := n.body.Advance(dt)
	if err != nil || !done {
		return false, err
	}
	n.body = nil
	return true, nil
}
