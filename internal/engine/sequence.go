package engine

// sequenceNode runs its children strictly in order.
type sequenceNode struct {
	children []Command
	index    int
}

// Sequence returns a Command that runs children one after another. The
// active child receives the whole remaining budget, and a child's leftover is
// offered to the next child within the same tick. An empty Sequence is done
// on its first call.
func Sequence(children ...Command) Command {
	mustCommands("Sequence", children)
	return &sequenceNode{children: children}
}

func (n *sequenceNode) Advance(dt *float64) (bool, error) {
	for n.index < len(n.children) {
		done, err := n.children[n.index].Advance(dt)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
		n.index++
	}
	n.index = 0
	return true, nil
}

// parallelNode runs every child against its own copy of the budget.
type parallelNode struct {
	children []Command
	finished []bool
}

// Parallel returns a Command that advances every unfinished child with an
// independent copy of the incoming budget. It is done once all children are
// done; finished children are skipped on later calls. The leftover reported
// back is the smallest leftover among the children advanced in this call.
func Parallel(children ...Command) Command {
	mustCommands("Parallel", children)
	return &parallelNode{
		children: children,
		finished: make([]bool, len(children)),
	}
}

func (n *parallelNode) Advance(dt *float64) (bool, error) {
	leftover := *dt
	allDone := true

	for i, child := range n.children {
		if n.finished[i] {
			continue
		}
		local := *dt
		done, err := child.Advance(&local)
		if err != nil {
			return false, err
		}
		if done {
			n.finished[i] = true
		} else {
			allDone = false
		}
		if local < leftover {
			leftover = local
		}
	}

	*dt = leftover
	if !allDone {
		return false, nil
	}
	clear(n.finished)
	return true, nil
}

// repeatNode restarts its body back to back.
type repeatNode struct {
	body  Command
	count int // < 0 repeats forever
	done  int
}

// Repeat returns a Command that behaves like Sequence(children...) executed
// count times back to back. A finished cycle restarts immediately with the
// leftover budget of the same tick. count must be >= 1.
func Repeat(count int, children ...Command) Command {
	if count < 1 {
		panic(NewInvalidArgumentError("Repeat", "count", "repeat count must be >= 1"))
	}
	return &repeatNode{body: body("Repeat", children), count: count}
}

// RepeatForever is Repeat without an end. It only stops when its driver stops
// advancing it or a child returns an error. A body that consumes no time and
// never waits loops forever inside one Update.
func RepeatForever(children ...Command) Command {
	if len(children) == 0 {
		panic(NewInvalidArgumentError("RepeatForever", "children", "at least one child is required"))
	}
	return &repeatNode{body: body("RepeatForever", children), count: -1}
}

func (n *repeatNode) Advance(dt *float64) (bool, error) {
	for {
		done, err := n.body.Advance(dt)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
		if n.count < 0 {
			continue
		}
		n.done++
		if n.done >= n.count {
			n.done = 0
			return true, nil
		}
	}
}

// body collapses a child list into a single command.
func body(op string, children []Command) Command {
	mustCommands(op, children)
	if len(children) == 1 {
		return children[0]
	}
	return &sequenceNode{children: children}
}
