package engine

// Generator is a finite, non-restartable pull sequence of steps.
//
// Next returns the next step and true, or false once the sequence is
// exhausted. A nil Command with ok=true is the wait-one-tick marker: the step
// occupies exactly one tick and consumes no time.
type Generator interface {
	Next() (cmd Command, ok bool)
}

// GeneratorFunc adapts a hand-written state machine to Generator.
type GeneratorFunc func() (Command, bool)

// Next calls f().
func (f GeneratorFunc) Next() (Command, bool) {
	return f()
}

// stepsGenerator yields a fixed list of steps.
type stepsGenerator struct {
	steps []Command
	next  int
}

// Steps returns a Generator over a fixed list. Nil entries are wait-one-tick
// markers.
func Steps(steps ...Command) Generator {
	return &stepsGenerator{steps: steps}
}

func (g *stepsGenerator) Next() (Command, bool) {
	if g.next >= len(g.steps) {
		return nil, false
	}
	cmd := g.steps[g.next]
	g.next++
	return cmd, true
}

// coroutineNode drives the commands produced by a generator.
type coroutineNode struct {
	factory func() Generator
	gen     Generator
	current Command
}

// Coroutine returns a Command that pulls steps from a generator built by
// factory. The next step is pulled only after the previous one completed, and
// the Coroutine is done when the generator is exhausted. Each restart builds a
// fresh generator. Yielding another Coroutine nests to the same contract.
func Coroutine(factory func() Generator) Command {
	mustNonNil("Coroutine", "factory", factory != nil)
	return &coroutineNode{factory: factory}
}

func (n *coroutineNode) Advance(dt *float64) (bool, error) {
	if n.gen == nil {
		n.gen = n.factory()
		if n.gen == nil {
			return false, &RuntimeError{
				Code:    ErrCodeNilCommand,
				Message: "generator factory returned nil",
				Op:      "Coroutine.factory",
			}
		}
	}

	for {
		if n.current == nil {
			next, ok := n.gen.Next()
			if !ok {
				n.gen = nil
				return true, nil
			}
			if next == nil {
				next = WaitForFrames(1)
			}
			n.current = next
		}

		done, err := n.current.Advance(dt)
		if err != nil || !done {
			return false, err
		}
		n.current = nil
	}
}
