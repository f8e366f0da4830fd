package engine

// Rand is the random source used by ChooseRandom. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// chooseRandomNode delegates to one randomly chosen child per start.
type chooseRandomNode struct {
	rng      Rand
	choices  []Command
	selected Command
}

// ChooseRandom returns a Command that picks one of choices uniformly at random
// from rng when it starts and then delegates to it. A nil entry is a valid
// choice meaning "do nothing"; picking it, or having no choices at all,
// completes immediately.
func ChooseRandom(rng Rand, choices ...Command) Command {
	mustNonNil("ChooseRandom", "rng", rng != nil)
	return &chooseRandomNode{rng: rng, choices: choices}
}

func (n *chooseRandomNode) Advance(dt *float64) (bool, error) {
	if n.selected == nil {
		if len(n.choices) == 0 {
			return true, nil
		}
		n.selected = n.choices[n.rng.IntN(len(n.choices))]
		if n.selected == nil {
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

// deferNode builds its command lazily.
type deferNode struct {
	factory func() Command
	cmd     Command
}

// Defer returns a Command that calls factory the first time it is advanced
// and delegates to the produced command from then on. The factory runs again
// on every restart, so the command can depend on state that only exists once
// execution reaches it.
func Defer(factory func() Command) Command {
	mustNonNil("Defer", "factory", factory != nil)
	return &deferNode{factory: factory}
}

func (n *deferNode) Advance(dt *float64) (bool, error) {
	if n.cmd == nil {
		n.cmd = n.factory()
		if n.cmd == nil {
			return false, NewNilCommandError("Defer.factory", 0)
		}
	}

	done, err := n.cmd.Advance(dt)
	if err != nil || !done {
		return false, err
	}
	n.cmd = nil
	return true, nil
}
