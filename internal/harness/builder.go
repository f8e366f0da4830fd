package harness

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/trace"
)

// ErrScenarioFailure is wrapped by the error of every fail node.
var ErrScenarioFailure = errors.New("scenario failure")

// build converts nodes into commands.
func (s *Session) build(nodes []Node) ([]engine.Command, error) {
	cmds := make([]engine.Command, 0, len(nodes))
	for _, n := range nodes {
		cmd, err := s.buildNode(n)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// buildNode converts one node. Every produced command is wrapped in the step
// guard so runaway trees stop at max_steps.
func (s *Session) buildNode(n Node) (engine.Command, error) {
	cmd, err := s.buildKind(n)
	if err != nil {
		return nil, err
	}
	return s.guard(cmd), nil
}

func (s *Session) buildKind(n Node) (engine.Command, error) {
	kind, err := nodeKind(n)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "mark":
		label := n.Mark
		return engine.Do(func() { s.rec.Record(trace.KindMark, label, "") }), nil

	case "incr":
		name := n.Incr
		return engine.Do(func() {
			s.counters[name]++
			s.rec.Record(trace.KindIncr, name, strconv.Itoa(s.counters[name]))
		}), nil

	case "set":
		spec := *n.Set
		return engine.Do(func() { s.setCounter(spec) }), nil

	case "fail":
		msg := n.Fail
		return engine.Try(func() error {
			s.rec.Record(trace.KindFail, msg, "")
			return fmt.Errorf("%w: %s", ErrScenarioFailure, msg)
		}), nil

	case "pause":
		return engine.Do(func() {
			s.setPaused(true)
			s.rec.Record(trace.KindPause, "command", "")
		}), nil

	case "resume":
		return engine.Do(func() {
			s.setPaused(false)
			s.rec.Record(trace.KindResume, "command", "")
		}), nil

	case "update_self":
		return engine.Try(func() error {
			_, err := s.update(0)
			return err
		}), nil

	case "enqueue":
		nodes := n.Enqueue
		return engine.Try(func() error {
			cmds, err := s.build(nodes)
			if err != nil {
				return err
			}
			s.rec.Record(trace.KindEnqueue, "", strconv.Itoa(len(cmds)))
			return s.add(cmds...)
		}), nil

	case "noop":
		return engine.Do(func() {}), nil

	case "tick":
		return engine.WaitForFrames(1), nil

	case "wait":
		return engine.WaitForSeconds(*n.Wait), nil

	case "wait_frames":
		if *n.WaitFrames < 0 {
			return nil, fmt.Errorf("wait_frames must be >= 0")
		}
		return engine.WaitForFrames(*n.WaitFrames), nil

	case "duration":
		label := n.Duration.Label
		return engine.Duration(func(t float64) {
			s.progress[label] = t
			s.rec.Record(trace.KindProgress, label, trace.FormatProgress(t))
		}, n.Duration.Length, nil), nil

	case "sequence":
		cmds, err := s.build(n.Sequence)
		if err != nil {
			return nil, err
		}
		return engine.Sequence(cmds...), nil

	case "parallel":
		cmds, err := s.build(n.Parallel)
		if err != nil {
			return nil, err
		}
		return engine.Parallel(cmds...), nil

	case "repeat":
		if n.Repeat.Count < 1 {
			return nil, fmt.Errorf("repeat.count must be >= 1")
		}
		cmds, err := s.build(n.Repeat.Body)
		if err != nil {
			return nil, err
		}
		return engine.Repeat(n.Repeat.Count, cmds...), nil

	case "repeat_forever":
		if len(n.RepeatForever) == 0 {
			return nil, fmt.Errorf("repeat_forever needs at least one command")
		}
		cmds, err := s.build(n.RepeatForever)
		if err != nil {
			return nil, err
		}
		return engine.RepeatForever(cmds...), nil

	case "condition":
		then, err := s.build(n.Condition.Then)
		if err != nil {
			return nil, err
		}
		var ifFalse engine.Command
		if len(n.Condition.Else) > 0 {
			elseCmds, err := s.build(n.Condition.Else)
			if err != nil {
				return nil, err
			}
			ifFalse = engine.Sequence(elseCmds...)
		}
		return engine.Condition(s.predicate(n.Condition.If), engine.Sequence(then...), ifFalse), nil

	case "while":
		cmds, err := s.build(n.While.Body)
		if err != nil {
			return nil, err
		}
		return engine.While(s.predicate(n.While.While), cmds...), nil

	case "require":
		spec := n.Require
		onFail, err := s.build(spec.OnFail)
		if err != nil {
			return nil, err
		}
		whileFailing, err := s.build(spec.WhileFailing)
		if err != nil {
			return nil, err
		}
		// Check the body once now so the factory cannot fail later.
		if _, err := s.build(spec.Body); err != nil {
			return nil, err
		}
		return engine.RequireWith(s.predicate(spec.Require), func() engine.Command {
			return s.mustSequence(spec.Body)
		}, engine.RequireBranches{OnFail: onFail, WhileFailing: whileFailing}), nil

	case "choose_random":
		choices := make([]engine.Command, 0, len(n.ChooseRandom))
		for _, c := range n.ChooseRandom {
			if c.Noop {
				choices = append(choices, nil)
				continue
			}
			cmd, err := s.buildNode(c)
			if err != nil {
				return nil, err
			}
			choices = append(choices, cmd)
		}
		return engine.ChooseRandom(s.rng, choices...), nil

	case "defer":
		nodes := n.Defer
		if _, err := s.build(nodes); err != nil {
			return nil, err
		}
		return engine.Defer(func() engine.Command { return s.mustSequence(nodes) }), nil

	case "coroutine":
		nodes := n.Coroutine
		if _, err := s.build(nodes); err != nil {
			return nil, err
		}
		return engine.Coroutine(func() engine.Generator {
			steps := make([]engine.Command, len(nodes))
			for i, node := range nodes {
				if node.Tick {
					continue
				}
				steps[i] = s.mustNode(node)
			}
			return engine.Steps(steps...)
		}), nil

	case "queue":
		nodes := n.Queue
		if _, err := s.build(nodes); err != nil {
			return nil, err
		}
		// Every start runs a fresh sub-queue.
		return engine.Defer(func() engine.Command {
			sub := engine.NewQueue(
				engine.WithQueueName(s.scenario.Name+"/sub"),
				engine.WithQueueLogger(s.logger),
			)
			// Cannot fail: the commands are non-nil.
			_ = sub.Enqueue(s.mustCommands(nodes)...)
			return engine.QueueCommand(sub)
		}), nil
	}

	return nil, fmt.Errorf("unsupported node %q", kind)
}

// mustNode builds a node already known to be valid.
func (s *Session) mustNode(n Node) engine.Command {
	cmd, err := s.buildNode(n)
	if err != nil {
		panic(fmt.Sprintf("harness: rebuilding validated node: %v", err))
	}
	return cmd
}

func (s *Session) mustCommands(nodes []Node) []engine.Command {
	cmds, err := s.build(nodes)
	if err != nil {
		panic(fmt.Sprintf("harness: rebuilding validated nodes: %v", err))
	}
	return cmds
}

func (s *Session) mustSequence(nodes []Node) engine.Command {
	return engine.Sequence(s.mustCommands(nodes)...)
}

// guard charges one step per advance against the run quota.
func (s *Session) guard(cmd engine.Command) engine.Command {
	return engine.CommandFunc(func(dt *float64) (bool, error) {
		if err := s.quota.Check(s.scenario.Name); err != nil {
			return false, err
		}
		return cmd.Advance(dt)
	})
}

// predicate compiles p against the live counters.
func (s *Session) predicate(p Predicate) func() bool {
	return func() bool {
		v := s.counters[p.Counter]
		if p.Mod > 0 {
			v %= p.Mod
		}
		switch {
		case p.Eq != nil:
			return v == *p.Eq
		case p.Ne != nil:
			return v != *p.Ne
		case p.Lt != nil:
			return v < *p.Lt
		case p.Le != nil:
			return v <= *p.Le
		case p.Gt != nil:
			return v > *p.Gt
		case p.Ge != nil:
			return v >= *p.Ge
		}
		return false
	}
}

func (s *Session) setCounter(spec SetSpec) {
	s.counters[spec.Counter] = spec.Value
	s.rec.Record(trace.KindSet, spec.Counter, strconv.Itoa(spec.Value))
}
