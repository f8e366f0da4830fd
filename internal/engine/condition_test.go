package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRand returns a fixed sequence of indexes.
type scriptedRand struct {
	picks []int
	next  int
}

func (r *scriptedRand) IntN(n int) int {
	v := r.picks[r.next%len(r.picks)] % n
	r.next++
	return v
}

func TestCondition_PredicateEvaluatedOncePerStart(t *testing.T) {
	evaluated := 0
	flag := true
	var branch string

	c := Condition(
		func() bool {
			evaluated++
			return flag
		},
		Sequence(WaitForFrames(1), Do(func() { branch = "true" })),
		Do(func() { branch = "false" }),
	)

	done, _ := advance(t, c, 0)
	assert.False(t, done)

	flag = false
	done, _ = advance(t, c, 0)
	assert.True(t, done)
	assert.Equal(t, "true", branch, "branch chosen at start is kept")
	assert.Equal(t, 1, evaluated)

	done, _ = advance(t, c, 0)
	assert.True(t, done)
	assert.Equal(t, "false", branch)
	assert.Equal(t, 2, evaluated)
}

func TestCondition_NilElseCompletes(t *testing.T) {
	ran := false
	c := Condition(func() bool { return false }, Do(func() { ran = true }), nil)

	done, left := advance(t, c, 0.5)
	assert.True(t, done)
	assert.Equal(t, 0.5, left)
	assert.False(t, ran)
}

func TestWhile_FalseAtStartRunsNothing(t *testing.T) {
	ran := false
	w := While(func() bool { return false }, Do(func() { ran = true }))

	done, _ := advance(t, w, 0)
	assert.True(t, done)
	assert.False(t, ran)
}

func TestWhile_ChecksBeforeEachIteration(t *testing.T) {
	i := 0
	w := While(func() bool { return i < 3 }, Do(func() { i++ }))

	done, _ := advance(t, w, 0)
	assert.True(t, done)
	assert.Equal(t, 3, i)
}

func TestRequire_OnFailRunsAsSequence(t *testing.T) {
	ok := true
	var events []string

	r := Require(func() bool { return ok },
		func() Command {
			return RepeatForever(Do(func() { events = append(events, "body") }), WaitForFrames(1))
		},
		Do(func() { events = append(events, "fail-1") }),
		WaitForFrames(1),
		Do(func() { events = append(events, "fail-2") }),
	)

	done, _ := advance(t, r, 0)
	assert.False(t, done)

	ok = false
	done, _ = advance(t, r, 0)
	assert.False(t, done, "onFail is still running")

	// onFail keeps running even if the predicate recovers.
	ok = true
	done, _ = advance(t, r, 0)
	assert.True(t, done)

	assert.Equal(t, []string{"body", "fail-1", "fail-2"}, events)
}

func TestRequire_BodyCompletesNormally(t *testing.T) {
	builds := 0
	r := Require(func() bool { return true }, func() Command {
		builds++
		return WaitForFrames(1)
	})

	done, _ := advance(t, r, 0)
	assert.False(t, done)
	done, _ = advance(t, r, 0)
	assert.True(t, done)

	advance(t, r, 0)
	assert.Equal(t, 2, builds, "each restart builds a fresh body")
}

func TestRequireWith_WhileFailingRearmsBody(t *testing.T) {
	ok := true
	builds, beats, alarms, waits := 0, 0, 0, 0

	r := RequireWith(func() bool { return ok },
		func() Command {
			builds++
			return RepeatForever(Do(func() { beats++ }), WaitForFrames(1))
		},
		RequireBranches{
			OnFail:       []Command{Do(func() { alarms++ })},
			WhileFailing: []Command{Do(func() { waits++ })},
		},
	)

	done, _ := advance(t, r, 0)
	assert.False(t, done)
	assert.Equal(t, 1, beats)

	ok = false
	done, _ = advance(t, r, 0)
	assert.False(t, done, "whileFailing keeps the guard alive")
	done, _ = advance(t, r, 0)
	assert.False(t, done)
	assert.Equal(t, 1, alarms, "onFail runs once per failure")
	assert.Equal(t, 2, waits, "whileFailing runs every call while failing")

	ok = true
	done, _ = advance(t, r, 0)
	assert.False(t, done)
	assert.Equal(t, 2, builds, "recovery builds a fresh body")
	assert.Equal(t, 2, beats)
	assert.Equal(t, 2, waits)
}

func TestRequireWith_WithoutWhileFailingMatchesRequire(t *testing.T) {
	ok := false
	r := RequireWith(func() bool { return ok }, func() Command { return WaitForFrames(1) }, RequireBranches{})

	done, left := advance(t, r, 0.3)
	assert.True(t, done)
	assert.Equal(t, 0.3, left)
}

func TestRequire_FactoryReturningNil(t *testing.T) {
	r := Require(func() bool { return true }, func() Command { return nil })

	dt := 0.0
	_, err := r.Advance(&dt)
	require.Error(t, err)
	assert.True(t, IsContractError(err))
}

func TestChooseRandom_ScriptedPicks(t *testing.T) {
	var picked []string
	rng := &scriptedRand{picks: []int{2, 0, 1}}
	c := ChooseRandom(rng,
		Do(func() { picked = append(picked, "a") }),
		Do(func() { picked = append(picked, "b") }),
		nil,
	)

	for i := 0; i < 3; i++ {
		done, _ := advance(t, c, 0)
		assert.True(t, done)
	}
	assert.Equal(t, []string{"a", "b"}, picked, "index 2 is the nil choice")
}

func TestChooseRandom_DelegatesUntilDone(t *testing.T) {
	rng := &scriptedRand{picks: []int{0}}
	c := ChooseRandom(rng, WaitForFrames(1))

	done, _ := advance(t, c, 0)
	assert.False(t, done)
	done, _ = advance(t, c, 0)
	assert.True(t, done)
	assert.Equal(t, 1, rng.next, "one pick per start")
}

func TestChooseRandom_NoChoices(t *testing.T) {
	done, _ := advance(t, ChooseRandom(&scriptedRand{picks: []int{0}}), 0)
	assert.True(t, done)
}

func TestDefer_BuildsLazily(t *testing.T) {
	value := 1
	var seen []int

	d := Defer(func() Command {
		captured := value
		return Do(func() { seen = append(seen, captured) })
	})

	value = 2
	advance(t, d, 0)
	value = 3
	advance(t, d, 0)

	assert.Equal(t, []int{2, 3}, seen)
}

func TestDefer_FactoryReturningNil(t *testing.T) {
	d := Defer(func() Command { return nil })

	dt := 0.0
	_, err := d.Advance(&dt)
	require.Error(t, err)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeNilCommand, re.Code)
	assert.Equal(t, "Defer.factory", re.Op)
}
