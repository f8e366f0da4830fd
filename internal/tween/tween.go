// Package tween builds Duration commands that animate a bound value.
//
// Every tween captures its starting point when it starts, not when it is
// built, so the same command can be enqueued after other commands that move
// the value first. Integer targets are driven through a float64 shadow and
// rounded half away from zero on every write.
package tween

import "github.com/roach88/cadence/internal/engine"

// Interpolator returns the value between start and end at progress t.
// t = 0 must give start and t = 1 must give end; values outside [0,1] are
// allowed for overshooting eases.
type Interpolator[T any] func(start, end T, t float64) T

// ChangeTo animates ref from its value at start time to end over length
// seconds.
func ChangeTo[T Number](ref *Ref[T], end T, length float64, ease engine.Ease) engine.Command {
	mustRef("ChangeTo", ref)
	s := newShadow(ref)
	inner := changeTo(s.ref(), float64(end), length, ease)
	return engine.Sequence(engine.Do(s.sync), inner)
}

func changeTo(ref *Ref[float64], end, length float64, ease engine.Ease) engine.Command {
	start := 0.0
	return engine.Sequence(
		engine.Do(func() { start = ref.Value() }),
		engine.Duration(func(t float64) {
			ref.Set((end-start)*t + start)
		}, length, ease),
	)
}

// ChangeFrom jumps ref to start and animates it back to the value it had when
// the command started.
func ChangeFrom[T Number](ref *Ref[T], start T, length float64, ease engine.Ease) engine.Command {
	mustRef("ChangeFrom", ref)
	s := newShadow(ref)
	shadowRef := s.ref()
	from := float64(start)
	end := 0.0
	return engine.Sequence(
		engine.Do(func() {
			s.sync()
			end = s.val
		}),
		engine.Duration(func(t float64) {
			shadowRef.Set((end-from)*t + from)
		}, length, ease),
	)
}

// ChangeBy adds offset to ref over length seconds. Only the increments are
// written, so other writers touching the value at the same time are kept.
func ChangeBy[T Number](ref *Ref[T], offset T, length float64, ease engine.Ease) engine.Command {
	mustRef("ChangeBy", ref)
	s := newShadow(ref)
	shadowRef := s.ref()
	delta := float64(offset)
	lastT := 0.0
	return engine.Sequence(
		engine.Do(func() {
			s.sync()
			lastT = 0
		}),
		engine.Duration(func(t float64) {
			shadowRef.Set(shadowRef.Value() + delta*(t-lastT))
			lastT = t
		}, length, ease),
	)
}

// ScaleBy multiplies ref by factor over length seconds.
func ScaleBy[T Number](ref *Ref[T], factor float64, length float64, ease engine.Ease) engine.Command {
	mustRef("ScaleBy", ref)
	s := newShadow(ref)
	shadowRef := s.ref()
	lastFactor := 1.0
	return engine.Sequence(
		engine.Do(func() {
			s.sync()
			lastFactor = 1
		}),
		engine.Duration(func(t float64) {
			next := t*(factor-1) + 1
			shadowRef.Set(shadowRef.Value() * next / lastFactor)
			lastFactor = next
		}, length, ease),
	)
}

// ChangeToWith animates any type with a custom interpolator.
func ChangeToWith[T any](ref *Ref[T], end T, interp Interpolator[T], length float64, ease engine.Ease) engine.Command {
	mustRef("ChangeToWith", ref)
	if interp == nil {
		panic(engine.NewInvalidArgumentError("ChangeToWith", "interp", "interpolator must be non-nil"))
	}
	var start T
	return engine.Sequence(
		engine.Do(func() { start = ref.Value() }),
		engine.Duration(func(t float64) {
			ref.Set(interp(start, end, t))
		}, length, ease),
	)
}

// ChangeFromWith is ChangeFrom for any type with a custom interpolator.
func ChangeFromWith[T any](ref *Ref[T], start T, interp Interpolator[T], length float64, ease engine.Ease) engine.Command {
	mustRef("ChangeFromWith", ref)
	if interp == nil {
		panic(engine.NewInvalidArgumentError("ChangeFromWith", "interp", "interpolator must be non-nil"))
	}
	var end T
	return engine.Sequence(
		engine.Do(func() { end = ref.Value() }),
		engine.Duration(func(t float64) {
			ref.Set(interp(start, end, t))
		}, length, ease),
	)
}
