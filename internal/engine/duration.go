package engine

import "math"

// durationNode spreads an action over a fixed length of time.
type durationNode struct {
	fn      func(t float64) error
	length  float64
	ease    Ease
	elapsed float64
}

// Duration returns a Command that calls fn with normalized progress every
// time it is advanced, until length seconds have been consumed.
//
// Progress is elapsed/length remapped by ease (nil means Linear). The final
// call always receives ease(1). Time beyond what the duration needed stays in
// the budget. A length <= 0 calls fn(ease(1)) once, consumes nothing and is
// done immediately.
func Duration(fn func(t float64), length float64, ease Ease) Command {
	mustNonNil("Duration", "fn", fn != nil)
	return DurationE(func(t float64) error {
		fn(t)
		return nil
	}, length, ease)
}

// DurationE is Duration for actions that can fail.
func DurationE(fn func(t float64) error, length float64, ease Ease) Command {
	mustNonNil("DurationE", "fn", fn != nil)
	if math.IsNaN(length) {
		panic(NewInvalidArgumentError("Duration", "length", "length must be a number"))
	}
	if ease == nil {
		ease = Linear
	}
	return &durationNode{fn: fn, length: length, ease: ease}
}

// WaitForSeconds returns a Command that only consumes seconds of time.
func WaitForSeconds(seconds float64) Command {
	return DurationE(func(float64) error { return nil }, seconds, nil)
}

func (n *durationNode) Advance(dt *float64) (bool, error) {
	if n.length <= 0 {
		return n.finish()
	}

	n.elapsed += *dt
	if n.elapsed >= n.length {
		// Clamp so a failed final call cannot return the overshoot twice.
		*dt = n.elapsed - n.length
		n.elapsed = n.length
		return n.finish()
	}

	*dt = 0
	if err := n.fn(n.ease(n.elapsed / n.length)); err != nil {
		return false, err
	}
	return false, nil
}

func (n *durationNode) finish() (bool, error) {
	if err := n.fn(n.ease(1)); err != nil {
		return false, err
	}
	n.elapsed = 0
	return true, nil
}

// waitFramesNode counts Advance calls instead of time.
type waitFramesNode struct {
	frames int
	calls  int
}

// WaitForFrames returns a Command that reports not-done on its first frames
// calls and done on the next one, whatever budget it is given. It never
// consumes time. WaitForFrames(0) is done on the first call.
func WaitForFrames(frames int) Command {
	if frames < 0 {
		panic(NewInvalidArgumentError("WaitForFrames", "frames", "frames must be >= 0"))
	}
	return &waitFramesNode{frames: frames}
}

func (n *waitFramesNode) Advance(dt *float64) (bool, error) {
	if n.calls >= n.frames {
		n.calls = 0
		return true, nil
	}
	n.calls++
	return false, nil
}
