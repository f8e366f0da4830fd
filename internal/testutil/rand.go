package testutil

// ScriptedRand replays a fixed list of picks, cycling when it runs out.
// Each pick is reduced modulo n so any script is valid for any choice count.
//
// Implements engine.Rand.
type ScriptedRand struct {
	picks []int
	calls int
}

// NewScriptedRand creates a random source that returns picks in order.
// With no picks every call returns 0.
func NewScriptedRand(picks ...int) *ScriptedRand {
	return &ScriptedRand{picks: picks}
}

// IntN returns the next scripted pick modulo n.
func (r *ScriptedRand) IntN(n int) int {
	defer func() { r.calls++ }()
	if len(r.picks) == 0 || n <= 0 {
		return 0
	}
	v := r.picks[r.calls%len(r.picks)] % n
	if v < 0 {
		v += n
	}
	return v
}

// Calls returns how many picks were made.
func (r *ScriptedRand) Calls() int {
	return r.calls
}
