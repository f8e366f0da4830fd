// Package trace records what a command tree did, tick by tick.
//
// A Recorder collects Events stamped with the driver tick at which they
// happened. Traces are serialized as canonical JSON lines so golden files are
// byte-stable across runs and platforms; progress values are formatted as
// fixed-precision strings because floats are not allowed in canonical JSON.
package trace

import (
	"fmt"
	"strconv"
)

// Kind categorizes trace events.
type Kind string

const (
	KindMark     Kind = "mark"
	KindIncr     Kind = "incr"
	KindSet      Kind = "set"
	KindProgress Kind = "progress"
	KindFail     Kind = "fail"
	KindPause    Kind = "pause"
	KindResume   Kind = "resume"
	KindEnqueue  Kind = "enqueue"
	KindUpdate   Kind = "update"
	KindError    Kind = "error"
)

// Event is one observable step of a run.
type Event struct {
	Tick  int64  `json:"tick"`
	Kind  Kind   `json:"kind"`
	Label string `json:"label,omitempty"`
	Value string `json:"value,omitempty"`
}

// String renders the event for text output, e.g. "3 progress fade=0.5000".
func (e Event) String() string {
	s := strconv.FormatInt(e.Tick, 10) + " " + string(e.Kind)
	if e.Label != "" {
		s += " " + e.Label
	}
	if e.Value != "" {
		s += "=" + e.Value
	}
	return s
}

// FormatProgress renders a progress value with fixed precision.
func FormatProgress(t float64) string {
	return fmt.Sprintf("%.4f", t)
}

// Recorder accumulates events. The zero value is not usable; call
// NewRecorder.
type Recorder struct {
	events []Event
	tick   func() int64
	sinks  []func(Event)
}

// NewRecorder creates a recorder stamping events with tick(). A nil tick
// stamps every event with 0.
func NewRecorder(tick func() int64) *Recorder {
	if tick == nil {
		tick = func() int64 { return 0 }
	}
	return &Recorder{tick: tick}
}

// Subscribe registers fn to be called with every event as it is recorded.
func (r *Recorder) Subscribe(fn func(Event)) {
	if fn != nil {
		r.sinks = append(r.sinks, fn)
	}
}

// Record appends an event at the current tick.
func (r *Recorder) Record(kind Kind, label, value string) {
	e := Event{
		Tick:  r.tick(),
		Kind:  kind,
		Label: label,
		Value: value,
	}
	r.events = append(r.events, e)
	for _, fn := range r.sinks {
		fn(e)
	}
}

// Events returns a copy of the recorded events in order.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	return len(r.events)
}

// Count returns the number of events with the given kind and label. An empty
// label matches every label.
func Count(events []Event, kind Kind, label string) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind && (label == "" || e.Label == label) {
			n++
		}
	}
	return n
}

// Labels returns the labels of all events of kind, in order.
func Labels(events []Event, kind Kind) []string {
	var out []string
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e.Label)
		}
	}
	return out
}

// Last returns the last event with the given kind and label. An empty label
// matches every label.
func Last(events []Event, kind Kind, label string) (Event, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind && (label == "" || events[i].Label == label) {
			return events[i], true
		}
	}
	return Event{}, false
}
