package harness

import "github.com/roach88/cadence/internal/trace"

// Result is the outcome of a scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// RunID identifies this execution.
	RunID string `json:"run_id"`

	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Trace contains every recorded event in order.
	Trace []trace.Event `json:"trace"`

	// Digest is the content hash of Trace.
	Digest string `json:"digest,omitempty"`

	// Counters holds the final counter values.
	Counters map[string]int `json:"counters"`

	// Progress holds the last progress of every labelled duration.
	Progress map[string]float64 `json:"progress,omitempty"`

	// Ticks is the number of accepted driver updates.
	Ticks int64 `json:"ticks"`

	// Steps is the number of command advances charged to the quota.
	Steps int `json:"steps"`

	// MaxSteps is the quota the run was held to.
	MaxSteps int `json:"max_steps"`

	// Elapsed is the time fed by dt and until_drained steps.
	Elapsed float64 `json:"elapsed"`

	// Drained is the driver state after the last successful update.
	Drained bool `json:"drained"`

	// RunError is the error that stopped the run, if any.
	RunError string `json:"run_error,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []trace.Event{},
		Errors:   []string{},
		Counters: make(map[string]int),
		Progress: make(map[string]float64),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
