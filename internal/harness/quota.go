package harness

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts command advances in a run and enforces a maximum.
//
// A command tree that loops without ever waiting (repeat_forever over
// instant actions, or a budget of run_to_end against an endless repeat)
// would otherwise spin inside a single Update call forever.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
func (q *QuotaEnforcer) Check(scenario string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Scenario: scenario,
			Steps:    q.current,
			Limit:    q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a run exceeds its step quota. It
// aborts the Update in progress and fails the run.
type StepsExceededError struct {
	Scenario string
	Steps    int
	Limit    int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("scenario %s exceeded max steps quota: %d steps > %d limit",
		e.Scenario, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
