package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a contract or re-entrancy violation detected by the
// engine.
//
// Runtime errors include:
//   - Re-entrant update: Update called on a driver already inside Update
//   - Negative delta: Update called with deltaTime < 0 or NaN
//   - Nil command: a nil Command passed where one is required
//   - Invalid argument: a numeric argument outside its valid range
//
// Errors returned by user actions are never wrapped in a RuntimeError; they
// propagate out of Update unmodified.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Op names the operation that detected the violation (e.g. "Queue.Update").
	Op string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeReentrantUpdate indicates Update was invoked while already updating.
	ErrCodeReentrantUpdate RuntimeErrorCode = "REENTRANT_UPDATE"

	// ErrCodeNegativeDelta indicates a negative or NaN time budget.
	ErrCodeNegativeDelta RuntimeErrorCode = "NEGATIVE_DELTA"

	// ErrCodeNilCommand indicates a nil Command where one is required.
	ErrCodeNilCommand RuntimeErrorCode = "NIL_COMMAND"

	// ErrCodeInvalidArgument indicates an argument outside its valid range.
	ErrCodeInvalidArgument RuntimeErrorCode = "INVALID_ARGUMENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsReentrantError returns true if the error is a re-entrant update error.
// Uses errors.As to handle wrapped errors.
func IsReentrantError(err error) bool {
	return hasCode(err, ErrCodeReentrantUpdate)
}

// IsContractError returns true if the error reports a caller contract
// violation (negative delta, nil command or invalid argument).
func IsContractError(err error) bool {
	return hasCode(err, ErrCodeNegativeDelta) ||
		hasCode(err, ErrCodeNilCommand) ||
		hasCode(err, ErrCodeInvalidArgument)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewReentrantError creates a RuntimeError for a recursive Update call.
func NewReentrantError(op string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeReentrantUpdate,
		Message: "update can't be called recursively",
		Op:      op,
	}
}

// NewNegativeDeltaError creates a RuntimeError for an invalid time budget.
func NewNegativeDeltaError(op string, dt float64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNegativeDelta,
		Message: "deltaTime is expected to be non-negative",
		Op:      op,
		Details: map[string]string{
			"delta_time": fmt.Sprintf("%v", dt),
		},
	}
}

// NewNilCommandError creates a RuntimeError for a nil Command argument.
func NewNilCommandError(op string, index int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNilCommand,
		Message: "command must be non-nil",
		Op:      op,
		Details: map[string]string{
			"index": fmt.Sprintf("%d", index),
		},
	}
}

// NewInvalidArgumentError creates a RuntimeError for an out-of-range argument.
func NewInvalidArgumentError(op, arg, message string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidArgument,
		Message: message,
		Op:      op,
		Details: map[string]string{
			"argument": arg,
		},
	}
}

// mustCommands panics with a nil-command RuntimeError if any command is nil.
// Constructors use it so a malformed tree fails where it is built.
func mustCommands(op string, cmds []Command) {
	for i, c := range cmds {
		if c == nil {
			panic(NewNilCommandError(op, i))
		}
	}
}

func mustNonNil(op, arg string, ok bool) {
	if !ok {
		panic(NewInvalidArgumentError(op, arg, arg+" must be non-nil"))
	}
}
