// Package errors provides structured error types for framegraph.
//
// Every error returned by the graph, the evaluator and the engine carries a
// machine-readable [Code] so that callers (typically a UI layer) can decide
// how to surface it without string matching.
//
// # Error Codes
//
//   - LOOKUP: unknown node id or port name
//   - TYPE_MISMATCH: incompatible port or literal types
//   - CYCLE: an edge would create a directed cycle
//   - STATE_CONFLICT: a literal was set on a connected input
//   - EVALUATION: a node's computation failed (see [EvaluationError])
//   - NOT_FOUND: a resource (node, project) does not exist
//   - INVALID_INPUT, UNCONNECTED_INPUT, CANCELED, INTERNAL, UNSUPPORTED
//
// # Usage
//
//	err := errors.New(errors.ErrCodeLookup, "unknown port %q", name)
//	if errors.Is(err, errors.ErrCodeLookup) {
//	    // surface to the user
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInternal, origErr, "decode %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Structural errors returned by graph mutations
	ErrCodeLookup        Code = "LOOKUP"
	ErrCodeTypeMismatch  Code = "TYPE_MISMATCH"
	ErrCodeCycle         Code = "CYCLE"
	ErrCodeStateConflict Code = "STATE_CONFLICT"
	ErrCodeNotFound      Code = "NOT_FOUND"

	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidDocument Code = "INVALID_DOCUMENT"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"

	// Evaluation errors
	ErrCodeEvaluation       Code = "EVALUATION"
	ErrCodeUnconnectedInput Code = "UNCONNECTED_INPUT"
	ErrCodeCanceled         Code = "CANCELED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
	ErrCodeClosed      Code = "CLOSED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err carries the given error code anywhere in its chain.
// Both *Error and *EvaluationError are inspected, so
// Is(evalErr, ErrCodeLookup) finds a lookup failure that caused an
// evaluation to abort.
func Is(err error, code Code) bool {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			if e.Code == code {
				return true
			}
		case *EvaluationError:
			if code == ErrCodeEvaluation {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the chain holds neither an *Error nor an
// *EvaluationError.
func GetCode(err error) Code {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case *EvaluationError:
			return ErrCodeEvaluation
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// EvaluationError reports that a node's computation failed during an
// evaluation pass. The pass that produced it was aborted; the graph itself
// is unaffected.
type EvaluationError struct {
	NodeID string // Node whose computation (or input resolution) failed
	Type   string // Registered node type name, if known
	Cause  error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: node %s (%s): %v", ErrCodeEvaluation, e.NodeID, e.Type, e.Cause)
	}
	return fmt.Sprintf("%s: node %s: %v", ErrCodeEvaluation, e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error { return e.Cause }

// Code returns the error code for this error type.
func (e *EvaluationError) Code() Code { return ErrCodeEvaluation }

// FailedNode returns the id of the node that caused err, or "" if err is not
// an evaluation failure. The innermost EvaluationError wins, so a failure
// deep in the upstream chain is attributed to the node that actually failed.
func FailedNode(err error) string {
	var id string
	for err != nil {
		if e, ok := err.(*EvaluationError); ok {
			id = e.NodeID
		}
		err = errors.Unwrap(err)
	}
	return id
}
