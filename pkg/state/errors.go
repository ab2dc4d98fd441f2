package state

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind tags a failure with its place in the taxonomy. Kinds travel as
// prefixes inside state error slots ("timeout: deadline exceeded") and as a
// field of ServiceResult envelopes.
type ErrorKind string

const (
	// ErrorKindGeneration means the LLM output was unparseable or produced no SQL.
	ErrorKindGeneration ErrorKind = "generation"
	// ErrorKindValidation means the safety screen rejected the candidate.
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindExecution means a downstream system reported failure.
	ErrorKindExecution ErrorKind = "execution"
	// ErrorKindSchema means a referenced table or column does not exist.
	ErrorKindSchema ErrorKind = "schema"
	// ErrorKindBudget means a retry or recursion cap was reached.
	ErrorKindBudget ErrorKind = "budget"
	// ErrorKindTimeout means a per-call or request deadline expired.
	ErrorKindTimeout ErrorKind = "timeout"
)

// Tagged renders a message with its kind prefix.
func Tagged(kind ErrorKind, msg string) string {
	return string(kind) + ": " + msg
}

// KindOf recovers the kind prefix from a tagged message. Untagged messages
// default to execution.
func KindOf(tagged string) ErrorKind {
	idx := strings.Index(tagged, ":")
	if idx <= 0 {
		return ErrorKindExecution
	}
	switch kind := ErrorKind(tagged[:idx]); kind {
	case ErrorKindGeneration, ErrorKindValidation, ErrorKindExecution,
		ErrorKindSchema, ErrorKindBudget, ErrorKindTimeout:
		return kind
	default:
		return ErrorKindExecution
	}
}

// Classify maps a Go error to its taxonomy kind. Context expiry beats
// whatever the wrapped error says.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, context.Canceled):
		return ErrorKindTimeout
	default:
		return ErrorKindExecution
	}
}
