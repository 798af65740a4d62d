package common

import (
	"errors"
	"fmt"
)

// Exit codes returned by the CLI. Validation and context failures get
// their own codes so shell tooling can tell "you typed it wrong" apart
// from "the API said no".
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
	ExitContext    = 3
	ExitService    = 4
)

// ValidationError reports malformed user input: a bad flag value, an
// unrecognized config key shape, conflicting decision flags. It is
// never retried and always echoes the offending input.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

// NewValidationError creates a ValidationError for the given input.
func NewValidationError(input, reason string) *ValidationError {
	return &ValidationError{Input: input, Reason: reason}
}

// Coder is implemented by errors that carry their own exit code.
// resolve.ContextError and the bitbucket API errors implement it so
// this package does not need to import them.
type Coder interface {
	ExitCode() int
}

// ExitCode maps an error to the process exit code. Typed errors win
// over the generic failure code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return ExitValidation
	}

	var coder Coder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}

	return ExitFailure
}
