package common

import (
	"errors"
	"fmt"
	"testing"
)

type codedError struct{ code int }

func (e *codedError) Error() string { return "coded" }
func (e *codedError) ExitCode() int { return e.code }

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain error", errors.New("boom"), ExitFailure},
		{"validation error", NewValidationError("-R", "bad shape"), ExitValidation},
		{"wrapped validation error", fmt.Errorf("outer: %w", NewValidationError("x", "y")), ExitValidation},
		{"coded error", &codedError{code: ExitService}, ExitService},
		{"wrapped coded error", fmt.Errorf("outer: %w", &codedError{code: ExitContext}), ExitContext},
	}

	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("%s: expected exit code %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("a/b/c", "expected <workspace>/<repo>")
	want := `invalid input "a/b/c": expected <workspace>/<repo>`
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}
