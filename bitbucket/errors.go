package bitbucket

import (
	"fmt"
	"time"

	"bb-cli/common"
)

// AuthError means the API rejected our credentials (HTTP 401/403).
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s (run `bb auth login`)", e.Message)
}

// ExitCode implements common.Coder.
func (e *AuthError) ExitCode() int { return common.ExitService }

// NotFoundError means the requested workspace, repository or pull
// request does not exist (HTTP 404).
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Resource)
}

// ExitCode implements common.Coder.
func (e *NotFoundError) ExitCode() int { return common.ExitService }

// RateLimitError means the API throttled us (HTTP 429). RetryAfter
// carries the server's hint; the client never retries on its own.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by Bitbucket, retry after %s", e.RetryAfter)
	}
	return "rate limited by Bitbucket"
}

// ExitCode implements common.Coder.
func (e *RateLimitError) ExitCode() int { return common.ExitService }

// NetworkError wraps transport-level failures (DNS, TLS, timeouts).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error talking to Bitbucket: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ExitCode implements common.Coder.
func (e *NetworkError) ExitCode() int { return common.ExitService }

// APIError covers any other non-2xx response, with the message the API
// returned.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bitbucket API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("bitbucket API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// ExitCode implements common.Coder.
func (e *APIError) ExitCode() int { return common.ExitService }
