package assistant

import (
	"errors"
	"strings"
)

// ErrCancelled is returned when a call was aborted by the caller's
// cancellation token rather than by the assistant process itself.
var ErrCancelled = errors.New("assistant: call cancelled")

// ErrTimeout is returned when a call-scoped timeout elapsed before the
// assistant process exited.
var ErrTimeout = errors.New("assistant: call timed out")

// transientPatterns are substrings (checked case-insensitively) that mark
// an error as retryable by the orchestrator's automatic-retry policy.
var transientPatterns = []string{
	"rate limit",
	"429",
	"timed out",
	"timeout",
	"econnreset",
	"econnrefused",
	"socket hang up",
	"network error",
	"overloaded",
	"503",
	"502",
}

// IsTransient reports whether text matches one of the known retryable
// error patterns. Matching is a case-insensitive substring search.
func IsTransient(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isRateLimit reports whether stderr text indicates the assistant CLI was
// rate limited, distinct from a generic transient failure.
func isRateLimit(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "429")
}

// sessionResumePatterns are substrings that indicate a failed call is
// eligible for a single retry without the session-resume handle.
var sessionResumePatterns = []string{
	"session",
	"resume",
	"not found",
	"invalid",
}

// isSessionResumeError reports whether an error message suggests the
// assistant CLI rejected the --resume handle we supplied.
func isSessionResumeError(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range sessionResumePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
