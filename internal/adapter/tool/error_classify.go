package tool

import (
	"errors"
	"strings"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// retryableSentinels are domain errors for transient backend failures.
var retryableSentinels = []error{
	domain.ErrTimeout,
	domain.ErrProviderError,
	domain.ErrRateLimit,
}

// permanentSentinels never succeed on retry, whatever their message says.
var permanentSentinels = []error{
	domain.ErrUnsupportedOperation,
	domain.ErrSandboxViolation,
	domain.ErrCommandNotAllowed,
	domain.ErrURLBlocked,
	domain.ErrInvalidInput,
}

// retryablePatterns are substrings of transient network and git failures.
// Checked case-insensitively.
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"timeout",
	"deadline exceeded",
	"temporarily unavailable",
	"service unavailable",
	"try again",
	"early eof",
	"the remote end hung up",
	"http 429",
	"http 502",
	"http 503",
}

// classifyToolError reports whether the tool call may succeed on retry.
func classifyToolError(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range permanentSentinels {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	for _, sentinel := range retryableSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	lower := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
