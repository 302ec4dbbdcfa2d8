package usecase

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// ErrorCategory says whether a failed oracle call is worth another attempt.
type ErrorCategory int

const (
	ErrorCategoryUnknown ErrorCategory = iota
	ErrorCategoryRetryable
	ErrorCategoryPermanent
)

// ClassifiedError is the verdict for one oracle error.
type ClassifiedError struct {
	Original   error
	Category   ErrorCategory
	Sentinel   error // domain sentinel the error maps to, if any
	StatusCode int   // HTTP status parsed from the message, if any
}

// ErrorClassifier decides whether a failed oracle call is worth retrying.
// Providers wrap domain sentinels where they can; the status code and
// message text are fallbacks for errors that arrive unwrapped.
type ErrorClassifier struct{}

func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

var apiStatusPattern = regexp.MustCompile(`API error (\d+):`)

// stopSentinels end the worker's attempt loop immediately: the caller's
// deadline is spent or the breaker is refusing calls.
var stopSentinels = []error{
	context.Canceled, context.DeadlineExceeded, domain.ErrTimeout, domain.ErrCircuitOpen,
}

var sentinelCategories = []struct {
	sentinel error
	category ErrorCategory
}{
	{domain.ErrRateLimit, ErrorCategoryRetryable},
	{domain.ErrContextOverflow, ErrorCategoryRetryable},
	{domain.ErrAuthInvalid, ErrorCategoryPermanent},
	{domain.ErrProviderError, ErrorCategoryRetryable},
}

// textRules match provider messages that carry no status code.
var textRules = []struct {
	needles  []string
	sentinel error
}{
	{[]string{"rate limit", "too many requests"}, domain.ErrRateLimit},
	{[]string{"context length", "token limit", "maximum context"}, domain.ErrContextOverflow},
	{[]string{"connection refused", "no such host", "timeout", "deadline exceeded", "connection reset"}, nil},
}

// overflowHints mark a 400 response as a context-window problem.
var overflowHints = []string{"context", "token", "length", "too long", "maximum"}

// Classify maps err to a category, checking wrapped sentinels, then the
// HTTP status, then the message text.
func (c *ErrorClassifier) Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}
	for _, s := range stopSentinels {
		if errors.Is(err, s) {
			return ClassifiedError{Original: err, Category: ErrorCategoryPermanent}
		}
	}
	for _, sc := range sentinelCategories {
		if errors.Is(err, sc.sentinel) {
			return ClassifiedError{Original: err, Category: sc.category, Sentinel: sc.sentinel}
		}
	}

	msg := err.Error()
	if m := apiStatusPattern.FindStringSubmatch(msg); len(m) == 2 {
		code, _ := strconv.Atoi(m[1])
		out := byStatus(code, strings.ToLower(msg))
		out.Original, out.StatusCode = err, code
		return out
	}

	lower := strings.ToLower(msg)
	for _, rule := range textRules {
		if containsAny(lower, rule.needles) {
			return ClassifiedError{Original: err, Category: ErrorCategoryRetryable, Sentinel: rule.sentinel}
		}
	}
	return ClassifiedError{Original: err, Category: ErrorCategoryUnknown}
}

func byStatus(code int, lowerMsg string) ClassifiedError {
	switch {
	case code == 429:
		return ClassifiedError{Category: ErrorCategoryRetryable, Sentinel: domain.ErrRateLimit}
	case code == 401, code == 403:
		return ClassifiedError{Category: ErrorCategoryPermanent, Sentinel: domain.ErrAuthInvalid}
	case code == 413, code == 400 && containsAny(lowerMsg, overflowHints):
		return ClassifiedError{Category: ErrorCategoryRetryable, Sentinel: domain.ErrContextOverflow}
	case code >= 500 && code < 600:
		return ClassifiedError{Category: ErrorCategoryRetryable, Sentinel: domain.ErrProviderError}
	default:
		return ClassifiedError{Category: ErrorCategoryPermanent}
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Retryable reports whether err may succeed on another attempt.
func (c *ErrorClassifier) Retryable(err error) bool {
	return c.Classify(err).Category == ErrorCategoryRetryable
}
