// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the terminal front ends.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/theme"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Model Unavailable"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Code    domain.ErrorCode
	Raw     string // original error text (for debug)
}

// Render formats the FriendlyError for display.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Code != "" && fe.Code != domain.CodeUnknown {
		fmt.Fprintf(&sb, " [%s]", fe.Code)
	}
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			fmt.Fprintf(&sb, "\n    %s %s", theme.SymbolBullet, h)
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	title   string
	message string
	hints   []string
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// Sentinels first so errors.Is sees through wrapping; the string patterns
// catch provider errors that arrive unclassified.
var patterns = []errorPattern{
	{
		match:   is(domain.ErrInvalidInput),
		title:   "Invalid Request",
		message: "The request was rejected before any worker ran.",
		hints:   []string{"Check the session id and that the message is not empty"},
	},
	{
		match:   is(domain.ErrCircuitOpen),
		title:   "Model Temporarily Disabled",
		message: "Too many recent model failures; calls are paused.",
		hints:   []string{"Wait for the circuit breaker timeout", "Configure a failover provider under llm.failover"},
	},
	{
		match:   is(domain.ErrAuthInvalid),
		title:   "Authentication Failed",
		message: "The model provider rejected the API key.",
		hints:   []string{"Check the provider api_key in config or its REPOSCRIBE_* override", "Run 'reposcribe config encrypt' to store a fresh key"},
	},
	{
		match:   is(domain.ErrRateLimit),
		title:   "Rate Limited",
		message: "The model provider is throttling requests.",
		hints:   []string{"Wait a moment before retrying", "Reduce team.max_iterations"},
	},
	{
		match:   is(domain.ErrContextOverflow),
		title:   "Context Too Large",
		message: "The conversation no longer fits in the model's context window.",
		hints:   []string{"Run /reset to start a fresh session", "Lower team.history_tokens"},
	},
	{
		match:   is(domain.ErrOracleUnavailable),
		title:   "Model Unavailable",
		message: "The language model did not answer in time or returned an error.",
		hints:   []string{"Try again", "Raise team.worker_timeout or team.turn_timeout"},
	},
	{
		match:   is(domain.ErrSandboxViolation),
		title:   "Sandbox Violation",
		message: "A tool tried to reach a path outside the workspace.",
		hints:   []string{"Refer to files relative to the loaded repository"},
	},
	{
		match:   is(domain.ErrURLBlocked),
		title:   "URL Blocked",
		message: "The repository or web address is not allowed.",
		hints:   []string{"Use a public https URL", "Add the host to tools.allowed_repo_hosts"},
	},
	{
		match:   is(domain.ErrExternalTool),
		title:   "External Tool Failed",
		message: "git, the shell or the search backend reported an error.",
		hints:   []string{"Check that the repository URL is correct and public", "Make sure git is installed"},
	},
	{
		match:   is(domain.ErrSessionNotFound),
		title:   "Unknown Session",
		message: "No conversation is stored under that id.",
	},
	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		title:   "Connection Failed",
		message: "Could not reach the remote service.",
		hints:   []string{"Check your internet connection", "Verify the provider base_url in config"},
	},
	{
		match:   containsAny("deadline exceeded", "timeout"),
		title:   "Request Timed Out",
		message: "The request took too long to complete.",
		hints:   []string{"Try a narrower question", "Raise team.turn_timeout"},
	},
	{
		match:   containsAny("401", "unauthorized", "invalid api key", "invalid x-api-key"),
		title:   "Authentication Failed",
		message: "The API key or credentials were rejected.",
		hints:   []string{"Check the provider api_key in config"},
	},
	{
		match:   containsAny("429", "rate limit", "too many requests"),
		title:   "Rate Limited",
		message: "Too many requests sent to the API provider.",
		hints:   []string{"Wait a moment before retrying"},
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}
	code := domain.ErrorCodeOf(err)
	for _, p := range patterns {
		if p.match(err) {
			return FriendlyError{Title: p.title, Message: p.message, Hints: p.hints, Code: code, Raw: err.Error()}
		}
	}
	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with --log-level debug for more details"},
		Code:    code,
		Raw:     err.Error(),
	}
}

// containsAny matches errors whose text contains any of substrs,
// case-insensitively.
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}
