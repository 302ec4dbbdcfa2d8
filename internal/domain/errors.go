package domain

import (
	"errors"
	"fmt"
)

// Category sentinels shared by every layer.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicate     = fmt.Errorf("duplicate")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Tool adapter errors.
var (
	ErrUnsupportedOperation = fmt.Errorf("unsupported operation")
	ErrSandboxViolation     = fmt.Errorf("path escapes sandbox root")
	ErrExternalTool         = fmt.Errorf("external tool error")
	ErrToolNotFound         = fmt.Errorf("tool not found")
	ErrCommandNotAllowed    = fmt.Errorf("command not in allowlist")
	ErrURLBlocked           = fmt.Errorf("url not allowed")
)

// Worker and orchestrator errors.
var (
	ErrOracleUnavailable = fmt.Errorf("model oracle unavailable")
	ErrRoutingAmbiguous  = fmt.Errorf("no worker matches the request")
	ErrMaxIterations     = fmt.Errorf("worker reached max iterations")
	ErrWorkerNotFound    = fmt.Errorf("worker not found")
	ErrSessionNotFound   = fmt.Errorf("session not found")
	ErrProviderNotFound  = fmt.Errorf("llm provider not found")
)

// Resilience errors reported by oracle providers.
var (
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrCircuitOpen     = fmt.Errorf("circuit breaker open")
)

// Configuration errors.
var (
	ErrConfigLoad = fmt.Errorf("failed to load configuration")
	ErrDecryption = fmt.Errorf("decryption failed")
)

// ExternalToolError is an ErrExternalTool carrying the diagnostic of the
// underlying system (exit code, stderr, HTTP status).
type ExternalToolError struct {
	Tool       string
	Operation  string
	Diagnostic string
	Err        error
}

// NewExternalToolError builds an ExternalToolError. err may be nil.
func NewExternalToolError(tool, op, diagnostic string, err error) *ExternalToolError {
	return &ExternalToolError{Tool: tool, Operation: op, Diagnostic: diagnostic, Err: err}
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s.%s: %s", e.Tool, e.Operation, ErrExternalTool)
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrExternalTool) hold for every ExternalToolError.
func (e *ExternalToolError) Is(target error) bool { return target == ErrExternalTool }

func (e *ExternalToolError) Unwrap() error { return e.Err }

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Sandbox.ValidatePath")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderError)
}

// ErrorCode is a machine-parseable error category carried in tool results and
// API responses.
type ErrorCode string

const (
	CodeUnknown              ErrorCode = "UNKNOWN"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeDuplicate            ErrorCode = "DUPLICATE"
	CodeTimeout              ErrorCode = "TIMEOUT"
	CodeInvalidInput         ErrorCode = "INVALID_INPUT"
	CodeProviderError        ErrorCode = "PROVIDER_ERROR"
	CodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	CodeSandboxViolation     ErrorCode = "SANDBOX_VIOLATION"
	CodeExternalTool         ErrorCode = "EXTERNAL_TOOL_ERROR"
	CodeToolNotFound         ErrorCode = "TOOL_NOT_FOUND"
	CodeCommandNotAllowed    ErrorCode = "COMMAND_NOT_ALLOWED"
	CodeURLBlocked           ErrorCode = "URL_BLOCKED"
	CodeOracleUnavailable    ErrorCode = "ORACLE_UNAVAILABLE"
	CodeRoutingAmbiguous     ErrorCode = "ROUTING_AMBIGUOUS"
	CodeMaxIterations        ErrorCode = "MAX_ITERATIONS"
	CodeWorkerNotFound       ErrorCode = "WORKER_NOT_FOUND"
	CodeSessionNotFound      ErrorCode = "SESSION_NOT_FOUND"
	CodeProviderNotFound     ErrorCode = "PROVIDER_NOT_FOUND"
	CodeContextOverflow      ErrorCode = "CONTEXT_OVERFLOW"
	CodeRateLimit            ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid          ErrorCode = "AUTH_INVALID"
	CodeCircuitOpen          ErrorCode = "CIRCUIT_OPEN"
	CodeConfigLoad           ErrorCode = "CONFIG_LOAD"
	CodeDecryption           ErrorCode = "DECRYPTION"
)

// errorCodes is ordered from most to least specific so that errors wrapping
// several sentinels (e.g. an oracle timeout) resolve deterministically.
var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrOracleUnavailable, CodeOracleUnavailable},
	{ErrRoutingAmbiguous, CodeRoutingAmbiguous},
	{ErrUnsupportedOperation, CodeUnsupportedOperation},
	{ErrSandboxViolation, CodeSandboxViolation},
	{ErrCommandNotAllowed, CodeCommandNotAllowed},
	{ErrURLBlocked, CodeURLBlocked},
	{ErrExternalTool, CodeExternalTool},
	{ErrToolNotFound, CodeToolNotFound},
	{ErrMaxIterations, CodeMaxIterations},
	{ErrWorkerNotFound, CodeWorkerNotFound},
	{ErrSessionNotFound, CodeSessionNotFound},
	{ErrProviderNotFound, CodeProviderNotFound},
	{ErrCircuitOpen, CodeCircuitOpen},
	{ErrContextOverflow, CodeContextOverflow},
	{ErrRateLimit, CodeRateLimit},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrDecryption, CodeDecryption},
	{ErrNotFound, CodeNotFound},
	{ErrDuplicate, CodeDuplicate},
	{ErrTimeout, CodeTimeout},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrProviderError, CodeProviderError},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}

// SentinelOf returns the sentinel error behind code, or nil for CodeUnknown
// and unrecognised codes. It reverses ErrorCodeOf for results that crossed a
// serialization boundary.
func SentinelOf(code ErrorCode) error {
	for _, ec := range errorCodes {
		if ec.code == code {
			return ec.err
		}
	}
	return nil
}
