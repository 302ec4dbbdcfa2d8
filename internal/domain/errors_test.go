package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Tool.Execute", ErrToolNotFound, "tool 'foo'")
	want := "Tool.Execute: tool 'foo': tool not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Worker.Handle", ErrMaxIterations, "")
	want := "Worker.Handle: worker reached max iterations"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Sandbox.ValidatePath", ErrSandboxViolation, "/etc/passwd")
	if !errors.Is(err, ErrSandboxViolation) {
		t.Error("errors.Is should match ErrSandboxViolation")
	}
}

func TestExternalToolError(t *testing.T) {
	cause := errors.New("exit status 128")
	err := NewExternalToolError("git", "clone", "repository not found", cause)

	assert.True(t, errors.Is(err, ErrExternalTool))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "git.clone: external tool error: repository not found: exit status 128", err.Error())
	assert.Equal(t, CodeExternalTool, ErrorCodeOf(fmt.Errorf("wrapped: %w", err)))
}

func TestErrorCodeOf_Sentinels(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{ErrUnsupportedOperation, CodeUnsupportedOperation},
		{ErrSandboxViolation, CodeSandboxViolation},
		{ErrOracleUnavailable, CodeOracleUnavailable},
		{ErrRoutingAmbiguous, CodeRoutingAmbiguous},
		{ErrRateLimit, CodeRateLimit},
		{fmt.Errorf("some random error"), CodeUnknown},
		{nil, CodeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCodeOf(tt.err), "err=%v", tt.err)
	}
}

func TestErrorCodeOf_MostSpecificWins(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrOracleUnavailable, ErrTimeout)
	assert.Equal(t, CodeOracleUnavailable, ErrorCodeOf(err))
}

func TestDomainError_Code(t *testing.T) {
	err := NewDomainError("Registry.Get", ErrWorkerNotFound, "nope")
	require.Equal(t, CodeWorkerNotFound, err.Code())
}

func TestWrapOpNil(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))
	assert.ErrorIs(t, WrapOp("op", ErrTimeout), ErrTimeout)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(fmt.Errorf("x: %w", ErrRateLimit)))
	assert.False(t, IsRetryableError(ErrAuthInvalid))
}

func TestSentinelOfRoundTrip(t *testing.T) {
	for _, ec := range errorCodes {
		assert.Equal(t, ec.code, ErrorCodeOf(SentinelOf(ec.code)))
	}
	assert.Nil(t, SentinelOf(CodeUnknown))
	assert.Nil(t, SentinelOf("BOGUS"))
}
