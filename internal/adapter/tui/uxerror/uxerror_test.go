package uxerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

func TestHumanize(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		title string
		code  domain.ErrorCode
	}{
		{"sandbox", domain.NewDomainError("Sandbox.ValidatePath", domain.ErrSandboxViolation, "/etc/passwd"), "Sandbox Violation", domain.CodeSandboxViolation},
		{"oracle timeout", fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, domain.ErrTimeout), "Model Unavailable", domain.CodeOracleUnavailable},
		{"circuit wins over oracle", fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, domain.ErrCircuitOpen), "Model Temporarily Disabled", domain.CodeOracleUnavailable},
		{"git", domain.NewExternalToolError("git", "clone", "repository not found", nil), "External Tool Failed", domain.CodeExternalTool},
		{"string fallback", errors.New("dial tcp 10.0.0.1:443: connection refused"), "Connection Failed", domain.CodeUnknown},
		{"unknown", errors.New("boom"), "Unexpected Error", domain.CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := Humanize(tt.err)
			assert.Equal(t, tt.title, fe.Title)
			assert.Equal(t, tt.code, fe.Code)
			assert.Equal(t, tt.err.Error(), fe.Raw)
		})
	}
}

func TestHumanizeNil(t *testing.T) {
	assert.Equal(t, "Unknown Error", Humanize(nil).Title)
}

func TestRender(t *testing.T) {
	fe := FriendlyError{
		Title:   "Sandbox Violation",
		Message: "outside",
		Hints:   []string{"stay inside"},
		Code:    domain.CodeSandboxViolation,
	}
	out := fe.Render()
	assert.Contains(t, out, "Sandbox Violation [SANDBOX_VIOLATION]")
	assert.Contains(t, out, "\n  outside")
	assert.Contains(t, out, "Suggestions:")
	assert.Contains(t, out, "stay inside")

	assert.NotContains(t, FriendlyError{Title: "x", Code: domain.CodeUnknown}.Render(), "[")
}
