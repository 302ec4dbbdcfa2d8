package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

func TestRestrict(t *testing.T) {
	base := &echoTool{name: "fs", ops: []string{"a", "b", "c"}}

	r, err := Restrict(base, "c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, r.Operations())
	assert.Contains(t, string(r.Schema().Parameters), `"enum":["a","c"]`)

	res, err := r.Execute(context.Background(), json.RawMessage(`{"action":"b"}`))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, domain.CodeUnsupportedOperation, res.Code)

	res, err = r.Execute(context.Background(), json.RawMessage(`{"action":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, "ran a", res.Content)
}

func TestRestrictNoOpsKeepsTool(t *testing.T) {
	base := &echoTool{name: "fs", ops: []string{"a"}}
	r, err := Restrict(base)
	require.NoError(t, err)
	assert.Same(t, domain.Tool(base), r)
}

func TestRestrictUnknownOp(t *testing.T) {
	_, err := Restrict(&echoTool{name: "fs", ops: []string{"a"}}, "z")
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
}

func TestInvoke(t *testing.T) {
	base := &echoTool{name: "fs", ops: []string{"a", "b"}}

	res, err := Invoke(context.Background(), base, "b", map[string]any{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "ran b", res.Content)

	res, err = Invoke(context.Background(), base, "z", nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
	assert.Equal(t, domain.CodeUnsupportedOperation, res.Code)
}

type failingTool struct {
	echoTool
	res *domain.ToolResult
}

func (f *failingTool) Execute(context.Context, json.RawMessage) (*domain.ToolResult, error) {
	return f.res, nil
}

func TestInvokeRebuildsErrors(t *testing.T) {
	ft := &failingTool{echoTool: echoTool{name: "git", ops: []string{"clone"}}}

	ft.res = &domain.ToolResult{IsError: true, Code: domain.CodeExternalTool, Content: "exit 128"}
	_, err := Invoke(context.Background(), ft, "clone", nil)
	var ext *domain.ExternalToolError
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "git", ext.Tool)
	assert.Equal(t, "clone", ext.Operation)

	ft.res = &domain.ToolResult{IsError: true, Code: domain.CodeSandboxViolation, Content: "outside"}
	_, err = Invoke(context.Background(), ft, "clone", nil)
	assert.ErrorIs(t, err, domain.ErrSandboxViolation)

	ft.res = &domain.ToolResult{IsError: true, Content: "mystery"}
	_, err = Invoke(context.Background(), ft, "clone", nil)
	assert.ErrorIs(t, err, domain.ErrExternalTool)
}

func TestSchemaValidationReportsUnknownOperation(t *testing.T) {
	wrapped, err := WithSchemaValidation(&echoTool{name: "fs", ops: []string{"a", "b"}})
	require.NoError(t, err)

	res, err := wrapped.Execute(context.Background(), json.RawMessage(`{"action":"c"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.CodeUnsupportedOperation, res.Code, "c is in the schema enum but not an operation")

	res, err = wrapped.Execute(context.Background(), json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	assert.Equal(t, domain.CodeInvalidInput, res.Code, "missing required action")

	res, err = wrapped.Execute(context.Background(), json.RawMessage(`not json`))
	require.NoError(t, err)
	assert.Equal(t, domain.CodeInvalidInput, res.Code)
}

func TestSchemaValidationBadSchema(t *testing.T) {
	bad := &schemaTool{raw: json.RawMessage(`{"type": 12}`)}
	_, err := WithSchemaValidation(bad)
	assert.Error(t, err)

	none := &schemaTool{}
	got, err := WithSchemaValidation(none)
	require.NoError(t, err)
	assert.Same(t, domain.Tool(none), got)
}

type schemaTool struct {
	echoTool
	raw json.RawMessage
}

func (s *schemaTool) Schema() domain.ToolSchema { return domain.ToolSchema{Parameters: s.raw} }
