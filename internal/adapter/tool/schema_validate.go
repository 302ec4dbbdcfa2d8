package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// SchemaValidatingTool wraps a Tool with JSON Schema validation.
type SchemaValidatingTool struct {
	inner  domain.Tool
	schema *jsonschema.Schema
}

// WithSchemaValidation wraps a tool so that Execute validates params against
// the tool's JSON Schema before forwarding to the inner tool.
// Returns error if the schema fails to compile.
func WithSchemaValidation(t domain.Tool) (domain.Tool, error) {
	compiled, err := compileSchema(t.Name(), t.Schema().Parameters)
	if err != nil {
		return nil, err
	}
	if compiled == nil {
		return t, nil
	}
	return &SchemaValidatingTool{inner: t, schema: compiled}, nil
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", name, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", name, err)
	}
	return compiled, nil
}

func (s *SchemaValidatingTool) Name() string              { return s.inner.Name() }
func (s *SchemaValidatingTool) Description() string       { return s.inner.Description() }
func (s *SchemaValidatingTool) Schema() domain.ToolSchema { return s.inner.Schema() }
func (s *SchemaValidatingTool) Operations() []string      { return s.inner.Operations() }

func (s *SchemaValidatingTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	var v interface{}
	if err := json.Unmarshal(params, &v); err != nil {
		return &domain.ToolResult{
			IsError: true,
			Code:    domain.CodeInvalidInput,
			Content: fmt.Sprintf("invalid JSON: %v", err),
		}, nil
	}

	// An unknown operation is reported as such, not as a schema mismatch.
	if obj, ok := v.(map[string]any); ok {
		if action, ok := obj["action"].(string); ok && !slices.Contains(s.inner.Operations(), action) {
			err := unsupported(s.inner.Name(), action, s.inner.Operations())
			return &domain.ToolResult{IsError: true, Code: domain.CodeUnsupportedOperation, Content: err.Error()}, nil
		}
	}

	if err := s.schema.Validate(v); err != nil {
		return &domain.ToolResult{
			IsError: true,
			Code:    domain.CodeInvalidInput,
			Content: fmt.Sprintf("schema validation failed: %v", err),
		}, nil
	}

	return s.inner.Execute(ctx, params)
}
