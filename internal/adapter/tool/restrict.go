package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// restrictedTool narrows a tool's operation set.
type restrictedTool struct {
	inner  domain.Tool
	ops    []string
	schema domain.ToolSchema
}

// Restrict returns t limited to ops. Every op must be one t supports; an
// empty ops list keeps all of them. The schema's action enum is narrowed
// so the oracle is only offered the allowed operations.
func Restrict(t domain.Tool, ops ...string) (domain.Tool, error) {
	if len(ops) == 0 {
		return t, nil
	}
	for _, op := range ops {
		if !slices.Contains(t.Operations(), op) {
			return nil, domain.NewDomainError("tool.Restrict", domain.ErrUnsupportedOperation,
				fmt.Sprintf("%s has no operation %q", t.Name(), op))
		}
	}
	sorted := slices.Clone(ops)
	slices.Sort(sorted)
	return &restrictedTool{inner: t, ops: sorted, schema: narrowSchema(t.Schema(), sorted)}, nil
}

func (r *restrictedTool) Name() string              { return r.inner.Name() }
func (r *restrictedTool) Description() string       { return r.inner.Description() }
func (r *restrictedTool) Schema() domain.ToolSchema { return r.schema }
func (r *restrictedTool) Operations() []string      { return r.ops }

func (r *restrictedTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	var p struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return &domain.ToolResult{IsError: true, Code: domain.CodeInvalidInput,
			Content: fmt.Sprintf("invalid params: %v", err)}, nil
	}
	if !slices.Contains(r.ops, p.Action) {
		err := unsupported(r.Name(), p.Action, r.ops)
		return &domain.ToolResult{IsError: true, Code: domain.CodeUnsupportedOperation, Content: err.Error()}, nil
	}
	return r.inner.Execute(ctx, params)
}

// narrowSchema rewrites properties.action.enum to ops. Schemas it cannot
// parse are returned unchanged.
func narrowSchema(s domain.ToolSchema, ops []string) domain.ToolSchema {
	var doc map[string]any
	if err := json.Unmarshal(s.Parameters, &doc); err != nil {
		return s
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		return s
	}
	action, ok := props["action"].(map[string]any)
	if !ok {
		return s
	}
	action["enum"] = ops
	raw, err := json.Marshal(doc)
	if err != nil {
		return s
	}
	s.Parameters = raw
	return s
}
