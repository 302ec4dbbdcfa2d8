package domain

import (
	"context"
	"encoding/json"
)

// ToolSchema describes a tool for the LLM function-calling protocol.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents an LLM's request to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of invoking a tool operation. A failed
// invocation has IsError set and Code naming the failure class.
type ToolResult struct {
	ToolCallID  string    `json:"tool_call_id"`
	Content     string    `json:"content"`
	IsError     bool      `json:"is_error"`
	IsRetryable bool      `json:"is_retryable,omitempty"`
	Code        ErrorCode `json:"code,omitempty"`
}

// OK reports whether the invocation succeeded.
func (r *ToolResult) OK() bool { return r != nil && !r.IsError }

// Tool is a tool adapter. The operation to run travels in the "action"
// argument and must be one of Operations().
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Operations() []string
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolExecutor abstracts tool lookup.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	Schemas() []ToolSchema
}
