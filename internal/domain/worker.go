package domain

import (
	"context"
	"time"
)

// Capability grants a worker one tool, optionally narrowed to a subset of
// the tool's operations.
type Capability struct {
	Tool       string   `json:"tool" yaml:"tool"`
	Operations []string `json:"operations,omitempty" yaml:"operations,omitempty"`
}

// WorkerSpec is the static identity and capability set of one worker.
type WorkerSpec struct {
	ID                   string       `json:"id" yaml:"id"`
	Name                 string       `json:"name" yaml:"name"`
	Role                 string       `json:"role" yaml:"role"`
	Description          string       `json:"description,omitempty" yaml:"description,omitempty"`
	Instructions         []string     `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Capabilities         []Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Memory               bool         `json:"memory,omitempty" yaml:"memory,omitempty"`
	RequiresConfirmation bool         `json:"requires_confirmation,omitempty" yaml:"requires_confirmation,omitempty"`
	NeedsRepository      bool         `json:"needs_repository,omitempty" yaml:"needs_repository,omitempty"`
	Prerequisites        []string     `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	Provider             string       `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model                string       `json:"model,omitempty" yaml:"model,omitempty"`
	MaxIterations        int          `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

// ToolNames returns the names of the tools the worker may use.
func (s WorkerSpec) ToolNames() []string {
	names := make([]string, 0, len(s.Capabilities))
	for _, c := range s.Capabilities {
		names = append(names, c.Tool)
	}
	return names
}

// Attachment is structured input that accompanies a task.
type Attachment struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
}

// Task is the work handed to a worker for one dispatch.
type Task struct {
	SessionID   string       `json:"session_id"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	// Amendment carries user feedback on a previous proposal by the same worker.
	Amendment string `json:"amendment,omitempty"`
	Previous  string `json:"previous,omitempty"`
}

// ConfirmedOutput is a worker output the user approved, or that never
// needed approval.
type ConfirmedOutput struct {
	WorkerID    string    `json:"worker_id"`
	Content     string    `json:"content"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// WorkerContext is what the orchestrator knows that the worker may use.
type WorkerContext struct {
	Repository Repository        `json:"repository"`
	Confirmed  []ConfirmedOutput `json:"confirmed,omitempty"`
}

// Repository describes the target repository of a session.
type Repository struct {
	URL       string `json:"url,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
	Loaded    bool   `json:"loaded"`
}

// ToolFailure records a tool invocation that failed during a worker run.
type ToolFailure struct {
	Tool      string    `json:"tool"`
	Operation string    `json:"operation,omitempty"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
}

// Response is a worker's answer to one task.
type Response struct {
	WorkerID             string        `json:"worker_id"`
	Content              string        `json:"content"`
	RequiresConfirmation bool          `json:"requires_confirmation"`
	ToolFailures         []ToolFailure `json:"tool_failures,omitempty"`
	Usage                Usage         `json:"usage"`
	Duration             time.Duration `json:"duration"`
}

// HasToolFailures reports whether any tool call failed during the run.
func (r *Response) HasToolFailures() bool { return r != nil && len(r.ToolFailures) > 0 }

// Worker handles tasks on behalf of the orchestrator.
type Worker interface {
	Spec() WorkerSpec
	Handle(ctx context.Context, task Task, wctx WorkerContext) (*Response, error)
}
