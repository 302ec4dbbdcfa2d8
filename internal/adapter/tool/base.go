package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"go.opentelemetry.io/otel/trace"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/tracer"
)

// ActionHandler is a function that handles a single action for a tool.
type ActionHandler[P any] func(ctx context.Context, p P) (any, error)

// ActionMap maps action names to their handlers for an action-based tool.
type ActionMap[P any] map[string]ActionHandler[P]

// Names returns the sorted action names.
func (m ActionMap[P]) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch creates a handler function for Execute[P] that routes by action name.
// An action outside the map fails with ErrUnsupportedOperation.
//
//	func (t *FooTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
//	    return Execute(ctx, "tool.foo", t.logger, params,
//	        Dispatch("foo", func(p fooParams) string { return p.Action }, t.actions()),
//	    )
//	}
func Dispatch[P any](
	toolName string,
	getAction func(P) string,
	actions ActionMap[P],
) func(ctx context.Context, span trace.Span, p P) (any, error) {
	valid := actions.Names()

	return func(ctx context.Context, span trace.Span, p P) (any, error) {
		action := getAction(p)
		span.SetAttributes(tracer.StringAttr("tool.action", action))

		handler, ok := actions[action]
		if !ok {
			return nil, unsupported(toolName, action, valid)
		}
		return handler(ctx, p)
	}
}

func unsupported(toolName, action string, valid []string) error {
	return domain.NewDomainError("tool."+toolName, domain.ErrUnsupportedOperation,
		fmt.Sprintf("operation %q (allowed: %s)", action, joinComma(valid)))
}

// Invoke runs operation op of t with args and returns the result. A failed
// invocation also returns an error carrying the result's code, so callers
// can branch with errors.Is; ExternalToolError is rebuilt for tool failures.
func Invoke(ctx context.Context, t domain.Tool, op string, args map[string]any) (*domain.ToolResult, error) {
	if !slices.Contains(t.Operations(), op) {
		err := unsupported(t.Name(), op, t.Operations())
		return &domain.ToolResult{IsError: true, Code: domain.CodeUnsupportedOperation, Content: err.Error()}, err
	}

	merged := make(map[string]any, len(args)+1)
	for k, v := range args {
		merged[k] = v
	}
	merged["action"] = op
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal %s.%s args: %w", t.Name(), op, err)
	}

	res, err := t.Execute(ctx, raw)
	if err != nil {
		return nil, err
	}
	return res, ResultError(t.Name(), op, res)
}

// ResultError converts a failed result back into an error, or nil when
// the result succeeded.
func ResultError(toolName, op string, res *domain.ToolResult) error {
	if res.OK() {
		return nil
	}
	if res.Code == domain.CodeExternalTool {
		return domain.NewExternalToolError(toolName, op, res.Content, nil)
	}
	sentinel := domain.SentinelOf(res.Code)
	if sentinel == nil {
		sentinel = domain.ErrExternalTool
	}
	return domain.NewDomainError(fmt.Sprintf("tool.%s.%s", toolName, op), sentinel, res.Content)
}

func joinComma(ss []string) string {
	switch len(ss) {
	case 0:
		return ""
	case 1:
		return ss[0]
	}
	out := ss[0]
	for _, s := range ss[1:] {
		out += ", " + s
	}
	return out
}
