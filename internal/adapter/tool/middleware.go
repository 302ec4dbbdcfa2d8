package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/tracer"
)

// Execute is the standard tool execution pipeline: parse params -> start trace -> run handler -> format result.
//
// The handler receives the parsed params and an active trace span. It should return:
//   - (any Go value, nil): JSON-marshaled into a success ToolResult
//   - (string, nil): wrapped in a plain-text ToolResult
//   - (*domain.ToolResult, nil): returned as-is
//   - (nil, error): turned into an error ToolResult carrying the error code
//
// Failures are reported in the result, never as the returned error, so the
// calling worker always sees them.
func Execute[P any](
	ctx context.Context,
	spanName string,
	logger *slog.Logger,
	rawParams json.RawMessage,
	handler func(ctx context.Context, span trace.Span, params P) (any, error),
) (*domain.ToolResult, error) {
	ctx, span := tracer.StartSpan(ctx, spanName,
		trace.WithAttributes(tracer.StringAttr("tool.name", spanName)),
	)
	defer span.End()

	var p P
	if err := json.Unmarshal(rawParams, &p); err != nil {
		tracer.RecordError(span, err)
		return &domain.ToolResult{
			IsError: true,
			Code:    domain.CodeInvalidInput,
			Content: fmt.Sprintf("invalid params: %v", err),
		}, nil
	}

	result, err := handler(ctx, span, p)
	if err != nil {
		tracer.RecordError(span, err)
		return errorResult(logger, spanName, err), nil
	}

	return formatResult(span, result)
}

func errorResult(logger *slog.Logger, spanName string, err error) *domain.ToolResult {
	code := domain.ErrorCodeOf(err)
	// Policy rejections are expected worker mistakes, not operational problems.
	if code == domain.CodeSandboxViolation || code == domain.CodeUnsupportedOperation {
		logger.Debug(spanName+" rejected", "error", err, "code", code)
	} else {
		logger.Warn(spanName+" failed", "error", err, "code", code)
	}

	retryable := classifyToolError(err)
	content := err.Error()
	if retryable {
		content += " (transient error, may succeed on retry)"
	}
	return &domain.ToolResult{IsError: true, IsRetryable: retryable, Code: code, Content: content}
}

// formatResult converts the handler's return value into a ToolResult.
func formatResult(span trace.Span, result any) (*domain.ToolResult, error) {
	switch v := result.(type) {
	case *domain.ToolResult:
		if v.IsError {
			tracer.RecordError(span, errors.New(v.Content))
		} else {
			tracer.SetOK(span)
		}
		return v, nil
	case string:
		tracer.SetOK(span)
		return &domain.ToolResult{Content: v}, nil
	default:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			tracer.RecordError(span, err)
			return &domain.ToolResult{
				IsError: true,
				Content: fmt.Sprintf("failed to format response: %v", err),
			}, nil
		}
		tracer.SetOK(span)
		return &domain.ToolResult{Content: string(data)}, nil
	}
}

// TextResult creates a plain text success ToolResult.
func TextResult(s string) *domain.ToolResult {
	return &domain.ToolResult{Content: s}
}
