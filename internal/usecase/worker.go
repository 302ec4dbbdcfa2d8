package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/tracer"
)

// Recovery loop constants.
const (
	defaultLLMAttempts   = 3
	defaultMaxIterations = 10
	baseRetryDelay       = 500 * time.Millisecond
	maxRetryDelay        = 10 * time.Second
)

// WorkerDeps holds injected dependencies for a worker.
type WorkerDeps struct {
	Spec       domain.WorkerSpec
	LLM        domain.LLMProvider
	Tools      domain.ToolExecutor // nil = no tools
	Sessions   domain.SessionStore // read by memory-enabled workers
	Context    *ContextBuilder
	Classifier *ErrorClassifier // nil = no retries
	Bus        domain.EventBus  // optional
	Logger     *slog.Logger
	// Model overrides the provider's default model.
	Model         string
	MaxIterations int
	LLMAttempts   int
}

// LLMWorker runs the ask-oracle, call-tools loop for one worker spec.
type LLMWorker struct {
	deps    WorkerDeps
	backoff func(attempt int) time.Duration
}

// NewLLMWorker creates a worker. Spec.MaxIterations overrides
// deps.MaxIterations when set.
func NewLLMWorker(deps WorkerDeps) *LLMWorker {
	if deps.Spec.MaxIterations > 0 {
		deps.MaxIterations = deps.Spec.MaxIterations
	}
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = defaultMaxIterations
	}
	if deps.LLMAttempts <= 0 {
		deps.LLMAttempts = defaultLLMAttempts
	}
	if deps.Spec.Model != "" {
		deps.Model = deps.Spec.Model
	}
	if deps.Context == nil {
		deps.Context = NewContextBuilder(0, nil)
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LLMWorker{deps: deps, backoff: retryBackoff}
}

// Spec returns the worker's static identity.
func (w *LLMWorker) Spec() domain.WorkerSpec { return w.deps.Spec }

// Handle runs one task to a final answer. Oracle failures of any kind
// (unreachable, empty answer, iteration exhaustion, timeout) are reported
// as ErrOracleUnavailable; tool failures are reported inside the response.
func (w *LLMWorker) Handle(ctx context.Context, task domain.Task, wctx domain.WorkerContext) (*domain.Response, error) {
	spec := w.deps.Spec
	ctx, span := tracer.StartSpan(ctx, "worker.handle",
		trace.WithAttributes(tracer.StringAttr("worker.id", spec.ID)),
	)
	defer span.End()
	start := time.Now()

	var history []domain.Turn
	if spec.Memory && w.deps.Sessions != nil && task.SessionID != "" {
		turns, err := w.deps.Sessions.Read(ctx, task.SessionID)
		if err != nil {
			w.deps.Logger.Warn("worker history unavailable", "worker", spec.ID, "error", err)
		} else {
			history = turns
		}
	}

	messages := w.deps.Context.Build(spec, wctx, history, task)
	historyLen := len(messages) - 2

	var schemas []domain.ToolSchema
	if w.deps.Tools != nil {
		schemas = w.deps.Tools.Schemas()
	}

	var (
		usage    domain.Usage
		failures []domain.ToolFailure
	)
	for i := 0; i < w.deps.MaxIterations; i++ {
		span.AddEvent("worker.iteration", trace.WithAttributes(tracer.IntAttr("iteration", i)))

		req := domain.ChatRequest{Model: w.deps.Model, Messages: messages, Tools: schemas}
		resp, err := w.callLLMWithRetry(ctx, &req, &historyLen)
		if err != nil {
			tracer.RecordError(span, err)
			return nil, w.oracleUnavailable(err)
		}
		messages = req.Messages
		usage.Add(resp.Usage)

		msg := resp.Message
		msg.Role = domain.RoleAssistant
		messages = append(messages, msg)

		w.deps.Logger.Debug("worker oracle response",
			"worker", spec.ID,
			"iteration", i,
			"tool_calls", len(msg.ToolCalls),
			"tokens", resp.Usage.TotalTokens,
		)

		if len(msg.ToolCalls) == 0 {
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				err := domain.NewDomainError("Worker.Handle", domain.ErrOracleUnavailable,
					fmt.Sprintf("worker %s: empty answer", spec.ID))
				tracer.RecordError(span, err)
				return nil, err
			}
			tracer.SetOK(span)
			return &domain.Response{
				WorkerID:             spec.ID,
				Content:              content + renderToolFailures(failures),
				RequiresConfirmation: spec.RequiresConfirmation,
				ToolFailures:         failures,
				Usage:                usage,
				Duration:             time.Since(start),
			}, nil
		}

		// Execute tool calls in parallel; indexed results keep call order.
		toolMsgs := make([]domain.Message, len(msg.ToolCalls))
		toolFails := make([]*domain.ToolFailure, len(msg.ToolCalls))
		var wg sync.WaitGroup
		for idx, call := range msg.ToolCalls {
			wg.Add(1)
			go func() {
				defer wg.Done()
				toolMsgs[idx], toolFails[idx] = w.executeTool(ctx, task.SessionID, call)
			}()
		}
		wg.Wait()
		messages = append(messages, toolMsgs...)
		for _, f := range toolFails {
			if f != nil {
				failures = append(failures, *f)
			}
		}
	}

	err := fmt.Errorf("%w: worker %s: %w", domain.ErrOracleUnavailable, spec.ID, domain.ErrMaxIterations)
	tracer.RecordError(span, err)
	return nil, err
}

func (w *LLMWorker) oracleUnavailable(err error) error {
	if errors.Is(err, domain.ErrOracleUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: worker %s: %w", domain.ErrOracleUnavailable, w.deps.Spec.ID, err)
}

// callLLMWithRetry retries retryable oracle errors with jittered
// exponential backoff. A context overflow drops the older half of the prior
// turns and tries again.
func (w *LLMWorker) callLLMWithRetry(ctx context.Context, req *domain.ChatRequest, historyLen *int) (*domain.ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt < w.deps.LLMAttempts; attempt++ {
		llmCtx, llmSpan := tracer.StartSpan(ctx, "worker.llm_call")
		resp, err := w.deps.LLM.Chat(llmCtx, *req)
		llmSpan.End()
		if err == nil {
			if resp == nil {
				return nil, domain.NewDomainError("Worker.Handle", domain.ErrProviderError, "nil response")
			}
			return resp, nil
		}
		lastErr = err

		if w.deps.Classifier == nil {
			return nil, err
		}
		classified := w.deps.Classifier.Classify(err)
		if classified.Category != ErrorCategoryRetryable {
			return nil, err
		}

		if errors.Is(classified.Sentinel, domain.ErrContextOverflow) {
			if *historyLen == 0 {
				return nil, err
			}
			drop := (*historyLen + 1) / 2
			req.Messages = append(req.Messages[:1:1], req.Messages[1+drop:]...)
			*historyLen -= drop
			w.deps.Logger.Info("context overflow, dropped prior turns", "worker", w.deps.Spec.ID, "dropped", drop)
			continue
		}

		if attempt < w.deps.LLMAttempts-1 {
			delay := w.backoff(attempt)
			w.deps.Logger.Info("retrying oracle call after error",
				"worker", w.deps.Spec.ID, "attempt", attempt+1, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// executeTool runs one tool call. A failed call yields a tool message the
// oracle can react to plus a ToolFailure for the response.
func (w *LLMWorker) executeTool(ctx context.Context, sessionID string, call domain.ToolCall) (domain.Message, *domain.ToolFailure) {
	ctx, span := tracer.StartSpan(ctx, "worker.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	op := actionOf(call.Arguments)
	reply := func(content string) domain.Message {
		return domain.Message{
			Role:      domain.RoleTool,
			Name:      call.Name,
			Content:   content,
			ToolCalls: []domain.ToolCall{{ID: call.ID, Name: call.Name}},
			Timestamp: time.Now(),
		}
	}
	fail := func(code domain.ErrorCode, msg string) (domain.Message, *domain.ToolFailure) {
		publishEvent(w.deps.Bus, ctx, domain.EventToolCallCompleted, sessionID,
			domain.ToolEventPayload{Tool: call.Name, Action: op, IsError: true})
		tracer.RecordError(span, errors.New(msg))
		return reply(msg), &domain.ToolFailure{Tool: call.Name, Operation: op, Code: code, Message: msg}
	}

	publishEvent(w.deps.Bus, ctx, domain.EventToolCallStarted, sessionID,
		domain.ToolEventPayload{Tool: call.Name, Action: op})

	if w.deps.Tools == nil {
		err := domain.NewDomainError("Worker.executeTool", domain.ErrToolNotFound, call.Name)
		return fail(domain.CodeToolNotFound, err.Error())
	}
	t, err := w.deps.Tools.Get(call.Name)
	if err != nil {
		return fail(domain.ErrorCodeOf(err), err.Error())
	}

	res, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		return fail(domain.ErrorCodeOf(err), err.Error())
	}
	if res == nil {
		return fail(domain.CodeExternalTool, "tool returned no result")
	}
	if res.IsError {
		code := res.Code
		if code == "" {
			code = domain.CodeUnknown
		}
		return fail(code, res.Content)
	}

	publishEvent(w.deps.Bus, ctx, domain.EventToolCallCompleted, sessionID,
		domain.ToolEventPayload{Tool: call.Name, Action: op})
	tracer.SetOK(span)
	return reply(res.Content), nil
}

func actionOf(args json.RawMessage) string {
	var p struct {
		Action string `json:"action"`
	}
	if len(args) == 0 || json.Unmarshal(args, &p) != nil {
		return ""
	}
	return p.Action
}

// renderToolFailures formats the "Tool failures" section appended to a
// worker's answer; empty when nothing failed.
func renderToolFailures(failures []domain.ToolFailure) string {
	if len(failures) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\n### Tool failures\n")
	for _, f := range failures {
		name := f.Tool
		if f.Operation != "" {
			name += "." + f.Operation
		}
		fmt.Fprintf(&sb, "- `%s` (%s): %s\n", name, f.Code, f.Message)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// retryBackoff computes exponential backoff with jitter.
func retryBackoff(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	// Add 0-25% jitter.
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}
