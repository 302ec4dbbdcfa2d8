package multiagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// Step is one worker invocation inside a stage.
type Step struct {
	Worker  domain.Worker
	Task    domain.Task
	Context domain.WorkerContext
}

// StepResult is the outcome of one step.
type StepResult struct {
	WorkerID string
	Response *domain.Response
	Err      error
}

// Dispatcher runs the steps of a stage in parallel, each under its own
// timeout, and reports progress on the event bus.
type Dispatcher struct {
	timeout time.Duration
	bus     domain.EventBus
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. A zero timeout disables the
// per-worker deadline.
func NewDispatcher(timeout time.Duration, bus domain.EventBus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{timeout: timeout, bus: bus, logger: logger}
}

// RunStage runs every step concurrently and returns results in step order.
func (d *Dispatcher) RunStage(ctx context.Context, stage int, steps []Step) []StepResult {
	results := make([]StepResult, len(steps))
	var wg sync.WaitGroup
	for i, step := range steps {
		wg.Add(1)
		go func(i int, step Step) {
			defer wg.Done()
			results[i] = d.run(ctx, stage, step)
		}(i, step)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) run(ctx context.Context, stage int, step Step) (res StepResult) {
	id := step.Worker.Spec().ID
	res.WorkerID = id

	d.publish(ctx, domain.EventWorkerDispatched, step.Task.SessionID, domain.WorkerEventPayload{WorkerID: id, Stage: stage})
	d.logger.Debug("worker dispatched", "worker", id, "stage", stage)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Response = nil
			res.Err = fmt.Errorf("%w: worker %s panicked: %v", domain.ErrOracleUnavailable, id, r)
		}
		if res.Err != nil {
			d.logger.Warn("worker failed", "worker", id, "error", res.Err, "duration", time.Since(start))
			d.publish(ctx, domain.EventWorkerFailed, step.Task.SessionID,
				domain.WorkerEventPayload{WorkerID: id, Stage: stage, Error: res.Err.Error()})
			return
		}
		d.logger.Info("worker completed", "worker", id, "duration", time.Since(start),
			"tool_failures", len(res.Response.ToolFailures))
		d.publish(ctx, domain.EventWorkerCompleted, step.Task.SessionID, domain.WorkerEventPayload{WorkerID: id, Stage: stage})
	}()

	resp, err := step.Worker.Handle(ctx, step.Task, step.Context)
	switch {
	case err != nil:
		res.Err = asOracleUnavailable(id, err)
	case resp == nil:
		res.Err = domain.NewDomainError("Dispatcher.Run", domain.ErrOracleUnavailable, fmt.Sprintf("worker %s returned no response", id))
	default:
		if resp.WorkerID == "" {
			resp.WorkerID = id
		}
		res.Response = resp
	}
	return res
}

// asOracleUnavailable maps deadline expiry onto ErrOracleUnavailable so that
// per-worker and turn timeouts surface the same way.
func asOracleUnavailable(id string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrOracleUnavailable) {
		return fmt.Errorf("%w: worker %s: %w: %w", domain.ErrOracleUnavailable, id, domain.ErrTimeout, err)
	}
	return err
}

func (d *Dispatcher) publish(ctx context.Context, typ domain.EventType, sessionID string, payload any) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(ctx, domain.NewEvent(typ, sessionID, payload))
}
