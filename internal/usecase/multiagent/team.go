// Package multiagent implements the orchestrator: it routes each utterance
// to the team's workers, runs them in dependency stages and holds
// document-producing output behind confirmation gates.
package multiagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/tracer"
	"github.com/saurav-sabu/RepoScribe/internal/team"
	"github.com/saurav-sabu/RepoScribe/internal/usecase"
)

const (
	defaultTurnTimeout   = 5 * time.Minute
	defaultWorkerTimeout = 120 * time.Second
)

// TeamDeps holds injected dependencies for the orchestrator.
type TeamDeps struct {
	Definition *team.Definition
	Factory    WorkerFactory
	Sessions   domain.SessionStore
	Workspace  *Workspace      // optional; verifies loads and is cleaned on reset
	Bus        domain.EventBus // optional
	Logger     *slog.Logger

	TurnTimeout           time.Duration
	WorkerTimeout         time.Duration
	CleanWorkspaceOnReset bool
}

// runtime is everything derived from one team definition.
type runtime struct {
	def      *team.Definition
	registry *Registry
	router   *Router
}

// Team is the orchestrator. It is safe for concurrent use; turns of the
// same session are serialized, different sessions run independently.
type Team struct {
	deps     TeamDeps
	locker   *usecase.SessionLocker
	dispatch *Dispatcher

	mu sync.RWMutex
	rt *runtime

	statesMu sync.Mutex
	states   map[string]*sessionState
}

// NewTeam builds the registry and router for deps.Definition.
func NewTeam(deps TeamDeps) (*Team, error) {
	if deps.Definition == nil || deps.Factory == nil || deps.Sessions == nil {
		return nil, domain.NewDomainError("NewTeam", domain.ErrInvalidInput, "definition, factory and session store are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.TurnTimeout <= 0 {
		deps.TurnTimeout = defaultTurnTimeout
	}
	if deps.WorkerTimeout <= 0 {
		deps.WorkerTimeout = defaultWorkerTimeout
	}

	t := &Team{
		deps:     deps,
		locker:   usecase.NewSessionLocker(),
		dispatch: NewDispatcher(deps.WorkerTimeout, deps.Bus, deps.Logger),
		states:   make(map[string]*sessionState),
	}
	rt, err := t.build(deps.Definition)
	if err != nil {
		return nil, err
	}
	t.rt = rt
	return t, nil
}

func (t *Team) build(def *team.Definition) (*runtime, error) {
	reg, err := NewRegistry(def, t.deps.Factory, t.deps.Logger)
	if err != nil {
		return nil, err
	}
	return &runtime{def: def, registry: reg, router: NewRouter(def.Intents)}, nil
}

func (t *Team) runtime() *runtime {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rt
}

// Reload swaps in a new team definition. Turns in flight finish with the
// old one; session state is kept.
func (t *Team) Reload(def *team.Definition) error {
	rt, err := t.build(def)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.rt = rt
	t.mu.Unlock()

	t.deps.Logger.Info("team reloaded", "name", def.Name, "workers", len(def.Workers), "intents", len(def.Intents))
	t.publish(context.Background(), domain.EventTeamReloaded, "", map[string]any{"name": def.Name, "workers": len(def.Workers)})
	return nil
}

// Workers returns the worker specs of the current team.
func (t *Team) Workers() []domain.WorkerSpec { return t.runtime().registry.Specs() }

// Definition returns the current team definition.
func (t *Team) Definition() *team.Definition { return t.runtime().def }

func (t *Team) session(id string) *sessionState {
	t.statesMu.Lock()
	defer t.statesMu.Unlock()
	st, ok := t.states[id]
	if !ok {
		st = newSessionState()
		t.states[id] = st
	}
	return st
}

// Snapshot returns the orchestration state of a session.
func (t *Team) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	unlock, err := t.locker.Lock(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()
	return t.session(sessionID).snapshot(sessionID), nil
}

// History returns the stored turns of a session.
func (t *Team) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	return t.deps.Sessions.Read(ctx, sessionID)
}

// Reset clears a session's history and orchestration state.
func (t *Team) Reset(ctx context.Context, sessionID string) error {
	return t.reset(ctx, sessionID, t.deps.CleanWorkspaceOnReset)
}

func (t *Team) reset(ctx context.Context, sessionID string, cleanWorkspace bool) error {
	unlock, err := t.locker.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := t.deps.Sessions.Reset(ctx, sessionID); err != nil {
		return domain.WrapOp("Team.Reset", err)
	}
	t.statesMu.Lock()
	delete(t.states, sessionID)
	t.statesMu.Unlock()

	if cleanWorkspace && t.deps.Workspace != nil {
		if err := t.deps.Workspace.Clean(); err != nil {
			return domain.WrapOp("Team.Reset", err)
		}
	}
	t.deps.Logger.Info("session reset", "session", sessionID)
	t.publish(ctx, domain.EventSessionReset, sessionID, nil)
	return nil
}

// ReapStale resets every session idle for longer than maxAge and returns
// the ids it reset. The workspace is left alone.
func (t *Team) ReapStale(ctx context.Context, maxAge time.Duration) ([]string, error) {
	stale, err := usecase.StaleSessions(ctx, t.deps.Sessions, maxAge, time.Now())
	if err != nil {
		return nil, err
	}
	var (
		reaped []string
		errs   []error
	)
	for _, id := range stale {
		if err := t.reset(ctx, id, false); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			continue
		}
		reaped = append(reaped, id)
	}
	return reaped, errors.Join(errs...)
}

// Handle turns one utterance into one reply. Turn-level failures
// (ambiguous requests, loader failure, timeouts) are reported inside the
// reply; the error is reserved for requests that could not start.
func (t *Team) Handle(ctx context.Context, sessionID, utterance string) (*Reply, error) {
	utterance = strings.TrimSpace(utterance)
	if sessionID == "" {
		return nil, domain.NewDomainError("Team.Handle", domain.ErrInvalidInput, "session id is required")
	}
	if utterance == "" {
		return nil, domain.NewDomainError("Team.Handle", domain.ErrInvalidInput, "utterance is empty")
	}

	unlock, err := t.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "team.handle",
		trace.WithAttributes(tracer.StringAttr("session.id", sessionID)),
	)
	defer span.End()

	turnCtx, cancel := context.WithTimeout(ctx, t.deps.TurnTimeout)
	defer cancel()

	tr := &turn{
		team:      t,
		rt:        t.runtime(),
		st:        t.session(sessionID),
		sessionID: sessionID,
		text:      utterance,
		reply:     &Reply{SessionID: sessionID},
	}
	if tr.st.state == domain.StateError {
		tr.setState(ctx, domain.StateIdle)
	}
	t.publish(ctx, domain.EventTurnStarted, sessionID, nil)

	tr.run(turnCtx)
	if errors.Is(turnCtx.Err(), context.DeadlineExceeded) && tr.reply.State != domain.StateError {
		tr.fail(domain.NewDomainError("Team.Handle", fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, domain.ErrTimeout),
			fmt.Sprintf("turn exceeded %s", t.deps.TurnTimeout)))
	}
	tr.finish(ctx)

	if tr.reply.Err != nil {
		tracer.RecordError(span, tr.reply.Err)
	} else {
		tracer.SetOK(span)
	}

	// The assistant turn stores Content only, so gated proposals never reach
	// a worker's memory before approval.
	persistCtx := context.WithoutCancel(ctx)
	for _, rec := range []domain.Turn{
		domain.NewTurn(domain.SpeakerUser, utterance),
		domain.NewTurn(domain.SpeakerAssistant, tr.reply.Content),
	} {
		if err := t.deps.Sessions.Append(persistCtx, sessionID, rec); err != nil {
			t.deps.Logger.Error("session append failed", "session", sessionID, "error", err)
			return tr.reply, domain.WrapOp("Team.Handle", err)
		}
	}

	t.publish(ctx, domain.EventTurnCompleted, sessionID, map[string]any{"state": tr.reply.State})
	return tr.reply, nil
}

func (t *Team) publish(ctx context.Context, typ domain.EventType, sessionID string, payload any) {
	if t.deps.Bus == nil {
		return
	}
	t.deps.Bus.Publish(ctx, domain.NewEvent(typ, sessionID, payload))
}

// turn carries the working state of one Handle call.
type turn struct {
	team      *Team
	rt        *runtime
	st        *sessionState
	sessionID string
	text      string
	reply     *Reply
	stage     int

	dispatched int
	succeeded  int
}

func (tr *turn) logger() *slog.Logger { return tr.team.deps.Logger }

func (tr *turn) setState(ctx context.Context, s domain.TeamState) {
	if tr.st.state == s {
		return
	}
	tr.st.state = s
	tr.team.publish(ctx, domain.EventStateChanged, tr.sessionID, map[string]any{"state": s})
}

func (tr *turn) run(ctx context.Context) {
	if len(tr.st.openGates()) > 0 && tr.interpret(ctx) {
		return
	}
	tr.route(ctx)
}

// interpret closes the open gates according to the user's verdict. It
// returns false when the utterance must be routed as a new request.
func (tr *turn) interpret(ctx context.Context) bool {
	gates := tr.st.openGates()
	if url := ExtractRepoURL(tr.text); url != "" && !SameRepository(url, tr.st.repo.URL) {
		names := make([]string, 0, len(gates))
		for _, g := range gates {
			tr.closeGate(ctx, g, domain.GateRejected)
			names = append(names, tr.rt.registry.Name(g.WorkerID))
		}
		tr.reply.Notes = append(tr.reply.Notes, fmt.Sprintf(
			"Dropped the pending proposal from %s because the repository changed.", strings.Join(names, ", ")))
		return false
	}

	verdict := InterpretConfirmation(tr.text)
	tr.logger().Debug("confirmation verdict", "session", tr.sessionID, "verdict", verdict, "gates", len(gates))

	switch verdict {
	case VerdictApprove:
		for _, g := range gates {
			tr.closeGate(ctx, g, domain.GateApproved)
			tr.st.confirm(g.WorkerID, g.Proposal)
			tr.addSection(g.WorkerID, g.Proposal)
		}
		tr.resumeDeferred(ctx)
		return true

	case VerdictReject:
		names := make([]string, 0, len(gates))
		for _, g := range gates {
			tr.closeGate(ctx, g, domain.GateRejected)
			names = append(names, tr.rt.registry.Name(g.WorkerID))
		}
		tr.reply.Notes = append(tr.reply.Notes, fmt.Sprintf("Discarded the proposal from %s.", strings.Join(names, ", ")))
		return true

	case VerdictUnclear:
		tr.reply.Notes = append(tr.reply.Notes,
			"I couldn't tell whether that approves the pending proposal, so it is still waiting.")
		return true

	default:
		gated := make(map[string]bool, len(gates))
		for _, g := range gates {
			tr.closeGate(ctx, g, domain.GateAmended)
			gated[g.WorkerID] = true
		}
		if m, ok := tr.rt.router.Classify(tr.text); ok && !gated[m.Intent.Worker] {
			return false
		}

		var steps []Step
		for _, g := range gates {
			w, err := tr.rt.registry.Worker(g.WorkerID)
			if err != nil {
				tr.addFailure(g.WorkerID, err)
				continue
			}
			task := g.Task
			task.Amendment = tr.text
			task.Previous = g.Proposal
			steps = append(steps, tr.step(w, task))
		}
		tr.reply.Decision = &domain.RoutingDecision{
			Stages:    []domain.Stage{stepIDs(steps)},
			Rationale: "amendment to pending proposals",
		}
		tr.runSteps(ctx, steps)
		return true
	}
}

func (tr *turn) closeGate(ctx context.Context, g *domain.ConfirmationGate, state domain.GateState) {
	amendment := ""
	if state == domain.GateAmended {
		amendment = tr.text
	}
	if err := g.Close(state, amendment); err != nil {
		tr.logger().Warn("gate close failed", "gate", g.ID, "error", err)
		return
	}
	tr.team.publish(ctx, domain.EventGateClosed, tr.sessionID,
		domain.GateEventPayload{GateID: g.ID, WorkerID: g.WorkerID, State: state})
}

// resumeDeferred runs deferred steps whose prerequisites are now confirmed.
func (tr *turn) resumeDeferred(ctx context.Context) {
	var ready []deferredStep
	var keep []deferredStep
	for _, d := range tr.st.deferred {
		spec, ok := tr.rt.registry.Spec(d.WorkerID)
		switch {
		case !ok:
			tr.logger().Warn("dropping deferred step for unknown worker", "worker", d.WorkerID)
		case tr.prerequisitesConfirmed(spec):
			ready = append(ready, d)
		default:
			keep = append(keep, d)
		}
	}
	tr.st.deferred = keep
	if len(ready) == 0 {
		return
	}

	tasks := make(map[string]domain.Task, len(ready))
	ids := make([]string, 0, len(ready))
	for _, d := range ready {
		tasks[d.WorkerID] = d.Task
		ids = append(ids, d.WorkerID)
	}
	stages := tr.layer(ids)
	rationale := "resuming steps deferred until confirmation"
	tr.verifyCheckout(ctx)
	if loader := tr.rt.registry.Loader(); loader != "" && !tr.st.repo.Loaded && tr.st.repo.URL != "" && tr.needRepository(ids) {
		stages = append([]domain.Stage{{loader}}, stages...)
		tasks[loader] = tr.loadTask()
		rationale += "; repository not loaded"
	}
	tr.reply.Decision = &domain.RoutingDecision{Stages: stages, Rationale: rationale}
	tr.execute(ctx, stages, func(id string) domain.Task { return tasks[id] })
}

func (tr *turn) needRepository(ids []string) bool {
	for _, id := range ids {
		if spec, _ := tr.rt.registry.Spec(id); spec.NeedsRepository {
			return true
		}
	}
	return false
}

func (tr *turn) loadTask() domain.Task {
	return domain.Task{
		SessionID: tr.sessionID,
		Text:      fmt.Sprintf("Load the repository %s into the workspace and list its top-level contents.", tr.st.repo.URL),
	}
}

func (tr *turn) prerequisitesConfirmed(spec domain.WorkerSpec) bool {
	for _, p := range spec.Prerequisites {
		if !tr.st.isConfirmed(p) {
			return false
		}
	}
	return true
}

func (tr *turn) route(ctx context.Context) {
	tr.setState(ctx, domain.StateRouting)

	url := ExtractRepoURL(tr.text)
	if url != "" && tr.st.setRepository(url) {
		tr.logger().Info("repository set", "session", tr.sessionID, "url", url)
	}
	tr.verifyCheckout(ctx)

	reg := tr.rt.registry
	var target, category, rationale string
	if m, ok := tr.rt.router.Classify(tr.text); ok {
		target, category = m.Intent.Worker, m.Intent.Category
		rationale = fmt.Sprintf("matched %q (%d words) for %s", m.Phrase, m.Score, category)
	} else {
		switch {
		case url != "" && !tr.st.repo.Loaded && reg.Loader() != "":
			target, category, rationale = reg.Loader(), "load", "repository URL without a specific question"
		case len(tr.st.confirmed) > 0:
			tr.direct(ctx)
			return
		default:
			tr.ambiguous()
			return
		}
	}

	if _, ok := reg.Spec(target); !ok {
		tr.fail(domain.NewDomainError("Team.Route", domain.ErrWorkerNotFound, target))
		return
	}

	ids := tr.closure(target)
	needsRepo := tr.needRepository(ids)

	isLoader := target == reg.Loader()
	if (isLoader || needsRepo && !tr.st.repo.Loaded) && tr.st.repo.URL == "" {
		tr.reply.Code = domain.CodeRoutingAmbiguous
		tr.reply.Notes = append(tr.reply.Notes,
			"Which repository should I look at? Share its URL, for example `https://github.com/owner/repo`.")
		return
	}

	var stages []domain.Stage
	if needsRepo && !tr.st.repo.Loaded {
		if reg.Loader() == "" {
			tr.fail(domain.NewDomainError("Team.Route", domain.ErrWorkerNotFound, "the team has no loader"))
			return
		}
		stages = append(stages, domain.Stage{reg.Loader()})
		rationale += "; repository not loaded yet"
	}
	if isLoader {
		stages = []domain.Stage{{target}}
	} else {
		stages = append(stages, tr.layer(ids)...)
	}

	decision := &domain.RoutingDecision{Category: category, Stages: stages, Rationale: rationale}
	tr.reply.Decision = decision
	tr.logger().Info("routed", "session", tr.sessionID, "category", category, "stages", len(stages), "rationale", rationale)

	tr.execute(ctx, stages, func(id string) domain.Task {
		if id == reg.Loader() {
			return tr.loadTask()
		}
		return domain.Task{SessionID: tr.sessionID, Text: tr.text}
	})
}

// closure returns target and its transitive prerequisites that are not
// confirmed yet, prerequisites first.
func (tr *turn) closure(target string) []string {
	seen := make(map[string]bool)
	var order []string
	var visit func(id string)
	visit = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		spec, _ := tr.rt.registry.Spec(id)
		for _, p := range spec.Prerequisites {
			if !tr.st.isConfirmed(p) {
				visit(p)
			}
		}
		order = append(order, id)
	}
	visit(target)
	return order
}

// layer groups ids into stages so that every worker runs after the
// prerequisites it shares the set with. ids must be prerequisites-first.
func (tr *turn) layer(ids []string) []domain.Stage {
	in := make(map[string]bool, len(ids))
	for _, id := range ids {
		in[id] = true
	}
	level := make(map[string]int, len(ids))
	var stages []domain.Stage
	for _, id := range ids {
		spec, _ := tr.rt.registry.Spec(id)
		l := 0
		for _, p := range spec.Prerequisites {
			if in[p] && level[p]+1 > l {
				l = level[p] + 1
			}
		}
		level[id] = l
		for len(stages) <= l {
			stages = append(stages, nil)
		}
		stages[l] = append(stages[l], id)
	}
	return stages
}

func (tr *turn) execute(ctx context.Context, stages []domain.Stage, taskFor func(id string) domain.Task) {
	reg := tr.rt.registry
	for _, stage := range stages {
		if ctx.Err() != nil {
			return
		}
		var steps []Step
		for _, id := range stage {
			spec, _ := reg.Spec(id)
			w, err := reg.Worker(id)
			if err != nil {
				tr.addFailure(id, err)
				continue
			}

			if blocked, pending := tr.blockedBy(spec); pending {
				tr.st.deferStep(deferredStep{WorkerID: id, Task: taskFor(id)})
				tr.reply.Deferred = append(tr.reply.Deferred, reg.Name(id))
				continue
			} else if blocked != "" {
				tr.addFailure(id, domain.NewDomainError("Team.Dispatch", domain.ErrOracleUnavailable,
					fmt.Sprintf("prerequisite %s did not complete", reg.Name(blocked))))
				continue
			}
			steps = append(steps, tr.step(w, taskFor(id)))
		}
		tr.runSteps(ctx, steps)
		if tr.reply.State == domain.StateError {
			return
		}
	}
}

// blockedBy returns the first prerequisite of spec that is not confirmed,
// and whether the missing output is waiting on a gate.
func (tr *turn) blockedBy(spec domain.WorkerSpec) (string, bool) {
	for _, p := range spec.Prerequisites {
		if tr.st.isConfirmed(p) {
			continue
		}
		if tr.st.hasOpenGate(p) {
			return p, true
		}
		return p, false
	}
	return "", false
}

func (tr *turn) step(w domain.Worker, task domain.Task) Step {
	spec := w.Spec()
	return Step{
		Worker: w,
		Task:   task,
		Context: domain.WorkerContext{
			Repository: tr.st.repo,
			Confirmed:  tr.st.confirmedFor(spec.Prerequisites),
		},
	}
}

func stepIDs(steps []Step) domain.Stage {
	ids := make(domain.Stage, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.Worker.Spec().ID)
	}
	return ids
}

func (tr *turn) runSteps(ctx context.Context, steps []Step) {
	if len(steps) == 0 {
		return
	}
	tr.setState(ctx, domain.StateDispatching)
	results := tr.team.dispatch.RunStage(ctx, tr.stage, steps)
	tr.stage++
	for i, res := range results {
		tr.absorb(ctx, steps[i], res)
		if tr.reply.State == domain.StateError {
			return
		}
	}
}

func (tr *turn) absorb(ctx context.Context, step Step, res StepResult) {
	reg := tr.rt.registry
	id := res.WorkerID
	spec, _ := reg.Spec(id)
	tr.dispatched++
	tr.reply.addWorker(reg.Name(id))

	if res.Err != nil {
		tr.addFailure(id, res.Err)
		if id == reg.Loader() {
			tr.fail(fmt.Errorf("loading %s failed: %w", tr.st.repo.URL, res.Err))
		}
		return
	}
	resp := res.Response

	if id == reg.Loader() {
		if !tr.checkoutPresent(ctx, resp) {
			err := domain.NewExternalToolError("git", "clone",
				"the loader finished without a checkout of "+tr.st.repo.URL, nil)
			tr.addFailure(id, err)
			tr.fail(fmt.Errorf("loading %s failed: %w", tr.st.repo.URL, err))
			return
		}
		tr.st.repo.Loaded = true
		if ws := tr.team.deps.Workspace; ws != nil {
			tr.st.repo.LocalPath = ws.Root()
		}
	}
	tr.succeeded++

	if spec.RequiresConfirmation || resp.RequiresConfirmation {
		gate := &domain.ConfirmationGate{
			ID:        uuid.NewString(),
			SessionID: tr.sessionID,
			WorkerID:  id,
			Task:      step.Task,
			Proposal:  resp.Content,
			State:     domain.GatePending,
			OpenedAt:  time.Now(),
		}
		tr.st.gates = append(tr.st.openGates(), gate)
		tr.team.publish(ctx, domain.EventGateOpened, tr.sessionID,
			domain.GateEventPayload{GateID: gate.ID, WorkerID: id, State: gate.State})
		return
	}
	tr.st.confirm(id, resp.Content)
	tr.addSection(id, resp.Content)
}

func (tr *turn) checkoutPresent(ctx context.Context, resp *domain.Response) bool {
	if ws := tr.team.deps.Workspace; ws != nil {
		return ws.Holds(ctx, tr.st.repo.URL)
	}
	return !resp.HasToolFailures()
}

// verifyCheckout drops the loaded flag when the shared workspace no longer
// holds the session's repository, so the loader runs again.
func (tr *turn) verifyCheckout(ctx context.Context) {
	ws := tr.team.deps.Workspace
	if ws == nil || !tr.st.repo.Loaded || ws.Holds(ctx, tr.st.repo.URL) {
		return
	}
	tr.logger().Info("workspace no longer holds the session repository",
		"session", tr.sessionID, "url", tr.st.repo.URL)
	tr.st.repo.Loaded = false
	tr.st.repo.LocalPath = ""
}

func (tr *turn) direct(ctx context.Context) {
	tr.reply.Direct = true
	tr.reply.Decision = &domain.RoutingDecision{Direct: true, Rationale: "no intent matched; answering from confirmed context"}
	step := Step{
		Worker: tr.rt.registry.Oracle(),
		Task:   domain.Task{SessionID: tr.sessionID, Text: tr.text},
		Context: domain.WorkerContext{
			Repository: tr.st.repo,
			Confirmed:  append([]domain.ConfirmedOutput(nil), tr.st.confirmed...),
		},
	}
	tr.setState(ctx, domain.StateDispatching)
	res := tr.team.dispatch.RunStage(ctx, tr.stage, []Step{step})[0]
	tr.stage++
	tr.reply.addWorker(tr.rt.registry.Name(OracleWorkerID))
	if res.Err != nil {
		tr.fail(res.Err)
		return
	}
	tr.addSection(OracleWorkerID, res.Response.Content)
}

func (tr *turn) ambiguous() {
	err := domain.NewDomainError("Team.Route", domain.ErrRoutingAmbiguous, "")
	tr.reply.Code = domain.ErrorCodeOf(err)
	tr.reply.Err = err

	var cats []string
	for _, in := range tr.rt.def.Intents {
		cats = append(cats, in.Category)
	}
	tr.reply.Notes = append(tr.reply.Notes, fmt.Sprintf(
		"I'm not sure which specialist should handle that. Could you rephrase? I can help with: %s.",
		strings.Join(cats, ", ")))
}

func (tr *turn) addSection(workerID, content string) {
	tr.reply.Sections = append(tr.reply.Sections, Section{
		WorkerID: workerID,
		Name:     tr.rt.registry.Name(workerID),
		Content:  content,
	})
}

func (tr *turn) addFailure(workerID string, err error) {
	tr.reply.Failures = append(tr.reply.Failures, Failure{
		WorkerID: workerID,
		Name:     tr.rt.registry.Name(workerID),
		Code:     domain.ErrorCodeOf(err),
		Message:  err.Error(),
	})
}

// fail ends the turn in the error state.
func (tr *turn) fail(err error) {
	tr.reply.State = domain.StateError
	tr.reply.Err = err
	tr.reply.Code = domain.ErrorCodeOf(err)
}

func (tr *turn) finish(ctx context.Context) {
	if tr.reply.State != domain.StateError && tr.dispatched > 0 && tr.succeeded == 0 {
		tr.fail(domain.NewDomainError("Team.Handle", domain.ErrOracleUnavailable, "every dispatched worker failed"))
	}

	switch {
	case tr.reply.State == domain.StateError:
		tr.setState(ctx, domain.StateError)
		tr.logger().Warn("turn failed", "session", tr.sessionID, "error", tr.reply.Err)
	case len(tr.st.openGates()) > 0:
		tr.setState(ctx, domain.StateAwaitingConfirmation)
	default:
		tr.setState(ctx, domain.StateIdle)
	}
	tr.reply.State = tr.st.state

	for _, g := range tr.st.openGates() {
		tr.reply.Pending = append(tr.reply.Pending, Proposal{
			GateID:   g.ID,
			WorkerID: g.WorkerID,
			Name:     tr.rt.registry.Name(g.WorkerID),
			Content:  g.Proposal,
		})
	}
	tr.reply.compose()
}
