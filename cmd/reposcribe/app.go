package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/llm"
	"github.com/saurav-sabu/RepoScribe/internal/adapter/sessionstore"
	"github.com/saurav-sabu/RepoScribe/internal/adapter/tool"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
	"github.com/saurav-sabu/RepoScribe/internal/infra/logger"
	"github.com/saurav-sabu/RepoScribe/internal/infra/tracer"
	"github.com/saurav-sabu/RepoScribe/internal/security"
	"github.com/saurav-sabu/RepoScribe/internal/team"
	"github.com/saurav-sabu/RepoScribe/internal/usecase"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/eventbus"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/multiagent"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/scheduling"
)

const shutdownTimeout = 10 * time.Second

// app is the fully wired runtime shared by the chat and serve commands.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	bus   *eventbus.Bus
	store sessionstore.Store
	llms  *llm.Registry
	tools *tool.Registry
	team  *multiagent.Team

	closers []func(context.Context) error
}

// newApp builds every component in dependency order. On error, whatever
// was already opened is closed.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	// 1. Logger & tracer
	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return a, fmt.Errorf("logger: %w", err)
	}
	a.log = log
	a.onClose(func(context.Context) error { return closeLog() })

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return a, fmt.Errorf("tracer: %w", err)
	}
	a.onClose(shutdownTracer)

	// 2. Model oracles
	if a.llms, err = initLLM(cfg, log); err != nil {
		return a, fmt.Errorf("llm: %w", err)
	}

	// 3. Sandbox and tools
	sandbox, err := security.EnsureSandbox(cfg.Tools.SandboxRoot)
	if err != nil {
		return a, fmt.Errorf("sandbox: %w", err)
	}
	var git *tool.GitTool
	if a.tools, git, err = initTools(cfg.Tools, sandbox, log); err != nil {
		return a, fmt.Errorf("tools: %w", err)
	}

	// 4. Event bus
	a.bus = eventbus.New(log)
	a.onClose(func(context.Context) error { a.bus.Close(); return nil })

	// 5. Sessions
	if a.store, err = sessionstore.New(cfg.Sessions); err != nil {
		return a, fmt.Errorf("sessions: %w", err)
	}
	a.onClose(func(context.Context) error { return a.store.Close() })

	// 6. Team
	def, err := loadTeam(cfg.Team)
	if err != nil {
		return a, fmt.Errorf("team: %w", err)
	}
	a.team, err = multiagent.NewTeam(multiagent.TeamDeps{
		Definition:            def,
		Factory:               workerFactory(cfg, a.llms, a.tools, a.store, a.bus, log),
		Sessions:              a.store,
		Workspace:             multiagent.NewWorkspace(sandbox, git),
		Bus:                   a.bus,
		Logger:                log,
		TurnTimeout:           cfg.Team.TurnTimeout,
		WorkerTimeout:         cfg.Team.WorkerTimeout,
		CleanWorkspaceOnReset: cfg.Team.CleanWorkspaceOnReset,
	})
	if err != nil {
		return a, fmt.Errorf("team: %w", err)
	}
	return a, nil
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.log != nil {
			a.log.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}

// startBackground starts the team file watcher and the session reaper when
// they are configured. Both stop with ctx or Close.
func (a *app) startBackground(ctx context.Context) {
	if a.cfg.Team.Watch && a.cfg.Team.Definition != "" {
		w, err := team.NewWatcher(a.cfg.Team.Definition, func(def *team.Definition) {
			if err := a.team.Reload(def); err != nil {
				a.log.Error("team reload rejected", "error", err)
				return
			}
			a.log.Info("team reloaded", "team", def.Name, "workers", len(def.Workers))
		}, team.WithWatcherLogger(a.log))
		if err != nil {
			a.log.Warn("team hot reload disabled", "error", err)
		} else {
			go w.Run(ctx)
			a.onClose(func(context.Context) error { return w.Close() })
		}
	}

	if a.cfg.Sessions.MaxAge > 0 {
		s := scheduling.NewScheduler(a.log)
		s.RegisterAction(scheduling.ActionSessionReap, scheduling.ReapAction(a.team, a.cfg.Sessions.MaxAge, a.log))
		if err := s.AddTask(scheduling.ScheduledTask{
			Name:     "session-reap",
			Schedule: a.cfg.Sessions.ReapSchedule,
			Action:   scheduling.ActionSessionReap,
		}); err != nil {
			a.log.Warn("session reaping disabled", "error", err)
			return
		}
		_ = s.Start(ctx)
		a.onClose(func(context.Context) error { return s.Stop() })
	}
}

// modelName is the default provider's model, for display.
func (a *app) modelName() string {
	if p, ok := a.cfg.LLM.Provider(a.cfg.LLM.DefaultProvider); ok {
		return p.Model
	}
	return ""
}

func loadTeam(cfg config.TeamConfig) (*team.Definition, error) {
	if cfg.Definition == "" {
		return team.Default()
	}
	return team.Load(cfg.Definition)
}

// workerFactory builds an LLM worker for each spec, scoped to the tools and
// operations its capabilities name. The team oracle uses team.provider and
// team.model when set.
func workerFactory(cfg *config.Config, llms *llm.Registry, tools *tool.Registry, store domain.SessionStore, bus domain.EventBus, log *slog.Logger) multiagent.WorkerFactory {
	counter := usecase.NewTokenCounter(log)
	classifier := usecase.NewErrorClassifier()

	return func(spec domain.WorkerSpec) (domain.Worker, error) {
		providerName, model := spec.Provider, ""
		if spec.ID == multiagent.OracleWorkerID {
			providerName, model = cfg.Team.Provider, cfg.Team.Model
		}
		provider, err := llms.Resolve(providerName)
		if err != nil {
			return nil, fmt.Errorf("worker %s: %w", spec.ID, err)
		}

		deps := usecase.WorkerDeps{
			Spec:          spec,
			LLM:           provider,
			Sessions:      store,
			Context:       usecase.NewContextBuilder(cfg.Team.HistoryTokens, counter),
			Classifier:    classifier,
			Bus:           bus,
			Logger:        log.With("worker", spec.ID),
			Model:         model,
			MaxIterations: cfg.Team.MaxIterations,
		}
		if len(spec.Capabilities) > 0 {
			scoped, err := tools.Scoped(spec.Capabilities)
			if err != nil {
				return nil, fmt.Errorf("worker %s: %w", spec.ID, err)
			}
			deps.Tools = scoped
		}
		return usecase.NewLLMWorker(deps), nil
	}
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
