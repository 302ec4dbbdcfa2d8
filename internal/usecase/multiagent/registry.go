package multiagent

import (
	"fmt"
	"log/slog"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/team"
)

// OracleWorkerID identifies the team-level worker that answers directly
// from confirmed context.
const OracleWorkerID = "team_oracle"

// WorkerFactory builds the runnable worker for a spec.
type WorkerFactory func(spec domain.WorkerSpec) (domain.Worker, error)

// Registry holds the workers of one team definition. It is immutable once
// built; a reload builds a new registry.
type Registry struct {
	workers map[string]domain.Worker
	specs   map[string]domain.WorkerSpec
	order   []string
	loader  string
	oracle  domain.Worker
}

// NewRegistry builds every worker of def, plus the team oracle, through factory.
func NewRegistry(def *team.Definition, factory WorkerFactory, logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		workers: make(map[string]domain.Worker, len(def.Workers)),
		specs:   make(map[string]domain.WorkerSpec, len(def.Workers)),
		loader:  def.Loader,
	}
	for _, spec := range def.Workers {
		if _, exists := r.workers[spec.ID]; exists {
			return nil, domain.NewDomainError("Registry.Build", domain.ErrDuplicate, fmt.Sprintf("worker %q", spec.ID))
		}
		w, err := factory(spec)
		if err != nil {
			return nil, fmt.Errorf("build worker %s: %w", spec.ID, err)
		}
		r.workers[spec.ID] = w
		r.specs[spec.ID] = spec
		r.order = append(r.order, spec.ID)
		logger.Debug("worker registered", "worker", spec.ID, "tools", spec.ToolNames())
	}

	oracle, err := factory(OracleSpec(def))
	if err != nil {
		return nil, fmt.Errorf("build team oracle: %w", err)
	}
	r.oracle = oracle
	return r, nil
}

// OracleSpec is the persona used for direct answers: the team's own role
// and instructions, no tools and no gate.
func OracleSpec(def *team.Definition) domain.WorkerSpec {
	instructions := append([]string{}, def.Instructions...)
	instructions = append(instructions,
		"Answer only from the confirmed analysis below. If it does not cover the question, say which specialist should be asked instead.")
	return domain.WorkerSpec{
		ID:           OracleWorkerID,
		Name:         def.Name,
		Role:         def.Role,
		Description:  def.Description,
		Instructions: instructions,
	}
}

// Worker returns the worker with the given id.
func (r *Registry) Worker(id string) (domain.Worker, error) {
	w, ok := r.workers[id]
	if !ok {
		return nil, domain.NewDomainError("Registry.Worker", domain.ErrWorkerNotFound, id)
	}
	return w, nil
}

// Spec returns the spec of the worker with the given id.
func (r *Registry) Spec(id string) (domain.WorkerSpec, bool) {
	s, ok := r.specs[id]
	return s, ok
}

// Name returns the display name of a worker, falling back to its id.
func (r *Registry) Name(id string) string {
	if id == OracleWorkerID {
		return r.oracle.Spec().Name
	}
	if s, ok := r.specs[id]; ok && s.Name != "" {
		return s.Name
	}
	return id
}

// Specs returns every worker spec in declaration order.
func (r *Registry) Specs() []domain.WorkerSpec {
	out := make([]domain.WorkerSpec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.specs[id])
	}
	return out
}

// Loader returns the id of the worker that materializes the repository.
func (r *Registry) Loader() string { return r.loader }

// Oracle returns the team-level worker.
func (r *Registry) Oracle() domain.Worker { return r.oracle }
