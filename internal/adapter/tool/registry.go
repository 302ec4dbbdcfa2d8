package tool

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// Registry holds named tools.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]domain.Tool
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
// If logger is non-nil, tools are wrapped with schema validation on Register;
// compilation errors are logged and the tool is registered unwrapped.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
}

// Register adds a tool. Returns error if name already registered.
func (r *Registry) Register(t domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrDuplicate, fmt.Sprintf("tool %q", name))
	}

	if r.logger != nil {
		wrapped, err := WithSchemaValidation(t)
		if err != nil {
			r.logger.Warn("schema validation disabled for tool", "tool", name, "error", err)
		} else {
			t = wrapped
		}
	}

	r.tools[name] = t
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]domain.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Schemas returns all tool schemas for LLM function-calling.
func (r *Registry) Schemas() []domain.ToolSchema {
	tools := r.List()
	schemas := make([]domain.ToolSchema, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, t.Schema())
	}
	return schemas
}

// Scoped returns an executor exposing only the capabilities listed, each
// restricted to its operations. Unknown tools fail with ErrToolNotFound.
func (r *Registry) Scoped(caps []domain.Capability) (*ScopedExecutor, error) {
	s := &ScopedExecutor{tools: make(map[string]domain.Tool, len(caps))}
	for _, c := range caps {
		t, err := r.Get(c.Tool)
		if err != nil {
			return nil, err
		}
		restricted, err := Restrict(t, c.Operations...)
		if err != nil {
			return nil, err
		}
		s.tools[c.Tool] = restricted
		s.order = append(s.order, c.Tool)
	}
	return s, nil
}

// ScopedExecutor is the per-worker view of the registry.
type ScopedExecutor struct {
	tools map[string]domain.Tool
	order []string
}

// Get retrieves a tool visible to this scope.
func (s *ScopedExecutor) Get(name string) (domain.Tool, error) {
	t, ok := s.tools[name]
	if !ok {
		return nil, domain.NewDomainError("ScopedExecutor.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// Schemas returns the restricted schemas in capability order.
func (s *ScopedExecutor) Schemas() []domain.ToolSchema {
	out := make([]domain.ToolSchema, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name].Schema())
	}
	return out
}
