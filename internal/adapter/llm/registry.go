package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// Registry holds named LLM providers and the team default.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]domain.LLMProvider
	defaultName string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.LLMProvider),
	}
}

// Register adds a provider. Returns error if name already registered.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrDuplicate, fmt.Sprintf("provider %q", name))
	}
	r.providers[name] = provider
	return nil
}

// Replace registers provider under name, overwriting any previous entry.
// Used to swap in the failover-wrapped default.
func (r *Registry) Replace(name string, provider domain.LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// SetDefault names the provider Resolve returns for an empty name.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return domain.NewDomainError("Registry.SetDefault", domain.ErrProviderNotFound, name)
	}
	r.defaultName = name
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// Resolve returns the named provider, or the default when name is empty.
func (r *Registry) Resolve(name string) (domain.LLMProvider, error) {
	if name == "" || name == "default" {
		r.mu.RLock()
		name = r.defaultName
		r.mu.RUnlock()
		if name == "" {
			return nil, domain.NewDomainError("Registry.Resolve", domain.ErrProviderNotFound, "no default provider configured")
		}
	}
	return r.Get(name)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
