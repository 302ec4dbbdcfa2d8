// Package team loads and validates the worker team definition: the workers,
// their capabilities and the intent routing table.
package team

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

//go:embed default_team.yaml
var defaultTeam []byte

// Definition is a complete team: the orchestrator persona, its workers and
// the intent table that routes utterances to them.
type Definition struct {
	Name         string              `yaml:"name"`
	Role         string              `yaml:"role"`
	Description  string              `yaml:"description"`
	Instructions []string            `yaml:"instructions"`
	Loader       string              `yaml:"loader"`
	Workers      []domain.WorkerSpec `yaml:"workers"`
	Intents      []domain.Intent     `yaml:"intents"`
}

// Default returns the built-in team.
func Default() (*Definition, error) {
	return Parse(defaultTeam)
}

// DefaultYAML returns the raw built-in team file.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultTeam))
	copy(out, defaultTeam)
	return out
}

// Load reads a team file; an empty path returns the built-in team.
func Load(path string) (*Definition, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read team file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("team file %s: %w", path, err)
	}
	return def, nil
}

// Parse decodes and validates a team definition.
func Parse(data []byte) (*Definition, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, domain.NewDomainError("team.Parse", domain.ErrInvalidInput, err.Error())
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, domain.NewDomainError("team.Parse", domain.ErrInvalidInput, err.Error())
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Worker returns the spec with the given id.
func (d *Definition) Worker(id string) (domain.WorkerSpec, bool) {
	for _, w := range d.Workers {
		if w.ID == id {
			return w, true
		}
	}
	return domain.WorkerSpec{}, false
}

// Validate checks the cross references a schema cannot express: unique
// ids, known workers in intents and prerequisites, and acyclic prerequisites.
func (d *Definition) Validate() error {
	var problems []string
	ids := make(map[string]bool, len(d.Workers))
	for _, w := range d.Workers {
		if ids[w.ID] {
			problems = append(problems, fmt.Sprintf("duplicate worker id %q", w.ID))
		}
		ids[w.ID] = true
	}
	for _, w := range d.Workers {
		for _, p := range w.Prerequisites {
			switch {
			case p == w.ID:
				problems = append(problems, fmt.Sprintf("worker %q lists itself as a prerequisite", w.ID))
			case !ids[p]:
				problems = append(problems, fmt.Sprintf("worker %q: unknown prerequisite %q", w.ID, p))
			}
		}
	}
	if d.Loader != "" && !ids[d.Loader] {
		problems = append(problems, fmt.Sprintf("unknown loader worker %q", d.Loader))
	}
	if d.Loader == "" {
		for _, w := range d.Workers {
			if w.NeedsRepository {
				problems = append(problems, fmt.Sprintf("worker %q needs a repository but no loader is set", w.ID))
				break
			}
		}
	}

	categories := make(map[string]bool, len(d.Intents))
	for _, in := range d.Intents {
		if categories[in.Category] {
			problems = append(problems, fmt.Sprintf("duplicate intent category %q", in.Category))
		}
		categories[in.Category] = true
		if !ids[in.Worker] {
			problems = append(problems, fmt.Sprintf("intent %q: unknown worker %q", in.Category, in.Worker))
		}
	}

	if cycle := d.prerequisiteCycle(); cycle != "" {
		problems = append(problems, "prerequisite cycle: "+cycle)
	}

	if len(problems) > 0 {
		return domain.NewDomainError("team.Validate", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

func (d *Definition) prerequisiteCycle() string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(d.Workers))
	prereqs := make(map[string][]string, len(d.Workers))
	for _, w := range d.Workers {
		prereqs[w.ID] = w.Prerequisites
	}

	var path []string
	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			path = append(path, id)
			return true
		case done:
			return false
		}
		state[id] = visiting
		path = append(path, id)
		for _, p := range prereqs[id] {
			if visit(p) {
				return true
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return false
	}
	for _, w := range d.Workers {
		if visit(w.ID) {
			return strings.Join(path, " -> ")
		}
	}
	return ""
}
