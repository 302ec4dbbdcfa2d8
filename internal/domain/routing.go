package domain

// Intent is one row of the routing table.
type Intent struct {
	Category string   `json:"category" yaml:"category"`
	Worker   string   `json:"worker" yaml:"worker"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	// Priority breaks ties between equally specific matches; higher wins.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Stage is a set of workers with no data dependency between them.
type Stage []string

// RoutingDecision is the orchestrator's plan for one utterance. Stages run
// in order; the workers of one stage run in parallel.
type RoutingDecision struct {
	Category  string  `json:"category,omitempty"`
	Stages    []Stage `json:"stages,omitempty"`
	Rationale string  `json:"rationale"`
	// Direct is set when the reply is resolved from confirmed context.
	Direct bool `json:"direct,omitempty"`
	// Deferred lists workers whose prerequisites are still awaiting
	// confirmation; they run once the gates are approved.
	Deferred []string `json:"deferred,omitempty"`
}

// Targets returns every worker id of every stage in order.
func (d RoutingDecision) Targets() []string {
	var out []string
	for _, s := range d.Stages {
		out = append(out, s...)
	}
	return out
}
