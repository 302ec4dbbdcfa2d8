package multiagent

import (
	"fmt"
	"strings"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// Section is one confirmed worker output included in a reply.
type Section struct {
	WorkerID string `json:"worker_id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
}

// Proposal is gated worker output awaiting the user's decision.
type Proposal struct {
	GateID   string `json:"gate_id"`
	WorkerID string `json:"worker_id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
}

// Failure is a worker that did not produce a usable answer this turn.
type Failure struct {
	WorkerID string           `json:"worker_id"`
	Name     string           `json:"name"`
	Code     domain.ErrorCode `json:"code"`
	Message  string           `json:"message"`
}

// Reply is the result of one turn. Content never contains gated output;
// proposals travel separately in Pending.
type Reply struct {
	SessionID string                  `json:"session_id"`
	State     domain.TeamState        `json:"state"`
	Content   string                  `json:"content"`
	Decision  *domain.RoutingDecision `json:"decision,omitempty"`
	Sections  []Section               `json:"sections,omitempty"`
	Pending   []Proposal              `json:"pending,omitempty"`
	Failures  []Failure               `json:"failures,omitempty"`
	Deferred  []string                `json:"deferred,omitempty"`
	Workers   []string                `json:"workers,omitempty"`
	Notes     []string                `json:"-"`
	Direct    bool                    `json:"direct,omitempty"`
	// Code is set when the turn ended in a clarification request or error.
	Code domain.ErrorCode `json:"code,omitempty"`
	Err  error            `json:"-"`
}

// AwaitingConfirmation reports whether the reply carries proposals.
func (r *Reply) AwaitingConfirmation() bool { return len(r.Pending) > 0 }

// Markdown renders the answer followed by the pending-confirmation block.
func (r *Reply) Markdown() string {
	if len(r.Pending) == 0 {
		return r.Content
	}
	var sb strings.Builder
	sb.WriteString(r.Content)
	sb.WriteString("\n\n---\n\n#### Pending confirmation\n")
	for _, p := range r.Pending {
		fmt.Fprintf(&sb, "\n##### %s\n\n%s\n", p.Name, strings.TrimSpace(p.Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// compose renders Content from the parts collected during the turn.
func (r *Reply) compose() {
	var parts []string

	if r.State == domain.StateError && r.Err != nil {
		parts = append(parts, fmt.Sprintf("**The request failed:** %s", r.Err.Error()))
	}

	switch {
	case len(r.Sections) == 1 && (r.Direct || len(r.Pending) == 0 && len(r.Failures) == 0):
		parts = append(parts, strings.TrimSpace(r.Sections[0].Content))
	default:
		for _, s := range r.Sections {
			parts = append(parts, fmt.Sprintf("### %s\n\n%s", s.Name, strings.TrimSpace(s.Content)))
		}
	}

	parts = append(parts, r.Notes...)

	if len(r.Failures) > 0 {
		var sb strings.Builder
		sb.WriteString("#### Could not complete")
		for _, f := range r.Failures {
			fmt.Fprintf(&sb, "\n- **%s** (`%s`): %s", f.Name, f.Code, f.Message)
		}
		parts = append(parts, sb.String())
	}

	if len(r.Deferred) > 0 {
		parts = append(parts, fmt.Sprintf("Waiting for your confirmation before running: %s.", strings.Join(r.Deferred, ", ")))
	}

	if len(r.Pending) > 0 {
		names := make([]string, 0, len(r.Pending))
		for _, p := range r.Pending {
			names = append(names, p.Name)
		}
		parts = append(parts, fmt.Sprintf(
			"**Please confirm:** %s %s awaiting your approval. Reply `yes` to approve, `no` to reject, or describe what to change.",
			strings.Join(names, ", "), plural(len(names), "is", "are")))
	}

	if len(r.Workers) > 0 {
		parts = append(parts, fmt.Sprintf("_Workers: %s_", strings.Join(r.Workers, ", ")))
	}

	r.Content = strings.Join(parts, "\n\n")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (r *Reply) addWorker(name string) {
	for _, w := range r.Workers {
		if w == name {
			return
		}
	}
	r.Workers = append(r.Workers, name)
}
