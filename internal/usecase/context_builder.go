package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// informationBoundary is appended to every worker prompt.
var informationBoundary = []string{
	"Use only facts you observed through your tools, the confirmed analysis below and this conversation.",
	"Output of other workers that the user has not confirmed is not available to you; do not assume it.",
	"When information is missing or uncertain, say so instead of guessing.",
	"If a tool call fails, report the failure; never pretend it succeeded.",
}

// ContextBuilder assembles the oracle conversation for one worker run.
type ContextBuilder struct {
	historyTokens int
	counter       *TokenCounter
}

// NewContextBuilder creates a builder that caps prior turns at
// historyTokens (<= 0 keeps every turn).
func NewContextBuilder(historyTokens int, counter *TokenCounter) *ContextBuilder {
	if counter == nil {
		counter = newEstimatingCounter()
	}
	return &ContextBuilder{historyTokens: historyTokens, counter: counter}
}

// Build returns system prompt + prior turns + the task message.
func (cb *ContextBuilder) Build(spec domain.WorkerSpec, wctx domain.WorkerContext, history []domain.Turn, task domain.Task) []domain.Message {
	now := time.Now()
	prior := HistoryMessages(history, cb.historyTokens, cb.counter)

	messages := make([]domain.Message, 0, len(prior)+2)
	messages = append(messages, domain.Message{
		Role:      domain.RoleSystem,
		Content:   SystemPrompt(spec, wctx),
		Timestamp: now,
	})
	messages = append(messages, prior...)
	messages = append(messages, domain.Message{
		Role:      domain.RoleUser,
		Content:   TaskPrompt(task),
		Timestamp: now,
	})
	return messages
}

// SystemPrompt renders a worker's identity, policy and the context the
// orchestrator passed in.
func SystemPrompt(spec domain.WorkerSpec, wctx domain.WorkerContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, the team's %s.\n", spec.Name, strings.ToLower(spec.Role))
	if spec.Description != "" {
		sb.WriteString(spec.Description)
		sb.WriteByte('\n')
	}

	if len(spec.Instructions) > 0 {
		sb.WriteString("\n## Instructions\n")
		writeBullets(&sb, spec.Instructions)
	}

	sb.WriteString("\n## Information boundary\n")
	writeBullets(&sb, informationBoundary)

	if wctx.Repository.URL != "" || wctx.Repository.LocalPath != "" {
		sb.WriteString("\n## Repository\n")
		if wctx.Repository.URL != "" {
			fmt.Fprintf(&sb, "- URL: %s\n", wctx.Repository.URL)
		}
		if wctx.Repository.LocalPath != "" {
			fmt.Fprintf(&sb, "- Workspace: %s\n", wctx.Repository.LocalPath)
		}
		if wctx.Repository.Loaded {
			sb.WriteString("- Status: cloned into the workspace; file paths are relative to it.\n")
		} else {
			sb.WriteString("- Status: not cloned yet.\n")
		}
	}

	if len(wctx.Confirmed) > 0 {
		sb.WriteString("\n## Confirmed analysis\n")
		for _, c := range wctx.Confirmed {
			fmt.Fprintf(&sb, "\n### %s\n%s\n", c.WorkerID, strings.TrimSpace(c.Content))
		}
	}
	return sb.String()
}

// TaskPrompt renders the task text, attachments and amendment feedback.
func TaskPrompt(task domain.Task) string {
	var sb strings.Builder
	sb.WriteString(task.Text)

	for _, a := range task.Attachments {
		fmt.Fprintf(&sb, "\n\n--- attachment: %s", a.Name)
		if a.Path != "" {
			fmt.Fprintf(&sb, " (%s)", a.Path)
		}
		sb.WriteString(" ---\n")
		sb.WriteString(a.Content)
	}

	if task.Amendment != "" {
		if task.Previous != "" {
			sb.WriteString("\n\n## Your previous proposal\n")
			sb.WriteString(task.Previous)
		}
		sb.WriteString("\n\n## User feedback\n")
		sb.WriteString(task.Amendment)
		sb.WriteString("\n\nRevise your proposal to address this feedback.")
	}
	return sb.String()
}

func writeBullets(sb *strings.Builder, items []string) {
	for _, it := range items {
		sb.WriteString("- ")
		sb.WriteString(it)
		sb.WriteByte('\n')
	}
}
