package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/theme"
)

// ActivityStatus is the state of one activity row.
type ActivityStatus string

const (
	ActivityRunning ActivityStatus = "running"
	ActivityDone    ActivityStatus = "done"
	ActivityFailed  ActivityStatus = "failed"
	ActivityGated   ActivityStatus = "gated"
)

// Activity is one worker dispatch or tool call.
type Activity struct {
	Name      string
	Tool      bool
	Status    ActivityStatus
	Detail    string
	StartedAt time.Time
	Duration  time.Duration
}

const maxActivities = 200

// ActivityModel is the side pane listing worker dispatches and the tool
// calls they make.
type ActivityModel struct {
	Viewport viewport.Model
	items    []Activity
	ready    bool
	width    int
	now      func() time.Time
}

// NewActivity creates an empty pane.
func NewActivity() ActivityModel {
	return ActivityModel{now: time.Now}
}

// SetSize resizes the pane.
func (m *ActivityModel) SetSize(w, h int) {
	m.width = w
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refresh()
}

// Items returns the rows, oldest first.
func (m ActivityModel) Items() []Activity { return m.items }

// Running returns the names of workers still running.
func (m ActivityModel) Running() []string {
	var names []string
	for _, a := range m.items {
		if !a.Tool && a.Status == ActivityRunning {
			names = append(names, a.Name)
		}
	}
	return names
}

// WorkerStarted adds a running worker row.
func (m *ActivityModel) WorkerStarted(workerID string) { m.start(workerID, false) }

// WorkerFinished settles the latest running row for workerID. A non-empty
// errText marks it failed.
func (m *ActivityModel) WorkerFinished(workerID, errText string) {
	status := ActivityDone
	if errText != "" {
		status = ActivityFailed
	}
	m.finish(workerID, false, status, errText)
}

// WorkerGated marks the worker's latest row as waiting on the user.
func (m *ActivityModel) WorkerGated(workerID string) {
	for i := len(m.items) - 1; i >= 0; i-- {
		if !m.items[i].Tool && m.items[i].Name == workerID {
			m.items[i].Status = ActivityGated
			break
		}
	}
	m.refresh()
}

// ToolStarted adds a running tool row.
func (m *ActivityModel) ToolStarted(tool, action string) {
	m.start(toolName(tool, action), true)
}

// ToolFinished settles the latest running row for the tool call.
func (m *ActivityModel) ToolFinished(tool, action string, isError bool) {
	status := ActivityDone
	if isError {
		status = ActivityFailed
	}
	m.finish(toolName(tool, action), true, status, "")
}

// Clear removes every row.
func (m *ActivityModel) Clear() {
	m.items = nil
	m.refresh()
}

func toolName(tool, action string) string {
	if action == "" {
		return tool
	}
	return tool + "." + action
}

func (m *ActivityModel) start(name string, tool bool) {
	m.items = append(m.items, Activity{Name: name, Tool: tool, Status: ActivityRunning, StartedAt: m.now()})
	if len(m.items) > maxActivities {
		m.items = m.items[len(m.items)-maxActivities:]
	}
	m.refresh()
}

func (m *ActivityModel) finish(name string, tool bool, status ActivityStatus, detail string) {
	for i := len(m.items) - 1; i >= 0; i-- {
		a := &m.items[i]
		if a.Name == name && a.Tool == tool && a.Status == ActivityRunning {
			a.Status = status
			a.Detail = detail
			a.Duration = m.now().Sub(a.StartedAt)
			break
		}
	}
	m.refresh()
}

// Update handles scrolling.
func (m ActivityModel) Update(msg tea.Msg) (ActivityModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View renders the pane with its header.
func (m ActivityModel) View() string {
	if !m.ready {
		return ""
	}
	return theme.Bold.Render(" Activity") + "\n" + m.Viewport.View()
}

func (m *ActivityModel) refresh() {
	if !m.ready {
		return
	}
	if len(m.items) == 0 {
		m.Viewport.SetContent(theme.TextMuted.Render("  No workers dispatched yet"))
		return
	}
	var sb strings.Builder
	for _, a := range m.items {
		indent := "  "
		if a.Tool {
			indent = "      "
		}
		fmt.Fprintf(&sb, "%s%s %s", indent, statusIcon(a.Status), a.Name)
		if a.Duration > 0 {
			sb.WriteString(" " + theme.TextMuted.Render(a.Duration.Round(time.Millisecond).String()))
		}
		sb.WriteString("\n")
		if a.Detail != "" {
			detail := a.Detail
			if limit := m.width - len(indent) - 4; limit > 10 && len(detail) > limit {
				detail = detail[:limit-1] + theme.SymbolEllipsis
			}
			sb.WriteString(indent + "  " + theme.TextError.Render(detail) + "\n")
		}
	}
	m.Viewport.SetContent(sb.String())
	m.Viewport.GotoBottom()
}

func statusIcon(s ActivityStatus) string {
	switch s {
	case ActivityDone:
		return theme.TextSuccess.Render(theme.SymbolSuccess)
	case ActivityFailed:
		return theme.TextError.Render(theme.SymbolError)
	case ActivityGated:
		return theme.TextWarning.Render(theme.SymbolGate)
	default:
		return theme.TextInfo.Render(theme.SymbolSpinner)
	}
}
