package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/theme"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// KeyHint is one keybinding shown in the status bar.
type KeyHint struct {
	Key  string
	Desc string
}

// StatusBarModel is the bottom line: key hints on the left, team state on
// the right.
type StatusBarModel struct {
	Hints      []KeyHint
	TeamName   string
	ModelName  string
	Repository string
	State      domain.TeamState
	Extra      string // transient activity, e.g. "compliance_agent working"
	width      int
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) { m.width = w }

// View renders the bar as a single line.
func (m StatusBarModel) View() string {
	hints := make([]string, 0, len(m.Hints))
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var parts []string
	for _, s := range []string{m.TeamName, m.ModelName, m.Repository} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	right := theme.TextMuted.Render(strings.Join(parts, " "+theme.SymbolBullet+" "))
	if m.State != "" {
		right += "  " + stateStyle(m.State).Render(string(m.State))
	}
	if m.Extra != "" {
		right += "  " + theme.TextInfo.Render(m.Extra)
	}

	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func stateStyle(s domain.TeamState) lipgloss.Style {
	switch s {
	case domain.StateAwaitingConfirmation:
		return theme.TextWarning
	case domain.StateError:
		return theme.TextError
	case domain.StateIdle:
		return theme.TextMuted
	default:
		return theme.TextInfo
	}
}
