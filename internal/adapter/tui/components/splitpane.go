package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/theme"
)

// Pane identifies the focused side of a split.
type Pane int

const (
	PaneLeft Pane = iota
	PaneRight
)

// SplitPaneModel lays out the transcript and the activity pane side by
// side. The right pane hides itself on narrow terminals.
type SplitPaneModel struct {
	Focused Pane
	Visible bool
	ratio   float64
	width   int
	height  int
}

// NewSplitPane gives the left pane ratio of the width, in (0, 1).
func NewSplitPane(ratio float64) SplitPaneModel {
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.65
	}
	return SplitPaneModel{ratio: ratio}
}

// SetSize updates the available area.
func (m *SplitPaneModel) SetSize(w, h int) {
	m.width, m.height = w, h
	if w < theme.MinSplitWidth {
		m.Visible = false
		m.Focused = PaneLeft
	}
}

// Toggle shows or hides the right pane when there is room for it.
func (m *SplitPaneModel) Toggle() {
	if m.width < theme.MinSplitWidth {
		return
	}
	m.Visible = !m.Visible
	if !m.Visible {
		m.Focused = PaneLeft
	}
}

// SwitchFocus moves focus to the other visible pane.
func (m *SplitPaneModel) SwitchFocus() {
	if !m.Visible {
		return
	}
	if m.Focused == PaneLeft {
		m.Focused = PaneRight
	} else {
		m.Focused = PaneLeft
	}
}

// LeftWidth is the width of the left pane.
func (m SplitPaneModel) LeftWidth() int {
	if !m.Visible {
		return m.width
	}
	return int(float64(m.width-1) * m.ratio)
}

// RightWidth is the width of the right pane; 0 when hidden.
func (m SplitPaneModel) RightWidth() int {
	if !m.Visible {
		return 0
	}
	return m.width - 1 - m.LeftWidth()
}

// Render joins both panes with a divider that lights up on right focus.
func (m SplitPaneModel) Render(left, right string) string {
	if !m.Visible {
		return left
	}
	color := theme.ColorBorder
	if m.Focused == PaneRight {
		color = theme.ColorBorderActive
	}
	bar := lipgloss.NewStyle().Foreground(color).Render("│")
	column := strings.TrimSuffix(strings.Repeat(bar+"\n", max(m.height, 1)), "\n")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, column, right)
}
