package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/theme"
)

// SubmitMsg is sent when the user presses Enter on non-empty input.
type SubmitMsg struct {
	Value string
}

// Command is a slash command offered by the completion popup.
type Command struct {
	Name        string
	Description string
}

// InputModel is the prompt: a textarea with slash-command completion.
// Enter submits; Alt+Enter inserts a newline.
type InputModel struct {
	Textarea textarea.Model
	enabled  bool
	width    int

	commands []Command
	matches  []Command
	selected int
}

// NewInput creates a focused prompt offering commands for completion.
func NewInput(commands []Command) InputModel {
	ta := textarea.New()
	ta.Placeholder = "Ask about a repository, or paste its URL..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = theme.InputPrompt
	ta.FocusedStyle.Placeholder = theme.InputPlaceholder
	ta.Focus()
	return InputModel{Textarea: ta, enabled: true, commands: commands}
}

// SetWidth resizes the prompt.
func (m *InputModel) SetWidth(w int) {
	m.width = w
	m.Textarea.SetWidth(w - 2)
}

// SetEnabled focuses or blurs the prompt.
func (m *InputModel) SetEnabled(enabled bool) {
	m.enabled = enabled
	if enabled {
		m.Textarea.Focus()
	} else {
		m.Textarea.Blur()
	}
}

// Enabled reports whether the prompt accepts keys.
func (m InputModel) Enabled() bool { return m.enabled }

// Suggestions returns the commands matching the current prefix.
func (m InputModel) Suggestions() []Command { return m.matches }

// ParseSlashCommand splits "/cmd args..." into a lower-cased command and
// its arguments.
func ParseSlashCommand(input string) (cmd string, args []string, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", nil, false
	}
	parts := strings.Fields(input)
	return strings.ToLower(parts[0]), parts[1:], true
}

// Update handles keys; mouse events never reach the textarea.
func (m InputModel) Update(msg tea.Msg) (InputModel, tea.Cmd) {
	if !m.enabled {
		return m, nil
	}
	if _, ok := msg.(tea.MouseMsg); ok {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		if len(m.matches) > 0 {
			switch key.Type {
			case tea.KeyTab, tea.KeyDown:
				m.selected = (m.selected + 1) % len(m.matches)
				return m, nil
			case tea.KeyShiftTab, tea.KeyUp:
				m.selected = (m.selected - 1 + len(m.matches)) % len(m.matches)
				return m, nil
			case tea.KeyEnter:
				m.Textarea.SetValue(m.matches[m.selected].Name + " ")
				m.Textarea.CursorEnd()
				m.hideMatches()
				return m, nil
			case tea.KeyEsc:
				m.hideMatches()
				return m, nil
			}
		}
		if key.Type == tea.KeyEnter {
			value := strings.TrimSpace(m.Textarea.Value())
			if value == "" {
				return m, nil
			}
			m.Textarea.Reset()
			m.hideMatches()
			return m, func() tea.Msg { return SubmitMsg{Value: value} }
		}
	}

	var cmd tea.Cmd
	m.Textarea, cmd = m.Textarea.Update(msg)
	m.filter(m.Textarea.Value())
	return m, cmd
}

func (m *InputModel) filter(value string) {
	if !strings.HasPrefix(value, "/") || strings.Contains(value, " ") {
		m.hideMatches()
		return
	}
	prefix := strings.ToLower(value)
	m.matches = m.matches[:0]
	for _, c := range m.commands {
		if strings.HasPrefix(c.Name, prefix) {
			m.matches = append(m.matches, c)
		}
	}
	if m.selected >= len(m.matches) {
		m.selected = 0
	}
}

func (m *InputModel) hideMatches() {
	m.matches = nil
	m.selected = 0
}

// View renders the completion popup above the prompt.
func (m InputModel) View() string {
	if len(m.matches) == 0 {
		return m.Textarea.View()
	}
	var lines []string
	for i, c := range m.matches {
		name := c.Name + strings.Repeat(" ", max(0, 10-len(c.Name)))
		line := "  " + name + " " + theme.TextMuted.Render(c.Description)
		if i == m.selected {
			line = theme.TextInfo.Render(theme.SymbolArrowR+" ") + name + " " + theme.TextMuted.Render(c.Description)
		}
		lines = append(lines, line)
	}
	popup := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorderActive).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
	return popup + "\n" + m.Textarea.View()
}
