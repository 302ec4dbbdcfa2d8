package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/theme"
)

// Role identifies who a transcript entry comes from.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleProposal  Role = "proposal" // gated output awaiting the user's decision
	RoleSystem    Role = "system"
	RoleError     Role = "error"
)

// Message is one transcript entry.
type Message struct {
	Role      Role
	Title     string // proposal author
	Content   string
	Timestamp time.Time
	rendered  string
}

// TranscriptModel is the scrolling conversation view. It follows new
// messages while the user is at the bottom and stops following once they
// scroll up.
type TranscriptModel struct {
	Viewport viewport.Model
	messages []Message
	max      int
	trimmed  int
	width    int
	md       *glamour.TermRenderer
	ready    bool
	atBottom bool
}

// NewTranscript keeps at most max messages; 0 keeps everything.
func NewTranscript(max int) TranscriptModel {
	return TranscriptModel{max: max, atBottom: true}
}

// SetSize resizes the viewport and re-renders at the new width.
func (m *TranscriptModel) SetSize(w, h int) {
	if w != m.width {
		m.width = w
		m.md = nil
		for i := range m.messages {
			m.messages[i].rendered = ""
		}
	}
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refresh()
}

// Add appends msg, dropping the oldest entries past the cap.
func (m *TranscriptModel) Add(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.messages = append(m.messages, msg)
	if m.max > 0 && len(m.messages) > m.max {
		excess := len(m.messages) - m.max
		m.messages = m.messages[excess:]
		m.trimmed += excess
	}
	m.refresh()
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}

// Clear empties the transcript.
func (m *TranscriptModel) Clear() {
	m.messages = nil
	m.trimmed = 0
	m.atBottom = true
	m.refresh()
	m.Viewport.GotoTop()
}

// Messages returns the current entries.
func (m TranscriptModel) Messages() []Message { return m.messages }

// Update handles scrolling.
func (m TranscriptModel) Update(msg tea.Msg) (TranscriptModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// View renders the viewport.
func (m TranscriptModel) View() string {
	if !m.ready {
		return "  Initializing..."
	}
	return m.Viewport.View()
}

func (m *TranscriptModel) refresh() {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(m.render())
}

func (m *TranscriptModel) render() string {
	if len(m.messages) == 0 {
		return theme.TextMuted.Render("  Share a repository URL to get started, or type /help.")
	}
	width := ContentWidth(m.width)

	var sb strings.Builder
	if m.trimmed > 0 {
		sb.WriteString(theme.TextMuted.Render(fmt.Sprintf("  (%d older messages trimmed)", m.trimmed)) + "\n\n")
	}
	for i := range m.messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderMessage(&m.messages[i], width))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *TranscriptModel) renderMessage(msg *Message, width int) string {
	header := label(msg) + " " + theme.Timestamp.Render(RelativeTime(msg.Timestamp))

	switch msg.Role {
	case RoleAssistant:
		if msg.rendered == "" {
			msg.rendered = strings.Trim(m.markdown(msg.Content, width), "\n")
		}
		return header + "\n" + msg.rendered
	case RoleProposal:
		if msg.rendered == "" {
			msg.rendered = strings.Trim(m.markdown(msg.Content, width-4), "\n")
		}
		return header + "\n" + theme.PendingBox.Width(width).Render(msg.rendered)
	case RoleError:
		return header + "\n  " + theme.TextError.Render(wrapText(msg.Content, width-2))
	default:
		return header + "  " + wrapText(msg.Content, width-lipgloss.Width(header)-2)
	}
}

func label(msg *Message) string {
	switch msg.Role {
	case RoleUser:
		return theme.UserLabel.Render(theme.SymbolUser)
	case RoleAssistant:
		return theme.BotLabel.Render(theme.SymbolBot)
	case RoleProposal:
		return theme.GateLabel.Render(theme.SymbolGate + " " + msg.Title + " (awaiting confirmation)")
	case RoleError:
		return theme.ErrorLabel.Render(theme.SymbolError + " Error")
	default:
		return theme.SystemLabel.Render("System")
	}
}

func (m *TranscriptModel) markdown(content string, width int) string {
	if m.md == nil {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err != nil {
			return "  " + content
		}
		m.md = r
	}
	out, err := m.md.Render(content)
	if err != nil {
		return "  " + content
	}
	return out
}

// RelativeTime formats t relative to now.
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

// wrapText wraps s at width runes, indenting continuation lines by two
// spaces.
func wrapText(s string, width int) string {
	if width < 20 {
		width = 20
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		runes := []rune(line)
		for len(runes) > width {
			cut := width
			for i := width - 1; i > 0; i-- {
				if runes[i] == ' ' {
					cut = i
					break
				}
			}
			out = append(out, string(runes[:cut]))
			runes = []rune(strings.TrimLeft(string(runes[cut:]), " "))
		}
		out = append(out, string(runes))
	}
	return strings.Join(out, "\n  ")
}

// ContentWidth is the text width for a terminal of termWidth columns.
func ContentWidth(termWidth int) int {
	return theme.Clamp(termWidth-4, 40, theme.MaxContentWidth)
}

// Divider renders a horizontal rule.
func Divider(width int) string {
	if width < 0 {
		width = 0
	}
	return lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("─", width))
}
