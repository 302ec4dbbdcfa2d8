package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/channel"
	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/components"
	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/theme"
	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/uxerror"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// DefaultSessionID is the session used when none is configured.
const DefaultSessionID = "cli-default"

const maxTranscript = 1000

// Deps are the model's collaborators.
type Deps struct {
	Team      channel.Team
	SessionID string
	TeamName  string
	ModelName string
	Logger    *slog.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	deps Deps

	transcript components.TranscriptModel
	input      components.InputModel
	status     components.StatusBarModel
	activity   components.ActivityModel
	split      components.SplitPaneModel
	spinner    spinner.Model

	waiting  bool
	width    int
	height   int
	quitting bool

	// gen increments on every turn; replies tagged with an older gen are
	// dropped.
	gen      uint64
	cancelFn context.CancelFunc
}

var slashCommands = []components.Command{
	{Name: "/help", Description: "Show available commands"},
	{Name: "/reset", Description: "Forget this session"},
	{Name: "/history", Description: "Show stored turns"},
	{Name: "/status", Description: "Show team state"},
	{Name: "/clear", Description: "Clear the screen"},
	{Name: "/cancel", Description: "Cancel the running turn"},
	{Name: "/quit", Description: "Exit RepoScribe"},
}

// NewModel builds the root model.
func NewModel(deps Deps) Model {
	if deps.SessionID == "" {
		deps.SessionID = DefaultSessionID
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	teamName := deps.TeamName
	if teamName == "" {
		teamName = theme.SymbolBot
	}
	status := components.StatusBarModel{
		Hints:     defaultHints(),
		TeamName:  teamName,
		ModelName: deps.ModelName,
		State:     domain.StateIdle,
	}

	return Model{
		deps:       deps,
		transcript: components.NewTranscript(maxTranscript),
		input:      components.NewInput(slashCommands),
		status:     status,
		activity:   components.NewActivity(),
		split:      components.NewSplitPane(0.65),
		spinner:    s,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.SubmitMsg:
		return m.handleSubmit(msg.Value)

	case ReplyMsg:
		if msg.Gen != m.gen {
			return m, nil
		}
		m.handleReply(msg)
		return m, nil

	case SystemMsg:
		role := components.RoleSystem
		if msg.IsError {
			role = components.RoleError
		}
		m.transcript.Add(components.Message{Role: role, Content: msg.Content})
		return m, nil

	case SnapshotMsg:
		if msg.Err != nil {
			m.addError(msg.Err)
			return m, nil
		}
		m.status.State = msg.Snapshot.State
		m.status.Repository = msg.Snapshot.Repository.URL
		m.system(strings.TrimRight(channel.FormatSnapshot(msg.Snapshot), "\n"))
		return m, nil

	case HistoryMsg:
		if msg.Err != nil {
			m.addError(msg.Err)
			return m, nil
		}
		m.system(formatHistory(msg.Turns))
		return m, nil

	case ResetMsg:
		if msg.Err != nil {
			m.addError(msg.Err)
			return m, nil
		}
		m.transcript.Clear()
		m.activity.Clear()
		m.status.State = domain.StateIdle
		m.status.Repository = ""
		m.system(theme.SymbolSuccess + " Session cleared.")
		return m, nil

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, nil

	case QuitMsg:
		m.quitting = true
		m.cancelInFlight()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.Update(msg)
	cmds = append(cmds, cmd)

	if m.split.Visible && m.split.Focused == components.PaneRight {
		m.activity, cmd = m.activity.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View renders the whole screen.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	main := m.transcript.View()
	if m.split.Visible {
		main = m.split.Render(main, m.activity.View())
	}

	inputView := m.input.View()
	if m.waiting {
		inputView = theme.Dim.Render("> waiting for the team...") + "\n" + m.spinner.View() + " " + m.status.Extra
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		main,
		components.Divider(m.width),
		inputView,
		m.status.View(),
	)
}

func (m *Model) layout() {
	const inputH, statusH, dividerH = 3, 1, 1
	contentH := max(5, m.height-inputH-statusH-dividerH)

	m.status.SetWidth(m.width)
	m.split.SetSize(m.width, contentH)
	m.transcript.SetSize(m.split.LeftWidth(), contentH)
	m.input.SetWidth(m.width)
	if m.split.Visible {
		m.activity.SetSize(m.split.RightWidth(), contentH-1)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isMouseEscapeLeak(msg.String()) {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.waiting {
			m.cancelRequest("Request cancelled.")
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlT:
		m.split.Toggle()
		m.layout()
		m.updateHints()
		return m, nil

	case tea.KeyTab:
		if len(m.input.Suggestions()) == 0 && m.split.Visible {
			m.split.SwitchFocus()
			m.updateHints()
			return m, nil
		}

	case tea.KeyCtrlL:
		return m.handleSlashCommand("/clear")

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}

	if m.split.Visible && m.split.Focused == components.PaneRight {
		var cmd tea.Cmd
		m.activity, cmd = m.activity.Update(msg)
		return m, cmd
	}
	if m.waiting {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateHints() {
	if m.split.Visible && m.split.Focused == components.PaneRight {
		m.status.Hints = []components.KeyHint{
			{Key: "Tab", Desc: "Switch"},
			{Key: "↑/↓", Desc: "Scroll"},
			{Key: "Ctrl+T", Desc: "Close"},
		}
		return
	}
	m.status.Hints = defaultHints()
}

func (m Model) handleSubmit(value string) (tea.Model, tea.Cmd) {
	if cmd, _, ok := components.ParseSlashCommand(value); ok {
		return m.handleSlashCommand(cmd)
	}

	m.cancelInFlight()
	m.transcript.Add(components.Message{Role: components.RoleUser, Content: value, Timestamp: time.Now()})

	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel

	m.waiting = true
	m.input.SetEnabled(false)
	m.status.State = domain.StateRouting
	m.status.Extra = "Routing" + theme.SymbolEllipsis

	return m, handleCmd(ctx, m.deps.Team, m.deps.SessionID, value, m.gen)
}

func (m *Model) handleReply(msg ReplyMsg) {
	m.cancelFn = nil
	m.settle()

	if msg.Reply == nil {
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.addError(msg.Err)
		}
		return
	}

	r := msg.Reply
	m.status.State = r.State
	if r.Content != "" {
		m.transcript.Add(components.Message{Role: components.RoleAssistant, Content: r.Content})
	}
	for _, p := range r.Pending {
		m.transcript.Add(components.Message{Role: components.RoleProposal, Title: p.Name, Content: p.Content})
	}
	if msg.Err != nil {
		m.deps.Logger.Warn("turn not persisted", "session", m.deps.SessionID, "error", msg.Err)
		m.system(theme.SymbolWarning + " This turn could not be saved: " + uxerror.Humanize(msg.Err).Message)
	}
}

func (m *Model) handleEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventWorkerDispatched, domain.EventWorkerCompleted, domain.EventWorkerFailed:
		var p domain.WorkerEventPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		switch ev.Type {
		case domain.EventWorkerDispatched:
			m.activity.WorkerStarted(p.WorkerID)
		case domain.EventWorkerCompleted:
			m.activity.WorkerFinished(p.WorkerID, "")
		default:
			m.activity.WorkerFinished(p.WorkerID, p.Error)
		}
		m.updateExtra()

	case domain.EventGateOpened:
		var p domain.GateEventPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		m.activity.WorkerGated(p.WorkerID)

	case domain.EventToolCallStarted, domain.EventToolCallCompleted:
		var p domain.ToolEventPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		if ev.Type == domain.EventToolCallStarted {
			m.activity.ToolStarted(p.Tool, p.Action)
		} else {
			m.activity.ToolFinished(p.Tool, p.Action, p.IsError)
		}

	case domain.EventStateChanged:
		var p struct {
			State domain.TeamState `json:"state"`
		}
		if json.Unmarshal(ev.Payload, &p) != nil || p.State == "" {
			return
		}
		m.status.State = p.State
		m.updateExtra()
	}
}

// updateExtra summarises what the team is doing while a turn runs.
func (m *Model) updateExtra() {
	if !m.waiting {
		return
	}
	if running := m.activity.Running(); len(running) > 0 {
		m.status.Extra = strings.Join(running, ", ") + " working" + theme.SymbolEllipsis
		return
	}
	switch m.status.State {
	case domain.StateRouting:
		m.status.Extra = "Routing" + theme.SymbolEllipsis
	case domain.StateDispatching:
		m.status.Extra = "Dispatching" + theme.SymbolEllipsis
	default:
		m.status.Extra = "Composing" + theme.SymbolEllipsis
	}
}

func (m Model) handleSlashCommand(cmd string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "/help":
		m.system(helpText)
		return m, nil

	case "/quit", "/exit":
		m.quitting = true
		m.cancelInFlight()
		return m, tea.Quit

	case "/clear":
		m.transcript.Clear()
		m.activity.Clear()
		return m, nil

	case "/reset":
		if m.waiting {
			m.cancelRequest("Request cancelled.")
		}
		return m, resetCmd(m.deps.Team, m.deps.SessionID)

	case "/history":
		return m, historyCmd(m.deps.Team, m.deps.SessionID)

	case "/status":
		return m, snapshotCmd(m.deps.Team, m.deps.SessionID)

	case "/cancel":
		if m.waiting {
			m.cancelRequest("Request cancelled.")
		} else {
			m.system("No active request to cancel.")
		}
		return m, nil

	default:
		m.system(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
		return m, nil
	}
}

const helpText = `Available commands:
  /help      Show this help
  /reset     Forget this session (repository, confirmed outputs, transcript)
  /history   Show the stored turns
  /status    Show team state, repository and pending confirmations
  /clear     Clear the screen
  /cancel    Cancel the running turn
  /quit      Exit RepoScribe

Keybindings:
  Enter      Send message
  Alt+Enter  New line
  Ctrl+T     Toggle activity pane
  Tab        Switch pane focus
  Ctrl+L     Clear the screen
  Ctrl+C     Cancel / quit
  PgUp/PgDn  Scroll`

func formatHistory(turns []domain.Turn) string {
	if len(turns) == 0 {
		return "No turns yet."
	}
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		who := "you"
		if t.Speaker == domain.SpeakerAssistant {
			who = "team"
		}
		fmt.Fprintf(&sb, "[%s] %s: %s", t.Timestamp.Local().Format("15:04:05"), who, firstLine(t.Text))
	}
	return sb.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " " + theme.SymbolEllipsis
	}
	return s
}

func (m *Model) system(content string) {
	m.transcript.Add(components.Message{Role: components.RoleSystem, Content: content})
}

func (m *Model) addError(err error) {
	m.transcript.Add(components.Message{Role: components.RoleError, Content: uxerror.Humanize(err).Render()})
}

func (m *Model) cancelInFlight() {
	if m.cancelFn != nil {
		m.cancelFn()
		m.cancelFn = nil
	}
}

// cancelRequest abandons the running turn. The gen bump makes its reply
// stale.
func (m *Model) cancelRequest(reason string) {
	m.cancelInFlight()
	m.gen++
	m.settle()
	m.system(reason)
}

func (m *Model) settle() {
	m.waiting = false
	m.input.SetEnabled(true)
	m.status.Extra = ""
	m.updateHints()
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Send"},
		{Key: "Ctrl+T", Desc: "Activity"},
		{Key: "/help", Desc: "Commands"},
		{Key: "Ctrl+C", Desc: "Quit"},
	}
}

// isMouseEscapeLeak reports mouse escape sequences that reached the key
// handler instead of arriving as tea.MouseMsg (SGR, X11 and URXVT forms).
func isMouseEscapeLeak(s string) bool {
	switch {
	case len(s) >= 5 && s[0] == '<' && (s[len(s)-1] == 'M' || s[len(s)-1] == 'm'):
		return digitsAndSemicolons(s[1 : len(s)-1])
	case len(s) >= 2 && s[0] == '[' && (s[1] == 'M' || s[1] == 'm'):
		return true
	case len(s) >= 5 && s[0] == '[' && s[len(s)-1] == 'M':
		return digitsAndSemicolons(s[1 : len(s)-1])
	}
	return false
}

func digitsAndSemicolons(s string) bool {
	for _, r := range s {
		if r != ';' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
