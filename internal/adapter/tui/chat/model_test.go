package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/components"
	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/theme"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/multiagent"
)

type fakeTeam struct {
	mu      sync.Mutex
	reply   *multiagent.Reply
	err     error
	turns   []domain.Turn
	snap    multiagent.Snapshot
	resets  int
	handled []string
}

func (f *fakeTeam) Handle(_ context.Context, sessionID, utterance string) (*multiagent.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, sessionID+":"+utterance)
	return f.reply, f.err
}

func (f *fakeTeam) Reset(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeTeam) History(_ context.Context, _ string) ([]domain.Turn, error) {
	return f.turns, nil
}

func (f *fakeTeam) Snapshot(_ context.Context, sessionID string) (multiagent.Snapshot, error) {
	snap := f.snap
	snap.SessionID = sessionID
	return snap, nil
}

func newTestModel(t *testing.T, team *fakeTeam) Model {
	t.Helper()
	m := NewModel(Deps{Team: team, SessionID: "tui-test"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

// step feeds msg to m and runs any command it returns, feeding the result
// back once.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	out := cmd()
	if out == nil {
		return m
	}
	if _, batch := out.(tea.BatchMsg); batch {
		return m
	}
	next, _ = m.Update(out)
	return next.(Model)
}

func lastMessage(m Model) components.Message {
	msgs := m.transcript.Messages()
	if len(msgs) == 0 {
		return components.Message{}
	}
	return msgs[len(msgs)-1]
}

func TestSubmitRendersReplyAndProposals(t *testing.T) {
	team := &fakeTeam{reply: &multiagent.Reply{
		SessionID: "tui-test",
		State:     domain.StateAwaitingConfirmation,
		Content:   "**Please confirm:** License is awaiting your approval.",
		Pending:   []multiagent.Proposal{{GateID: "g-1", WorkerID: "compliance_agent", Name: "License", Content: "MIT"}},
	}}
	m := newTestModel(t, team)

	m = step(t, m, components.SubmitMsg{Value: "add a license"})

	assert.Equal(t, []string{"tui-test:add a license"}, team.handled)
	assert.False(t, m.waiting)
	assert.True(t, m.input.Enabled())
	assert.Equal(t, domain.StateAwaitingConfirmation, m.status.State)

	msgs := m.transcript.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, components.RoleUser, msgs[0].Role)
	assert.Equal(t, components.RoleAssistant, msgs[1].Role)
	assert.Equal(t, components.RoleProposal, msgs[2].Role)
	assert.Equal(t, "License", msgs[2].Title)
}

func TestSubmitErrorIsHumanized(t *testing.T) {
	team := &fakeTeam{err: domain.NewDomainError("Team.Handle", domain.ErrInvalidInput, "empty utterance")}
	m := newTestModel(t, team)

	m = step(t, m, components.SubmitMsg{Value: "hello"})

	last := lastMessage(m)
	assert.Equal(t, components.RoleError, last.Role)
	assert.Contains(t, last.Content, "INVALID_INPUT")
}

func TestPersistenceFailureWarns(t *testing.T) {
	team := &fakeTeam{
		reply: &multiagent.Reply{State: domain.StateIdle, Content: "Done."},
		err:   errors.New("disk full"),
	}
	m := newTestModel(t, team)

	m = step(t, m, components.SubmitMsg{Value: "hello"})

	last := lastMessage(m)
	assert.Equal(t, components.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "could not be saved")
}

func TestStaleReplyDropped(t *testing.T) {
	m := newTestModel(t, &fakeTeam{})
	m.gen = 3
	next, _ := m.Update(ReplyMsg{Gen: 2, Reply: &multiagent.Reply{Content: "late"}})
	m = next.(Model)
	assert.Empty(t, m.transcript.Messages())
}

func TestCtrlCCancelsThenQuits(t *testing.T) {
	m := newTestModel(t, &fakeTeam{})
	next, cmd := m.Update(components.SubmitMsg{Value: "slow question"})
	m = next.(Model)
	require.NotNil(t, cmd)
	require.True(t, m.waiting)
	gen := m.gen

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)
	assert.False(t, m.waiting)
	assert.Greater(t, m.gen, gen)
	assert.Equal(t, "Request cancelled.", lastMessage(m).Content)

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Equal(t, "Goodbye!\n", m.View())
}

func TestSlashCommands(t *testing.T) {
	team := &fakeTeam{
		turns: []domain.Turn{
			{Speaker: domain.SpeakerUser, Text: "https://github.com/a/b", Timestamp: time.Now()},
			{Speaker: domain.SpeakerAssistant, Text: "Loaded.\nmore", Timestamp: time.Now()},
		},
		snap: multiagent.Snapshot{
			State:      domain.StateIdle,
			Repository: domain.Repository{URL: "https://github.com/a/b", Loaded: true},
		},
	}
	m := newTestModel(t, team)

	m = step(t, m, components.SubmitMsg{Value: "/help"})
	assert.Contains(t, lastMessage(m).Content, "/reset")

	m = step(t, m, components.SubmitMsg{Value: "/history"})
	assert.Contains(t, lastMessage(m).Content, "you: https://github.com/a/b")
	assert.Contains(t, lastMessage(m).Content, "team: Loaded.")

	m = step(t, m, components.SubmitMsg{Value: "/status"})
	assert.Contains(t, lastMessage(m).Content, "https://github.com/a/b (loaded)")
	assert.Equal(t, "https://github.com/a/b", m.status.Repository)

	m = step(t, m, components.SubmitMsg{Value: "/cancel"})
	assert.Equal(t, "No active request to cancel.", lastMessage(m).Content)

	m = step(t, m, components.SubmitMsg{Value: "/bogus"})
	assert.Contains(t, lastMessage(m).Content, "Unknown command: /bogus")

	m = step(t, m, components.SubmitMsg{Value: "/reset"})
	assert.Equal(t, 1, team.resets)
	require.Len(t, m.transcript.Messages(), 1)
	assert.Contains(t, lastMessage(m).Content, "Session cleared.")
	assert.Empty(t, m.status.Repository)

	m = step(t, m, components.SubmitMsg{Value: "/clear"})
	assert.Empty(t, m.transcript.Messages())

	next, cmd := m.Update(components.SubmitMsg{Value: "/quit"})
	assert.True(t, next.(Model).quitting)
	require.NotNil(t, cmd)
}

func TestEventsDriveActivityAndStatus(t *testing.T) {
	m := newTestModel(t, &fakeTeam{})
	m.waiting = true

	send := func(typ domain.EventType, payload any) {
		next, _ := m.Update(EventMsg{Event: domain.NewEvent(typ, "tui-test", payload)})
		m = next.(Model)
	}

	send(domain.EventStateChanged, map[string]any{"state": domain.StateDispatching})
	assert.Equal(t, domain.StateDispatching, m.status.State)
	assert.Equal(t, "Dispatching"+theme.SymbolEllipsis, m.status.Extra)

	send(domain.EventWorkerDispatched, domain.WorkerEventPayload{WorkerID: "readme_agent"})
	assert.Contains(t, m.status.Extra, "readme_agent working")

	send(domain.EventToolCallStarted, domain.ToolEventPayload{Tool: "filesystem", Action: "read"})
	send(domain.EventToolCallCompleted, domain.ToolEventPayload{Tool: "filesystem", Action: "read"})
	send(domain.EventWorkerFailed, domain.WorkerEventPayload{WorkerID: "readme_agent", Error: "boom"})
	send(domain.EventWorkerDispatched, domain.WorkerEventPayload{WorkerID: "compliance_agent"})
	send(domain.EventGateOpened, domain.GateEventPayload{GateID: "g-1", WorkerID: "compliance_agent"})

	items := m.activity.Items()
	require.Len(t, items, 3)
	assert.Equal(t, components.ActivityFailed, items[0].Status)
	assert.Equal(t, components.ActivityDone, items[1].Status)
	assert.Equal(t, components.ActivityGated, items[2].Status)
}

func TestToggleActivityPane(t *testing.T) {
	m := newTestModel(t, &fakeTeam{})
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	require.True(t, m.split.Visible)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.Equal(t, components.PaneRight, m.split.Focused)
	assert.Equal(t, "Tab", m.status.Hints[0].Key)
	assert.Contains(t, m.View(), "Activity")
}

func TestIsMouseEscapeLeak(t *testing.T) {
	for s, want := range map[string]bool{
		"<65;38;21M": true,
		"<0;1;1m":    true,
		"[M":         true,
		"[32;5;7M":   true,
		"hello":      false,
		"<ab;1M":     false,
	} {
		assert.Equal(t, want, isMouseEscapeLeak(s), s)
	}
}
