package channel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/eventbus"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/multiagent"
)

func runREPL(t *testing.T, team Team, input string, cfg REPLConfig) string {
	t.Helper()
	if cfg.SessionID == "" {
		cfg.SessionID = "cli"
	}
	var out bytes.Buffer
	r := NewREPL(team, strings.NewReader(input), &out, cfg, nil)
	require.NoError(t, r.Run(context.Background()))
	return out.String()
}

func TestREPLTurn(t *testing.T) {
	team := newFakeTeam()

	out := runREPL(t, team, "analyze https://github.com/o/r\n\n   \n", REPLConfig{})

	assert.Equal(t, []string{"cli:analyze https://github.com/o/r"}, team.calls())
	assert.Contains(t, out, "echo: analyze https://github.com/o/r")
	assert.Contains(t, out, "you> ")
}

func TestREPLPrintsPendingProposals(t *testing.T) {
	team := newFakeTeam()
	team.reply = func(sessionID, _ string) (*multiagent.Reply, error) { return gatedReply(sessionID), nil }

	out := runREPL(t, team, "license?\n", REPLConfig{})

	assert.Contains(t, out, "**Please confirm:**")
	assert.Contains(t, out, "##### Compliance Agent")
}

func TestREPLMarkers(t *testing.T) {
	out := runREPL(t, newFakeTeam(), "hi\n", REPLConfig{Markers: true})

	assert.Contains(t, out, ResponseStartMarker+"\necho: hi\n"+ResponseEndMarker)
}

func TestREPLQuitStopsReading(t *testing.T) {
	team := newFakeTeam()

	out := runREPL(t, team, "/quit\nnever sent\n", REPLConfig{})

	assert.Empty(t, team.calls())
	assert.Contains(t, out, "Goodbye!")
}

func TestREPLCommands(t *testing.T) {
	team := newFakeTeam()
	team.history["cli"] = []domain.Turn{
		domain.NewTurn(domain.SpeakerUser, "first question"),
		domain.NewTurn(domain.SpeakerAssistant, "first answer"),
	}
	team.snapshots["cli"] = multiagent.Snapshot{
		SessionID:  "cli",
		State:      domain.StateAwaitingConfirmation,
		Repository: domain.Repository{URL: "https://github.com/o/r", Loaded: true},
		Confirmed:  []string{"github_loader_agent"},
		Pending:    []multiagent.GateSummary{{ID: "g", WorkerID: "compliance_agent"}},
	}

	out := runREPL(t, team, "/help\n/history\n/status\n/reset\n/history\n/bogus\n", REPLConfig{})

	assert.Contains(t, out, "/reset")
	assert.Contains(t, out, "first question")
	assert.Contains(t, out, "first answer")
	assert.Contains(t, out, "Repository: https://github.com/o/r (loaded)")
	assert.Contains(t, out, "Pending:    compliance_agent")
	assert.Contains(t, out, "Session cleared.")
	assert.Contains(t, out, "No turns yet.")
	assert.Contains(t, out, "Unknown command: /bogus")
	assert.Equal(t, []string{"cli"}, team.resets)
	assert.Empty(t, team.calls())
}

func TestREPLHandleError(t *testing.T) {
	team := newFakeTeam()
	team.reply = func(string, string) (*multiagent.Reply, error) {
		return nil, domain.NewDomainError("Team.Handle", domain.ErrOracleUnavailable, "down")
	}

	out := runREPL(t, team, "hi\n", REPLConfig{})

	assert.Contains(t, out, "Model Unavailable")
	assert.Contains(t, out, "ORACLE_UNAVAILABLE")
}

func TestREPLPersistenceWarning(t *testing.T) {
	team := newFakeTeam()
	team.reply = func(sessionID, _ string) (*multiagent.Reply, error) {
		return &multiagent.Reply{SessionID: sessionID, Content: "answer"}, errors.New("disk full")
	}

	out := runREPL(t, team, "hi\n", REPLConfig{})

	assert.Contains(t, out, "answer")
	assert.Contains(t, out, "could not be saved: disk full")
}

func TestREPLStopsOnContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	r := NewREPL(newFakeTeam(), pr, io.Discard, REPLConfig{SessionID: "cli"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestREPLWatchEvents(t *testing.T) {
	bus := eventbus.New(nil)
	defer bus.Close()

	var out syncBuffer
	r := NewREPL(newFakeTeam(), strings.NewReader(""), &out, REPLConfig{SessionID: "cli"}, nil)
	stop := r.WatchEvents(bus)
	defer stop()

	ctx := context.Background()
	bus.Publish(ctx, domain.NewEvent(domain.EventWorkerDispatched, "other", domain.WorkerEventPayload{WorkerID: "hidden_agent"}))
	bus.Publish(ctx, domain.NewEvent(domain.EventWorkerDispatched, "cli", domain.WorkerEventPayload{WorkerID: "compliance_agent"}))
	bus.Publish(ctx, domain.NewEvent(domain.EventGateOpened, "cli", domain.GateEventPayload{WorkerID: "compliance_agent"}))

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "awaits confirmation")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "compliance_agent working")
	assert.NotContains(t, out.String(), "hidden_agent")
}

func TestActivityLine(t *testing.T) {
	failed := domain.NewEvent(domain.EventWorkerFailed, "s", domain.WorkerEventPayload{WorkerID: "w", Error: "boom"})
	assert.Contains(t, activityLine(failed), "w failed: boom")

	done := domain.NewEvent(domain.EventWorkerCompleted, "s", domain.WorkerEventPayload{WorkerID: "w"})
	assert.Contains(t, activityLine(done), "w done")

	assert.Empty(t, activityLine(domain.NewEvent(domain.EventTurnStarted, "s", nil)))
	assert.Empty(t, activityLine(domain.Event{Type: domain.EventWorkerFailed, Payload: []byte("{")}))
}

func TestFormatSnapshotEmpty(t *testing.T) {
	out := FormatSnapshot(multiagent.Snapshot{SessionID: "s", State: domain.StateIdle})

	assert.Contains(t, out, "Repository: none")
	assert.Contains(t, out, "Confirmed:  none")
	assert.Contains(t, out, "Deferred:   none")
}

func TestPlainRendererAndMarkdownFallback(t *testing.T) {
	assert.Equal(t, "# x", PlainRenderer{}.Render("# x"))
	assert.Contains(t, NewMarkdownRenderer(80).Render("**bold** text"), "bold")
}
