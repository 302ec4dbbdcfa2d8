package channel

import (
	"bytes"
	"context"
	"sync"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/multiagent"
)

// fakeTeam answers every utterance with a scripted reply and records calls.
type fakeTeam struct {
	mu sync.Mutex

	reply     func(sessionID, utterance string) (*multiagent.Reply, error)
	history   map[string][]domain.Turn
	snapshots map[string]multiagent.Snapshot
	resetErr  error

	handled []string
	resets  []string
}

func newFakeTeam() *fakeTeam {
	return &fakeTeam{
		history:   make(map[string][]domain.Turn),
		snapshots: make(map[string]multiagent.Snapshot),
	}
}

func (f *fakeTeam) Handle(_ context.Context, sessionID, utterance string) (*multiagent.Reply, error) {
	f.mu.Lock()
	f.handled = append(f.handled, sessionID+":"+utterance)
	script := f.reply
	f.mu.Unlock()
	if script != nil {
		return script(sessionID, utterance)
	}
	return &multiagent.Reply{SessionID: sessionID, State: domain.StateIdle, Content: "echo: " + utterance}, nil
}

func (f *fakeTeam) Reset(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets = append(f.resets, sessionID)
	delete(f.history, sessionID)
	return nil
}

func (f *fakeTeam) History(_ context.Context, sessionID string) ([]domain.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[sessionID], nil
}

func (f *fakeTeam) Snapshot(_ context.Context, sessionID string) (multiagent.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snapshots[sessionID]
	if !ok {
		snap = multiagent.Snapshot{SessionID: sessionID, State: domain.StateIdle}
	}
	return snap, nil
}

func (f *fakeTeam) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.handled...)
}

func gatedReply(sessionID string) *multiagent.Reply {
	return &multiagent.Reply{
		SessionID: sessionID,
		State:     domain.StateAwaitingConfirmation,
		Content:   "**Please confirm:** Compliance Agent is awaiting your approval.",
		Pending: []multiagent.Proposal{{
			GateID: "g-1", WorkerID: "compliance_agent", Name: "Compliance Agent", Content: "MIT license",
		}},
		Workers: []string{"GitHub Loader", "Compliance Agent"},
	}
}

// syncBuffer is a bytes.Buffer safe for the event goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
