package multiagent

import (
	"slices"
	"time"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// deferredStep is a worker waiting for its prerequisites to be confirmed.
type deferredStep struct {
	WorkerID string
	Task     domain.Task
}

// sessionState is the orchestration state of one session. It is only
// touched while the session lock is held.
type sessionState struct {
	state     domain.TeamState
	repo      domain.Repository
	confirmed []domain.ConfirmedOutput
	gates     []*domain.ConfirmationGate
	deferred  []deferredStep
}

func newSessionState() *sessionState {
	return &sessionState{state: domain.StateIdle}
}

func (s *sessionState) isConfirmed(workerID string) bool {
	return slices.ContainsFunc(s.confirmed, func(c domain.ConfirmedOutput) bool { return c.WorkerID == workerID })
}

// confirm records content as the worker's confirmed output, replacing any
// earlier one.
func (s *sessionState) confirm(workerID, content string) {
	out := domain.ConfirmedOutput{WorkerID: workerID, Content: content, ConfirmedAt: time.Now()}
	for i := range s.confirmed {
		if s.confirmed[i].WorkerID == workerID {
			s.confirmed[i] = out
			return
		}
	}
	s.confirmed = append(s.confirmed, out)
}

// confirmedFor returns the confirmed outputs of ids, in ids order.
func (s *sessionState) confirmedFor(ids []string) []domain.ConfirmedOutput {
	var out []domain.ConfirmedOutput
	for _, id := range ids {
		for _, c := range s.confirmed {
			if c.WorkerID == id {
				out = append(out, c)
			}
		}
	}
	return out
}

func (s *sessionState) openGates() []*domain.ConfirmationGate {
	var out []*domain.ConfirmationGate
	for _, g := range s.gates {
		if g.Open() {
			out = append(out, g)
		}
	}
	return out
}

func (s *sessionState) hasOpenGate(workerID string) bool {
	return slices.ContainsFunc(s.gates, func(g *domain.ConfirmationGate) bool {
		return g.Open() && g.WorkerID == workerID
	})
}

func (s *sessionState) deferStep(step deferredStep) {
	for i := range s.deferred {
		if s.deferred[i].WorkerID == step.WorkerID {
			s.deferred[i] = step
			return
		}
	}
	s.deferred = append(s.deferred, step)
}

// setRepository switches the session to url. Analysis of a previous
// repository no longer applies and is dropped.
func (s *sessionState) setRepository(url string) bool {
	if s.repo.URL != "" && SameRepository(s.repo.URL, url) {
		return false
	}
	s.repo = domain.Repository{URL: url}
	s.confirmed = nil
	s.deferred = nil
	return true
}

// GateSummary describes an open gate.
type GateSummary struct {
	ID       string    `json:"id"`
	WorkerID string    `json:"worker_id"`
	OpenedAt time.Time `json:"opened_at"`
}

// Snapshot is a read-only view of a session's orchestration state.
type Snapshot struct {
	SessionID  string            `json:"session_id"`
	State      domain.TeamState  `json:"state"`
	Repository domain.Repository `json:"repository"`
	Confirmed  []string          `json:"confirmed,omitempty"`
	Pending    []GateSummary     `json:"pending,omitempty"`
	Deferred   []string          `json:"deferred,omitempty"`
}

func (s *sessionState) snapshot(sessionID string) Snapshot {
	snap := Snapshot{SessionID: sessionID, State: s.state, Repository: s.repo}
	for _, c := range s.confirmed {
		snap.Confirmed = append(snap.Confirmed, c.WorkerID)
	}
	for _, g := range s.openGates() {
		snap.Pending = append(snap.Pending, GateSummary{ID: g.ID, WorkerID: g.WorkerID, OpenedAt: g.OpenedAt})
	}
	for _, d := range s.deferred {
		snap.Deferred = append(snap.Deferred, d.WorkerID)
	}
	return snap
}
