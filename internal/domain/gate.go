package domain

import (
	"fmt"
	"time"
)

// GateState is the lifecycle state of a confirmation gate.
type GateState string

const (
	GatePending  GateState = "pending"
	GateApproved GateState = "approved"
	GateRejected GateState = "rejected"
	GateAmended  GateState = "amended"
)

// ConfirmationGate holds one worker proposal until the user decides on it.
type ConfirmationGate struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	WorkerID  string    `json:"worker_id"`
	Task      Task      `json:"task"`
	Proposal  string    `json:"proposal"`
	State     GateState `json:"state"`
	Amendment string    `json:"amendment,omitempty"`
	OpenedAt  time.Time `json:"opened_at"`
	ClosedAt  time.Time `json:"closed_at,omitempty"`
}

// Open reports whether the gate still awaits a decision.
func (g *ConfirmationGate) Open() bool { return g.State == GatePending }

// Close moves a pending gate to a final state.
func (g *ConfirmationGate) Close(state GateState, amendment string) error {
	if g.State != GatePending {
		return NewDomainError("Gate.Close", ErrInvalidInput, fmt.Sprintf("gate %s already %s", g.ID, g.State))
	}
	switch state {
	case GateApproved, GateRejected, GateAmended:
	default:
		return NewDomainError("Gate.Close", ErrInvalidInput, fmt.Sprintf("cannot close gate as %q", state))
	}
	g.State = state
	g.Amendment = amendment
	g.ClosedAt = time.Now()
	return nil
}

// TeamState is the orchestrator state of one session.
type TeamState string

const (
	StateIdle                 TeamState = "idle"
	StateRouting              TeamState = "routing"
	StateDispatching          TeamState = "dispatching"
	StateAwaitingConfirmation TeamState = "awaiting_confirmation"
	StateError                TeamState = "error"
)
