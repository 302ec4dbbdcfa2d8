package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventTurnStarted       EventType = "turn.started"
	EventTurnCompleted     EventType = "turn.completed"
	EventStateChanged      EventType = "team.state"
	EventWorkerDispatched  EventType = "worker.dispatched"
	EventWorkerCompleted   EventType = "worker.completed"
	EventWorkerFailed      EventType = "worker.failed"
	EventToolCallStarted   EventType = "tool.call.started"
	EventToolCallCompleted EventType = "tool.call.completed"
	EventGateOpened        EventType = "gate.opened"
	EventGateClosed        EventType = "gate.closed"
	EventSessionReset      EventType = "session.reset"
	EventTeamReloaded      EventType = "team.reloaded"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an Event, marshaling payload to JSON. A payload that cannot
// be marshaled is dropped.
func NewEvent(typ EventType, sessionID string, payload any) Event {
	ev := Event{Type: typ, Timestamp: time.Now(), SessionID: sessionID}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}

// WorkerEventPayload accompanies worker.* events.
type WorkerEventPayload struct {
	WorkerID string `json:"worker_id"`
	Stage    int    `json:"stage"`
	Error    string `json:"error,omitempty"`
}

// GateEventPayload accompanies gate.* events.
type GateEventPayload struct {
	GateID   string    `json:"gate_id"`
	WorkerID string    `json:"worker_id"`
	State    GateState `json:"state"`
}

// ToolEventPayload accompanies tool.call.* events.
type ToolEventPayload struct {
	Tool    string `json:"tool"`
	Action  string `json:"action,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
