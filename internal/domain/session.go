package domain

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Speakers recorded in session turns.
const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// Turn is one stored utterance of a conversation.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn stamped with the current time and a fresh ULID.
func NewTurn(speaker, text string) Turn {
	now := time.Now()
	return Turn{ID: NewID(now), Speaker: speaker, Text: text, Timestamp: now}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a lexicographically sortable ULID for t.
func NewID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore keeps the append-only turn history of every session.
type SessionStore interface {
	// Append adds turn to the end of the session, creating it if needed.
	Append(ctx context.Context, sessionID string, turn Turn) error
	// Read returns all turns in arrival order; empty for unknown sessions.
	Read(ctx context.Context, sessionID string) ([]Turn, error)
	// Reset clears the session's history.
	Reset(ctx context.Context, sessionID string) error
	// Sessions lists known sessions.
	Sessions(ctx context.Context) ([]SessionInfo, error)
}
