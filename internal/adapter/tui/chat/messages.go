// Package chat implements the full-screen Bubble Tea front end for
// RepoScribe.
package chat

import (
	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/multiagent"
)

// ReplyMsg carries the outcome of one turn. Gen identifies the request so
// replies to cancelled turns can be discarded.
type ReplyMsg struct {
	Reply *multiagent.Reply
	Err   error
	Gen   uint64
}

// SystemMsg adds an informational line to the transcript.
type SystemMsg struct {
	Content string
	IsError bool
}

// SnapshotMsg carries the result of /status.
type SnapshotMsg struct {
	Snapshot multiagent.Snapshot
	Err      error
}

// HistoryMsg carries the result of /history.
type HistoryMsg struct {
	Turns []domain.Turn
	Err   error
}

// ResetMsg reports the outcome of /reset.
type ResetMsg struct {
	Err error
}

// EventMsg forwards a bus event for the active session.
type EventMsg struct {
	Event domain.Event
}

// QuitMsg signals the program to exit.
type QuitMsg struct{}
