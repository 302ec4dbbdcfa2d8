// Package channel holds the front ends that carry utterances to the team:
// a line-oriented REPL and a JSON HTTP API.
package channel

import (
	"context"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/multiagent"
)

// Team is the orchestrator surface a front end needs.
type Team interface {
	Handle(ctx context.Context, sessionID, utterance string) (*multiagent.Reply, error)
	Reset(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)
	Snapshot(ctx context.Context, sessionID string) (multiagent.Snapshot, error)
}

var _ Team = (*multiagent.Team)(nil)
