package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/channel"
)

// handleCmd runs one turn in the background. gen tags the result so a
// cancelled turn's reply is ignored.
func handleCmd(ctx context.Context, team channel.Team, sessionID, utterance string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		reply, err := team.Handle(ctx, sessionID, utterance)
		return ReplyMsg{Reply: reply, Err: err, Gen: gen}
	}
}

func snapshotCmd(team channel.Team, sessionID string) tea.Cmd {
	return func() tea.Msg {
		snap, err := team.Snapshot(context.Background(), sessionID)
		return SnapshotMsg{Snapshot: snap, Err: err}
	}
}

func historyCmd(team channel.Team, sessionID string) tea.Cmd {
	return func() tea.Msg {
		turns, err := team.History(context.Background(), sessionID)
		return HistoryMsg{Turns: turns, Err: err}
	}
}

func resetCmd(team channel.Team, sessionID string) tea.Cmd {
	return func() tea.Msg {
		return ResetMsg{Err: team.Reset(context.Background(), sessionID)}
	}
}
