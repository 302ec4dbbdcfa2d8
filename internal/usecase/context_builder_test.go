package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/sessionstore"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

func TestSystemPrompt_IncludesContext(t *testing.T) {
	wctx := domain.WorkerContext{
		Repository: domain.Repository{URL: "https://github.com/acme/widget", LocalPath: "/work/repo", Loaded: true},
		Confirmed: []domain.ConfirmedOutput{
			{WorkerID: "dependency_analysis_agent", Content: "  cobra v1.10  "},
		},
	}
	prompt := SystemPrompt(analyzerSpec(), wctx)

	assert.Contains(t, prompt, "You are File Analyzer Agent, the team's universal repository analyzer.")
	assert.Contains(t, prompt, "- Inspect files only.")
	assert.Contains(t, prompt, "https://github.com/acme/widget")
	assert.Contains(t, prompt, "cloned into the workspace")
	assert.Contains(t, prompt, "### dependency_analysis_agent\ncobra v1.10\n")
	for _, rule := range informationBoundary {
		assert.Contains(t, prompt, rule)
	}
}

func TestSystemPrompt_OmitsEmptySections(t *testing.T) {
	prompt := SystemPrompt(domain.WorkerSpec{Name: "X", Role: "Tester"}, domain.WorkerContext{})
	assert.NotContains(t, prompt, "## Instructions")
	assert.NotContains(t, prompt, "## Repository")
	assert.NotContains(t, prompt, "## Confirmed analysis")
}

func TestTaskPrompt(t *testing.T) {
	plain := TaskPrompt(domain.Task{Text: "write a README"})
	assert.Equal(t, "write a README", plain)

	amended := TaskPrompt(domain.Task{
		Text:        "write a README",
		Attachments: []domain.Attachment{{Name: "notes", Path: "docs/notes.md", Content: "use MIT"}},
		Previous:    "# Widget",
		Amendment:   "mention the license",
	})
	assert.Contains(t, amended, "--- attachment: notes (docs/notes.md) ---\nuse MIT")
	assert.Contains(t, amended, "## Your previous proposal\n# Widget")
	assert.Contains(t, amended, "## User feedback\nmention the license")
}

func TestHistoryMessages_Budget(t *testing.T) {
	counter := newEstimatingCounter()
	turns := []domain.Turn{
		domain.NewTurn(domain.SpeakerUser, strings.Repeat("a", 400)),
		domain.NewTurn(domain.SpeakerAssistant, strings.Repeat("b", 40)),
		domain.NewTurn(domain.SpeakerUser, strings.Repeat("c", 40)),
	}

	all := HistoryMessages(turns, 0, counter)
	require.Len(t, all, 3)
	assert.Equal(t, domain.RoleAssistant, all[1].Role)

	// 40 chars = 10 tokens + 4 overhead each; the 400-char turn does not fit.
	recent := HistoryMessages(turns, 30, counter)
	require.Len(t, recent, 2)
	assert.Equal(t, turns[1].Text, recent[0].Content)

	// The newest turn is kept even when it alone exceeds the budget.
	tiny := HistoryMessages(turns, 1, counter)
	require.Len(t, tiny, 1)
	assert.Equal(t, turns[2].Text, tiny[0].Content)

	assert.Nil(t, HistoryMessages(nil, 10, counter))
}

func TestContextBuilder_Build(t *testing.T) {
	cb := NewContextBuilder(0, nil)
	history := []domain.Turn{domain.NewTurn(domain.SpeakerUser, "hi"), domain.NewTurn(domain.SpeakerAssistant, "hello")}
	msgs := cb.Build(analyzerSpec(), domain.WorkerContext{}, history, domain.Task{Text: "next"})
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "next", msgs[3].Content)
}

func TestTokenCounter_FallsBackToEstimate(t *testing.T) {
	c := NewTokenCounter(newTestLogger())
	c.load = func(string) (*tiktoken.Tiktoken, error) { return nil, errors.New("offline") }
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 3, c.Count("twelve chars"))
	assert.Equal(t, 1, c.Count("héé"))
}

func TestStaleSessions(t *testing.T) {
	ctx := context.Background()
	store := sessionstore.NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.Append(ctx, "old", domain.Turn{Speaker: domain.SpeakerUser, Text: "x", Timestamp: now.Add(-3 * time.Hour)}))
	require.NoError(t, store.Append(ctx, "fresh", domain.Turn{Speaker: domain.SpeakerUser, Text: "y", Timestamp: now}))

	stale, err := StaleSessions(ctx, store, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, stale)

	none, err := StaleSessions(ctx, store, 0, now)
	require.NoError(t, err)
	assert.Empty(t, none)

	reaped, err := ReapStaleSessions(ctx, store, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, reaped)
	infos, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "fresh", infos[0].ID)
}
