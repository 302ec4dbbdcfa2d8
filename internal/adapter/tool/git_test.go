package tool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

var defaultHosts = []string{"github.com"}

func TestGitClone(t *testing.T) {
	sb := newTestSandbox(t)
	require.NoError(t, os.WriteFile(filepath.Join(sb.Root(), "stale.txt"), []byte("old"), 0o644))
	backend := &recordingShell{}
	g := NewGitTool(backend, sb, defaultHosts, nopLogger())

	res, err := Invoke(context.Background(), g, "clone", map[string]any{"url": "https://GitHub.com/agno-agi/agno.git"})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "cloned https://github.com/agno-agi/agno.git")

	require.Len(t, backend.calls, 1)
	assert.Equal(t, []string{"git", "clone", "--filter=blob:none", "--quiet", "--", "https://github.com/agno-agi/agno.git", "."}, backend.calls[0])
	assert.Equal(t, sb.Root(), backend.dirs[0])
	_, err = os.Stat(filepath.Join(sb.Root(), "stale.txt"))
	assert.True(t, os.IsNotExist(err), "previous checkout is removed before cloning")
}

func TestGitCloneAlreadyLoaded(t *testing.T) {
	sb := newTestSandbox(t)
	require.NoError(t, os.Mkdir(filepath.Join(sb.Root(), ".git"), 0o755))
	backend := &recordingShell{stdout: "https://github.com/owner/repo.git\n"}
	g := NewGitTool(backend, sb, defaultHosts, nopLogger())

	res, err := Invoke(context.Background(), g, "clone", map[string]any{"url": "https://github.com/owner/repo"})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "already loaded")
	assert.Len(t, backend.calls, 1, "only the origin lookup runs")
}

func TestGitCloneRejectsBadURLs(t *testing.T) {
	backend := &recordingShell{}
	g := NewGitTool(backend, newTestSandbox(t), defaultHosts, nopLogger())

	tests := []struct {
		url  string
		want error
	}{
		{"", domain.ErrInvalidInput},
		{"https://evil.example.com/a/b", domain.ErrURLBlocked},
		{"file:///etc", domain.ErrURLBlocked},
		{"https://user:pw@github.com/a/b", domain.ErrURLBlocked},
	}
	for _, tt := range tests {
		_, err := Invoke(context.Background(), g, "clone", map[string]any{"url": tt.url})
		assert.ErrorIs(t, err, tt.want, tt.url)
	}
	assert.Empty(t, backend.calls)
}

func TestGitCloneFailure(t *testing.T) {
	backend := &recordingShell{stderr: "fatal: repository not found", err: errors.New("exit status 128")}
	g := NewGitTool(backend, newTestSandbox(t), defaultHosts, nopLogger())

	res, err := Invoke(context.Background(), g, "clone", map[string]any{"url": "https://github.com/owner/missing"})
	assert.ErrorIs(t, err, domain.ErrExternalTool)
	assert.Contains(t, res.Content, "repository not found")
}

func TestGitInspectionNeedsCheckout(t *testing.T) {
	g := NewGitTool(&recordingShell{}, newTestSandbox(t), defaultHosts, nopLogger())
	for _, op := range []string{"status", "log", "branches"} {
		res, err := Invoke(context.Background(), g, op, nil)
		assert.ErrorIs(t, err, domain.ErrExternalTool, op)
		assert.Contains(t, res.Content, "no repository loaded")
	}
}

func TestGitInspection(t *testing.T) {
	sb := newTestSandbox(t)
	require.NoError(t, os.Mkdir(filepath.Join(sb.Root(), ".git"), 0o755))
	backend := &recordingShell{stdout: "ok"}
	g := NewGitTool(backend, sb, defaultHosts, nopLogger())

	_, err := Invoke(context.Background(), g, "status", nil)
	require.NoError(t, err)
	_, err = Invoke(context.Background(), g, "log", map[string]any{"count": 500})
	require.NoError(t, err)
	_, err = Invoke(context.Background(), g, "branches", nil)
	require.NoError(t, err)

	require.Len(t, backend.calls, 3)
	assert.Equal(t, []string{"git", "status", "--short", "--branch"}, backend.calls[0])
	assert.Equal(t, "200", backend.calls[1][len(backend.calls[1])-1], "log count is capped")
	assert.Equal(t, []string{"git", "branch", "--all", "--no-color"}, backend.calls[2])
}

func TestGitOrigin(t *testing.T) {
	sb := newTestSandbox(t)
	backend := &recordingShell{stdout: "https://github.com/owner/repo.git\n"}
	g := NewGitTool(backend, sb, defaultHosts, nopLogger())

	_, err := g.Origin(context.Background())
	assert.ErrorIs(t, err, domain.ErrExternalTool, "no checkout")
	assert.Empty(t, backend.calls)

	require.NoError(t, os.Mkdir(filepath.Join(sb.Root(), ".git"), 0o755))
	origin, err := g.Origin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/owner/repo.git", origin)
	assert.Equal(t, [][]string{{"git", "remote", "get-url", "origin"}}, backend.calls)
}
