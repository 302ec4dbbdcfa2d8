package tool

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// recordingShell records calls and replays a canned answer.
type recordingShell struct {
	calls  [][]string
	dirs   []string
	stdout string
	stderr string
	err    error
	// respond overrides the canned answer when set.
	respond func(args []string) (string, string, error)
}

func (r *recordingShell) Name() string { return "recording" }

func (r *recordingShell) Execute(_ context.Context, command string, args []string, workDir string) (string, string, error) {
	r.calls = append(r.calls, append([]string{command}, args...))
	r.dirs = append(r.dirs, workDir)
	if r.respond != nil {
		return r.respond(args)
	}
	return r.stdout, r.stderr, r.err
}

func TestShellExec(t *testing.T) {
	sb := newTestSandbox(t)
	require.NoError(t, os.Mkdir(filepath.Join(sb.Root(), "src"), 0o755))
	backend := &recordingShell{stdout: "a.go\n"}
	sh := NewShellTool(backend, []string{"ls"}, sb, nopLogger())

	res, err := Invoke(context.Background(), sh, "exec", map[string]any{"command": "ls", "args": []string{"-la"}, "workdir": "src"})
	require.NoError(t, err)
	assert.Equal(t, "a.go\n", res.Content)
	assert.Equal(t, [][]string{{"ls", "-la"}}, backend.calls)
	assert.Equal(t, filepath.Join(sb.Root(), "src"), backend.dirs[0])
}

func TestShellCommandNotAllowed(t *testing.T) {
	sh := NewShellTool(&recordingShell{}, []string{"ls"}, newTestSandbox(t), nopLogger())

	for _, cmd := range []string{"rm", "/bin/ls", ""} {
		_, err := Invoke(context.Background(), sh, "exec", map[string]any{"command": cmd})
		assert.ErrorIs(t, err, domain.ErrCommandNotAllowed, cmd)
	}
}

func TestShellArgsStayInSandbox(t *testing.T) {
	backend := &recordingShell{}
	sh := NewShellTool(backend, []string{"cat"}, newTestSandbox(t), nopLogger())

	for _, arg := range []string{"/etc/passwd", "../../secret", "--file=/etc/shadow", "~/.ssh/id_rsa"} {
		_, err := Invoke(context.Background(), sh, "exec", map[string]any{"command": "cat", "args": []string{arg}})
		assert.ErrorIs(t, err, domain.ErrSandboxViolation, arg)
	}
	assert.Empty(t, backend.calls)

	_, err := Invoke(context.Background(), sh, "exec", map[string]any{"command": "cat", "workdir": "../.."})
	assert.ErrorIs(t, err, domain.ErrSandboxViolation)
}

func TestShellArgsFollowSymlinks(t *testing.T) {
	sb := newTestSandbox(t)
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("TOP-SECRET"), 0o600))
	require.NoError(t, os.Symlink(secret, filepath.Join(sb.Root(), "innocent")))
	require.NoError(t, os.Symlink(outside, filepath.Join(sb.Root(), "docs")))
	require.NoError(t, os.Mkdir(filepath.Join(sb.Root(), "src"), 0o755))

	backend := &recordingShell{}
	sh := NewShellTool(backend, []string{"cat"}, sb, nopLogger())

	for _, tc := range []struct {
		args    []string
		workdir string
	}{
		{[]string{"innocent"}, ""},
		{[]string{"docs/secret.txt"}, ""},
		{[]string{"../innocent"}, "src"},
		{[]string{"--from=innocent"}, ""},
		{[]string{"-f/etc/passwd"}, ""},
	} {
		_, err := Invoke(context.Background(), sh, "exec", map[string]any{"command": "cat", "args": tc.args, "workdir": tc.workdir})
		assert.ErrorIs(t, err, domain.ErrSandboxViolation, tc.args[0])
	}
	assert.Empty(t, backend.calls)

	require.NoError(t, os.WriteFile(filepath.Join(sb.Root(), "src", "main.go"), []byte("package main"), 0o644))
	_, err := Invoke(context.Background(), sh, "exec", map[string]any{"command": "cat", "args": []string{"main.go"}, "workdir": "src"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"cat", "main.go"}}, backend.calls)
}

func TestShellFindCannotRunCommands(t *testing.T) {
	backend := &recordingShell{}
	sh := NewShellTool(backend, []string{"find"}, newTestSandbox(t), nopLogger())

	for _, flag := range []string{"-exec", "-execdir", "-ok", "-delete", "-fprint"} {
		_, err := Invoke(context.Background(), sh, "exec", map[string]any{
			"command": "find", "args": []string{".", flag, "sh", "-c", "id", ";"},
		})
		assert.ErrorIs(t, err, domain.ErrCommandNotAllowed, flag)
	}
	assert.Empty(t, backend.calls)

	_, err := Invoke(context.Background(), sh, "exec", map[string]any{"command": "find", "args": []string{".", "-name", "*.go"}})
	require.NoError(t, err)
	assert.Len(t, backend.calls, 1)
}

func TestShellFailureIsExternalError(t *testing.T) {
	sb := newTestSandbox(t)
	sh := NewShellTool(NewLocalShellBackend(5*time.Second), []string{"ls"}, sb, nopLogger())

	res, err := Invoke(context.Background(), sh, "exec", map[string]any{"command": "ls", "args": []string{"does-not-exist"}})
	var ext *domain.ExternalToolError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, domain.CodeExternalTool, res.Code)
	assert.Contains(t, res.Content, "ls exited with status")
}

func TestShellTimeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	sh := NewShellTool(NewLocalShellBackend(50*time.Millisecond), []string{"sleep"}, newTestSandbox(t), nopLogger())

	res, err := Invoke(context.Background(), sh, "exec", map[string]any{"command": "sleep", "args": []string{"5"}})
	assert.ErrorIs(t, err, domain.ErrExternalTool)
	assert.Contains(t, res.Content, "timed out")
	assert.True(t, res.IsRetryable)
}
