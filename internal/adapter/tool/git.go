package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/security"
)

const (
	defaultLogCount = 20
	maxLogCount     = 200
)

// GitTool runs a fixed set of git commands against the sandboxed repository.
type GitTool struct {
	backend      ShellBackend
	sandbox      *security.Sandbox
	allowedHosts []string
	logger       *slog.Logger
	actions      ActionMap[gitParams]
}

// NewGitTool creates a git tool. allowedHosts limits clone sources; an
// empty list allows any public host.
func NewGitTool(backend ShellBackend, sandbox *security.Sandbox, allowedHosts []string, logger *slog.Logger) *GitTool {
	t := &GitTool{backend: backend, sandbox: sandbox, allowedHosts: allowedHosts, logger: logger}
	t.actions = ActionMap[gitParams]{
		"clone":    t.clone,
		"status":   t.status,
		"log":      t.log,
		"branches": t.branches,
	}
	return t
}

func (t *GitTool) Name() string { return "git" }
func (t *GitTool) Description() string {
	return "Clone a public repository into the workspace and inspect its git status, history and branches"
}
func (t *GitTool) Operations() []string { return t.actions.Names() }

func (t *GitTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"action": {"type": "string", "enum": ["branches", "clone", "log", "status"]},
				"url": {"type": "string", "description": "Repository URL, e.g. https://github.com/owner/repo (clone only)"},
				"count": {"type": "integer", "minimum": 1, "maximum": 200, "description": "Number of commits (log only, default 20)"}
			},
			"required": ["action"]
		}`),
	}
}

type gitParams struct {
	Action string `json:"action"`
	URL    string `json:"url,omitempty"`
	Count  int    `json:"count,omitempty"`
}

func (t *GitTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.git", t.logger, params,
		Dispatch(t.Name(), func(p gitParams) string { return p.Action }, t.actions),
	)
}

func (t *GitTool) run(ctx context.Context, op string, args ...string) (string, error) {
	stdout, stderr, err := t.backend.Execute(ctx, "git", args, t.sandbox.Root())
	if err != nil {
		return "", commandError(t.Name(), op, "git "+args[0], stderr, err)
	}
	return stdout, nil
}

func (t *GitTool) clone(ctx context.Context, p gitParams) (any, error) {
	if p.URL == "" {
		return nil, domain.NewDomainError("tool.git.clone", domain.ErrInvalidInput, "'url' is required")
	}
	normalized, err := security.ValidateRepoURL(p.URL, t.allowedHosts)
	if err != nil {
		return nil, err
	}

	if t.hasCheckout() {
		origin, err := t.run(ctx, "clone", "remote", "get-url", "origin")
		if err == nil && sameRepo(strings.TrimSpace(origin), normalized) {
			return fmt.Sprintf("%s is already loaded in the workspace", normalized), nil
		}
	}

	if err := t.sandbox.Clean(); err != nil {
		return nil, domain.NewExternalToolError(t.Name(), "clone", "prepare workspace", err)
	}
	if _, err := t.run(ctx, "clone", "clone", "--filter=blob:none", "--quiet", "--", normalized, "."); err != nil {
		return nil, err
	}

	t.logger.Info("repository cloned", "url", normalized, "root", t.sandbox.Root())
	return fmt.Sprintf("cloned %s into the workspace", normalized), nil
}

// Origin returns the origin remote of the workspace checkout.
func (t *GitTool) Origin(ctx context.Context) (string, error) {
	if err := t.requireCheckout("origin"); err != nil {
		return "", err
	}
	out, err := t.run(ctx, "origin", "remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (t *GitTool) hasCheckout() bool {
	info, err := os.Stat(filepath.Join(t.sandbox.Root(), ".git"))
	return err == nil && info.IsDir()
}

func sameRepo(a, b string) bool {
	norm := func(s string) string {
		return strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git"))
	}
	return norm(a) == norm(b)
}

func (t *GitTool) requireCheckout(op string) error {
	if !t.hasCheckout() {
		return domain.NewExternalToolError(t.Name(), op, "no repository loaded in the workspace", nil)
	}
	return nil
}

func (t *GitTool) status(ctx context.Context, _ gitParams) (any, error) {
	if err := t.requireCheckout("status"); err != nil {
		return nil, err
	}
	return t.run(ctx, "status", "status", "--short", "--branch")
}

func (t *GitTool) log(ctx context.Context, p gitParams) (any, error) {
	if err := t.requireCheckout("log"); err != nil {
		return nil, err
	}
	n := p.Count
	if n <= 0 {
		n = defaultLogCount
	}
	if n > maxLogCount {
		n = maxLogCount
	}
	return t.run(ctx, "log", "log", "--no-color", "--date=short",
		"--pretty=format:%h %ad %an %s", "-n", strconv.Itoa(n))
}

func (t *GitTool) branches(ctx context.Context, _ gitParams) (any, error) {
	if err := t.requireCheckout("branches"); err != nil {
		return nil, err
	}
	return t.run(ctx, "branches", "branch", "--all", "--no-color")
}
