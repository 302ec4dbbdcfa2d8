package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/tracer"
	"github.com/saurav-sabu/RepoScribe/internal/security"
)

const maxDiagnosticBytes = 2048

// ShellTool executes allowlisted commands with the sandbox as working directory.
type ShellTool struct {
	backend         ShellBackend
	allowedCommands map[string]bool
	sandbox         *security.Sandbox
	logger          *slog.Logger
}

// NewShellTool creates a shell tool with an allowlist of commands, backed by the given ShellBackend.
func NewShellTool(backend ShellBackend, allowed []string, sandbox *security.Sandbox, logger *slog.Logger) *ShellTool {
	m := make(map[string]bool, len(allowed))
	for _, cmd := range allowed {
		m[cmd] = true
	}
	return &ShellTool{
		backend:         backend,
		allowedCommands: m,
		sandbox:         sandbox,
		logger:          logger,
	}
}

func (t *ShellTool) Name() string { return "shell" }
func (t *ShellTool) Description() string {
	return "Run an allowed command inside the repository"
}
func (t *ShellTool) Operations() []string { return []string{"exec"} }

func (t *ShellTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"action": {"type": "string", "enum": ["exec"]},
				"command": {"type": "string", "description": "The command to execute"},
				"args": {"type": "array", "items": {"type": "string"}, "description": "Command arguments"},
				"workdir": {"type": "string", "description": "Working directory relative to the repository root"}
			},
			"required": ["action", "command"]
		}`),
	}
}

type shellParams struct {
	Action  string   `json:"action"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
	WorkDir string   `json:"workdir,omitempty"`
}

func (t *ShellTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.shell", t.logger, params,
		Dispatch(t.Name(), func(p shellParams) string { return p.Action }, ActionMap[shellParams]{
			"exec": t.exec,
		}),
	)
}

func (t *ShellTool) exec(ctx context.Context, p shellParams) (any, error) {
	if err := t.validateCommand(p.Command); err != nil {
		return nil, err
	}
	workDir, err := t.sandbox.Resolve(p.WorkDir)
	if err != nil {
		return nil, err
	}
	if err := t.validateArgs(p.Command, workDir, p.Args); err != nil {
		return nil, err
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(tracer.StringAttr("shell.command", p.Command))

	stdout, stderr, err := t.backend.Execute(ctx, p.Command, p.Args, workDir)
	if err != nil {
		t.logger.Debug("shell command failed", "command", p.Command, "error", err)
		return nil, commandError(t.Name(), "exec", p.Command, stderr, err)
	}

	t.logger.Debug("shell command completed", "command", p.Command)
	output := stdout
	if stderr != "" {
		output += "\nSTDERR:\n" + stderr
	}
	return output, nil
}

// validateCommand checks the base command name is in the allowlist.
func (t *ShellTool) validateCommand(command string) error {
	base := filepath.Base(command)
	if command == "" || base != command || !t.allowedCommands[base] {
		return domain.NewDomainError("ShellTool.validateCommand", domain.ErrCommandNotAllowed,
			fmt.Sprintf("command %q not in allowlist", command))
	}
	return nil
}

// deniedFlags are options that run other programs or write files.
var deniedFlags = map[string][]string{
	"find": {"-exec", "-execdir", "-ok", "-okdir", "-delete", "-fprint", "-fprint0", "-fprintf", "-fls"},
}

// validateArgs resolves every operand, and every --flag=value value,
// against workDir and requires it to stay inside the sandbox after
// symlinks are followed. Flags that spawn commands are refused.
func (t *ShellTool) validateArgs(command, workDir string, args []string) error {
	for _, a := range args {
		for _, denied := range deniedFlags[command] {
			if a == denied {
				return domain.NewDomainError("ShellTool.validateArgs", domain.ErrCommandNotAllowed,
					fmt.Sprintf("%s %s is not allowed", command, a))
			}
		}

		v := a
		if strings.HasPrefix(v, "-") {
			_, after, ok := strings.Cut(v, "=")
			if !ok {
				// An attached value such as -f/etc/passwd cannot be checked.
				if strings.ContainsRune(v, '/') {
					return domain.NewDomainError("ShellTool.validateArgs", domain.ErrSandboxViolation, v)
				}
				continue
			}
			v = after
		}
		if strings.HasPrefix(v, "~") {
			return domain.NewDomainError("ShellTool.validateArgs", domain.ErrSandboxViolation, v)
		}
		if !filepath.IsAbs(v) {
			v = filepath.Join(workDir, v)
		}
		if _, err := t.sandbox.ValidatePath(v); err != nil {
			return err
		}
	}
	return nil
}

// commandError builds an ExternalToolError from a failed command.
func commandError(toolName, op, command, stderr string, err error) error {
	var exitErr *exec.ExitError
	diag := command
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewExternalToolError(toolName, op, command+" timed out", domain.ErrTimeout)
	case errors.As(err, &exitErr):
		diag = fmt.Sprintf("%s exited with status %d", command, exitErr.ExitCode())
	}
	if s := strings.TrimSpace(stderr); s != "" {
		if len(s) > maxDiagnosticBytes {
			s = "..." + s[len(s)-maxDiagnosticBytes:]
		}
		diag += ": " + s
	}
	return domain.NewExternalToolError(toolName, op, diag, err)
}
