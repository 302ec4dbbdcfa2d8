package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/security"
)

var errIsDir = errors.New("is a directory")

const (
	defaultMaxReadBytes = 64 * 1024
	defaultListDepth    = 3
	maxListEntries      = 500
	maxSearchMatches    = 200
)

// skippedDirs are noise directories left out of list and search unless
// the caller asks for everything.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"dist":         true,
	"build":        true,
}

// FilesystemTool provides sandboxed read, list, search and write operations
// over the loaded repository.
type FilesystemTool struct {
	backend      FilesystemBackend
	sandbox      *security.Sandbox
	maxReadBytes int
	logger       *slog.Logger
	actions      ActionMap[filesystemParams]
}

// NewFilesystemTool creates a sandboxed filesystem tool backed by the given FilesystemBackend.
// maxReadBytes caps a single read; 0 uses the default.
func NewFilesystemTool(backend FilesystemBackend, sandbox *security.Sandbox, maxReadBytes int, logger *slog.Logger) *FilesystemTool {
	if maxReadBytes <= 0 {
		maxReadBytes = defaultMaxReadBytes
	}
	t := &FilesystemTool{backend: backend, sandbox: sandbox, maxReadBytes: maxReadBytes, logger: logger}
	t.actions = ActionMap[filesystemParams]{
		"read":   t.readFile,
		"list":   t.listDir,
		"search": t.search,
		"write":  t.writeFile,
	}
	return t
}

func (t *FilesystemTool) Name() string { return "filesystem" }
func (t *FilesystemTool) Description() string {
	return "Read, list, search and write files inside the loaded repository. Paths are relative to the repository root."
}
func (t *FilesystemTool) Operations() []string { return t.actions.Names() }

func (t *FilesystemTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"action": {"type": "string", "enum": ["list", "read", "search", "write"], "description": "The file operation to perform"},
				"path": {"type": "string", "description": "File or directory path relative to the repository root"},
				"pattern": {"type": "string", "description": "Glob matched against file names or relative paths (search only), e.g. *.go or docs/*.md"},
				"contains": {"type": "string", "description": "Only return files whose content contains this text (search only)"},
				"depth": {"type": "integer", "minimum": 1, "maximum": 10, "description": "How deep to list (list only, default 3)"},
				"all": {"type": "boolean", "description": "Include .git, node_modules, vendor and similar directories"},
				"content": {"type": "string", "description": "Content to write (write only)"}
			},
			"required": ["action"]
		}`),
	}
}

type filesystemParams struct {
	Action   string `json:"action"`
	Path     string `json:"path"`
	Pattern  string `json:"pattern,omitempty"`
	Contains string `json:"contains,omitempty"`
	Depth    int    `json:"depth,omitempty"`
	All      bool   `json:"all,omitempty"`
	Content  string `json:"content,omitempty"`
}

func (t *FilesystemTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.filesystem", t.logger, params,
		Dispatch(t.Name(), func(p filesystemParams) string { return p.Action }, t.actions),
	)
}

func (t *FilesystemTool) ioError(op, p string, err error) error {
	return domain.NewExternalToolError(t.Name(), op, t.sandbox.Rel(p), err)
}

func (t *FilesystemTool) readFile(_ context.Context, p filesystemParams) (any, error) {
	if p.Path == "" {
		return nil, domain.NewDomainError("tool.filesystem.read", domain.ErrInvalidInput, "'path' is required")
	}
	resolved, err := t.sandbox.Resolve(p.Path)
	if err != nil {
		return nil, err
	}

	data, size, err := t.backend.ReadFile(resolved, t.maxReadBytes)
	if err != nil {
		return nil, t.ioError("read", resolved, err)
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(trimPartialRune(data)) {
		return TextResult(fmt.Sprintf("%s is a binary file (%d bytes); content not shown", t.sandbox.Rel(resolved), size)), nil
	}

	t.logger.Debug("filesystem read", "path", resolved, "size", size)
	content := string(data)
	if size > int64(len(data)) {
		content += fmt.Sprintf("\n\n[truncated: showing %d of %d bytes]", len(data), size)
	}
	return TextResult(content), nil
}

// trimPartialRune drops a multi-byte rune cut off by the read limit.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

func (t *FilesystemTool) writeFile(_ context.Context, p filesystemParams) (any, error) {
	if p.Path == "" {
		return nil, domain.NewDomainError("tool.filesystem.write", domain.ErrInvalidInput, "'path' is required")
	}
	resolved, err := t.sandbox.Resolve(p.Path)
	if err != nil {
		return nil, err
	}
	if resolved == t.sandbox.Root() {
		return nil, domain.NewDomainError("tool.filesystem.write", domain.ErrInvalidInput, "cannot write to the repository root")
	}

	if err := t.backend.WriteFile(resolved, []byte(p.Content), 0o644); err != nil {
		return nil, t.ioError("write", resolved, err)
	}

	t.logger.Debug("filesystem write", "path", resolved, "size", len(p.Content))
	return TextResult(fmt.Sprintf("wrote %d bytes to %s", len(p.Content), t.sandbox.Rel(resolved))), nil
}

func (t *FilesystemTool) listDir(_ context.Context, p filesystemParams) (any, error) {
	resolved, err := t.sandbox.Resolve(p.Path)
	if err != nil {
		return nil, err
	}
	depth := p.Depth
	if depth <= 0 {
		depth = defaultListDepth
	}

	var (
		sb        strings.Builder
		count     int
		truncated bool
	)
	err = t.walk(resolved, depth, p.All, func(rel string, isDir bool, level int) bool {
		if count >= maxListEntries {
			truncated = true
			return false
		}
		count++
		sb.WriteString(strings.Repeat("  ", level))
		sb.WriteString(path.Base(rel))
		if isDir {
			sb.WriteByte('/')
		}
		sb.WriteByte('\n')
		return true
	})
	if err != nil {
		return nil, t.ioError("list", resolved, err)
	}
	if count == 0 {
		return TextResult(fmt.Sprintf("%s is empty", displayPath(t.sandbox.Rel(resolved)))), nil
	}
	if truncated {
		fmt.Fprintf(&sb, "[truncated after %d entries]\n", maxListEntries)
	}
	return TextResult(sb.String()), nil
}

func (t *FilesystemTool) search(_ context.Context, p filesystemParams) (any, error) {
	if p.Pattern == "" && p.Contains == "" {
		return nil, domain.NewDomainError("tool.filesystem.search", domain.ErrInvalidInput, "'pattern' or 'contains' is required")
	}
	if p.Pattern != "" {
		if _, err := path.Match(p.Pattern, ""); err != nil {
			return nil, domain.NewDomainError("tool.filesystem.search", domain.ErrInvalidInput, fmt.Sprintf("bad pattern %q: %v", p.Pattern, err))
		}
	}
	resolved, err := t.sandbox.Resolve(p.Path)
	if err != nil {
		return nil, err
	}

	var matches []string
	err = t.walk(resolved, 64, p.All, func(rel string, isDir bool, _ int) bool {
		if isDir || len(matches) >= maxSearchMatches {
			return len(matches) < maxSearchMatches
		}
		if p.Pattern != "" && !matchGlob(p.Pattern, rel) {
			return true
		}
		if p.Contains != "" {
			data, _, err := t.backend.ReadFile(filepath.Join(t.sandbox.Root(), filepath.FromSlash(rel)), t.maxReadBytes)
			if err != nil || !bytes.Contains(data, []byte(p.Contains)) {
				return true
			}
		}
		matches = append(matches, rel)
		return true
	})
	if err != nil {
		return nil, t.ioError("search", resolved, err)
	}

	if len(matches) == 0 {
		return TextResult("no matching files"), nil
	}
	out := strings.Join(matches, "\n")
	if len(matches) >= maxSearchMatches {
		out += fmt.Sprintf("\n[stopped after %d matches]", maxSearchMatches)
	}
	return TextResult(out), nil
}

// matchGlob matches pattern against the base name, or against the whole
// relative path when the pattern contains a separator.
func matchGlob(pattern, rel string) bool {
	if strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, rel)
		return ok
	}
	ok, _ := path.Match(pattern, path.Base(rel))
	return ok
}

// walk visits entries under dir breadth-first per directory, sorted by the
// backend, down to maxDepth levels. visit returns false to stop. Paths
// passed to visit are slash-separated and relative to the sandbox root.
func (t *FilesystemTool) walk(dir string, maxDepth int, all bool, visit func(rel string, isDir bool, level int) bool) error {
	var rec func(abs string, level int) (bool, error)
	rec = func(abs string, level int) (bool, error) {
		entries, err := t.backend.ReadDir(abs)
		if err != nil {
			return false, err
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() && !all && skippedDirs[name] {
				continue
			}
			child := filepath.Join(abs, name)
			// Symlinks are listed but never followed out of the sandbox.
			if e.Type()&os.ModeSymlink != 0 {
				if _, err := t.sandbox.ValidatePath(child); err != nil {
					continue
				}
			}
			if !visit(filepath.ToSlash(t.sandbox.Rel(child)), e.IsDir(), level) {
				return false, nil
			}
			if e.IsDir() && level+1 < maxDepth {
				cont, err := rec(child, level+1)
				if err != nil || !cont {
					return cont, err
				}
			}
		}
		return true, nil
	}
	_, err := rec(dir, 0)
	return err
}

func displayPath(rel string) string {
	if rel == "" || rel == "." {
		return "repository root"
	}
	return rel
}
