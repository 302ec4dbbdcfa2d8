package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// Sandbox confines file and exec tools to one workspace directory.
type Sandbox struct {
	root string // absolute, resolved workspace root
}

// NewSandbox creates a sandbox rooted at the given directory, which must exist.
func NewSandbox(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("eval symlinks for sandbox root: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root %q is not a directory", resolved)
	}

	return &Sandbox{root: resolved}, nil
}

// EnsureSandbox creates root (and parents) when missing, then opens it.
func EnsureSandbox(root string) (*Sandbox, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create sandbox root: %w", err)
	}
	return NewSandbox(root)
}

// ValidatePath checks that a requested path resolves to within the sandbox.
// It resolves symlinks after computing the absolute path.
func (s *Sandbox) ValidatePath(requested string) (string, error) {
	abs, err := filepath.Abs(requested)
	if err != nil {
		return "", domain.NewDomainError("Sandbox.ValidatePath", domain.ErrSandboxViolation, err.Error())
	}

	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", domain.NewDomainError("Sandbox.ValidatePath", domain.ErrSandboxViolation, err.Error())
	}

	if !s.isWithinRoot(resolved) {
		return "", domain.NewDomainError("Sandbox.ValidatePath", domain.ErrSandboxViolation,
			fmt.Sprintf("resolved %q is outside root %q", resolved, s.root))
	}

	return resolved, nil
}

// Resolve interprets p relative to the root (absolute paths are taken as-is)
// and validates the result.
func (s *Sandbox) Resolve(p string) (string, error) {
	if p == "" {
		p = "."
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	return s.ValidatePath(p)
}

// Rel returns p relative to the root, for display to the model.
func (s *Sandbox) Rel(p string) string {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// Root returns the sandbox root directory.
func (s *Sandbox) Root() string { return s.root }

// IsEmpty reports whether the root has no entries.
func (s *Sandbox) IsEmpty() (bool, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return false, fmt.Errorf("read sandbox root: %w", err)
	}
	return len(entries) == 0, nil
}

// Clean removes everything below the root; the root itself stays.
func (s *Sandbox) Clean() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read sandbox root: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return fmt.Errorf("clean sandbox: %w", err)
		}
	}
	return nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of abs
// and appends the not-yet-existing remainder.
func resolveExisting(abs string) (string, error) {
	var rest []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := append([]string{resolved}, rest...)
			return filepath.Join(parts...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

func (s *Sandbox) isWithinRoot(path string) bool {
	return path == s.root || strings.HasPrefix(path, s.root+string(os.PathSeparator))
}
