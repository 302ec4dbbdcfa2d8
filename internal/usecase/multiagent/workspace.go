package multiagent

import (
	"context"
	"os"
	"path/filepath"

	"github.com/saurav-sabu/RepoScribe/internal/security"
)

// OriginReader reports the origin remote of the workspace checkout.
type OriginReader interface {
	Origin(ctx context.Context) (string, error)
}

// Workspace is the sandboxed checkout shared by the file, shell and git
// tools. It holds at most one repository.
type Workspace struct {
	sandbox *security.Sandbox
	origin  OriginReader
}

// NewWorkspace wraps the tools' sandbox. origin identifies the checked-out
// repository; without it no checkout is ever trusted.
func NewWorkspace(sandbox *security.Sandbox, origin OriginReader) *Workspace {
	return &Workspace{sandbox: sandbox, origin: origin}
}

// Root returns the checkout directory.
func (w *Workspace) Root() string { return w.sandbox.Root() }

// HasCheckout reports whether a git repository is present at the root.
func (w *Workspace) HasCheckout() bool {
	info, err := os.Stat(filepath.Join(w.sandbox.Root(), ".git"))
	return err == nil && info.IsDir()
}

// Holds reports whether the checkout at the root is a clone of repoURL.
func (w *Workspace) Holds(ctx context.Context, repoURL string) bool {
	if repoURL == "" || w.origin == nil || !w.HasCheckout() {
		return false
	}
	origin, err := w.origin.Origin(ctx)
	return err == nil && SameRepository(origin, repoURL)
}

// Clean removes everything under the root, keeping the root itself.
func (w *Workspace) Clean() error { return w.sandbox.Clean() }
