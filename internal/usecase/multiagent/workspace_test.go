package multiagent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/security"
)

func TestWorkspace(t *testing.T) {
	sb, err := security.NewSandbox(t.TempDir())
	require.NoError(t, err)
	ws := NewWorkspace(sb, &fakeOrigin{url: repoURL + ".git"})
	ctx := context.Background()

	assert.Equal(t, sb.Root(), ws.Root())
	assert.False(t, ws.HasCheckout())
	assert.False(t, ws.Holds(ctx, repoURL), "no checkout yet")

	require.NoError(t, os.MkdirAll(filepath.Join(ws.Root(), ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "README.md"), []byte("# hi"), 0o644))
	assert.True(t, ws.HasCheckout())
	assert.True(t, ws.Holds(ctx, repoURL))
	assert.True(t, ws.Holds(ctx, "https://GitHub.com/acme/widget/"))
	assert.False(t, ws.Holds(ctx, "https://github.com/other/project"))
	assert.False(t, ws.Holds(ctx, ""))

	require.NoError(t, ws.Clean())
	assert.False(t, ws.HasCheckout())
	_, err = os.Stat(ws.Root())
	assert.NoError(t, err, "root survives Clean")
}

func TestWorkspaceWithoutOriginTrustsNothing(t *testing.T) {
	sb, err := security.NewSandbox(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(sb.Root(), ".git"), 0o755))

	assert.False(t, NewWorkspace(sb, nil).Holds(context.Background(), repoURL))
	assert.False(t, NewWorkspace(sb, &fakeOrigin{}).Holds(context.Background(), repoURL))
}
