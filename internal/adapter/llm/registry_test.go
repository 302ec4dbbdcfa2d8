package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(replying("groq", "a")))
	require.NoError(t, r.Register(replying("anthropic", "b")))
	assert.ErrorIs(t, r.Register(replying("groq", "c")), domain.ErrDuplicate)

	assert.Equal(t, []string{"anthropic", "groq"}, r.List())

	_, err := r.Get("gemini")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	_, err = r.Resolve("")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	assert.ErrorIs(t, r.SetDefault("missing"), domain.ErrProviderNotFound)
	require.NoError(t, r.SetDefault("groq"))

	p, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "groq", p.Name())

	p, err = r.Resolve("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	r.Replace("groq", NewFailoverProvider(replying("groq", "a"), nil, newTestLogger()))
	p, err = r.Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, "groq+failover", p.Name())
}
