package tool

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

type fakeSearch struct {
	calls   int
	results []SearchResult
	err     error
}

func (f *fakeSearch) Name() string { return "fake" }
func (f *fakeSearch) Search(_ context.Context, _ string, _ int, _ string) ([]SearchResult, error) {
	f.calls++
	return f.results, f.err
}

func TestWebSearchFormatsAndCaps(t *testing.T) {
	backend := &fakeSearch{results: []SearchResult{
		{Title: "Go by Example", URL: "https://gobyexample.com", Content: "Hands-on intro"},
		{Title: "Tour of Go", URL: "https://go.dev/tour", Content: "Interactive"},
		{Title: "Effective Go", URL: "https://go.dev/doc/effective_go", Content: "Idioms"},
	}}
	ws := NewWebSearchTool(backend, time.Minute, nopLogger())

	res, err := Invoke(context.Background(), ws, "search", map[string]any{"query": "learn go", "count": 2})
	require.NoError(t, err)
	assert.Contains(t, res.Content, `Search results for "learn go"`)
	assert.Contains(t, res.Content, "2. Tour of Go")
	assert.NotContains(t, res.Content, "Effective Go")
}

func TestWebSearchCache(t *testing.T) {
	backend := &fakeSearch{results: []SearchResult{{Title: "t", URL: "u", Content: "c"}}}
	ws := NewWebSearchTool(backend, time.Minute, nopLogger())
	now := time.Now()
	ws.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, err := Invoke(context.Background(), ws, "search", map[string]any{"query": "Cobra CLI"})
		require.NoError(t, err)
	}
	_, err := Invoke(context.Background(), ws, "search", map[string]any{"query": "  cobra cli "})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.calls, "normalized repeats hit the cache")

	now = now.Add(2 * time.Minute)
	_, err = Invoke(context.Background(), ws, "search", map[string]any{"query": "cobra cli"})
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls, "expired entries are refetched")
}

func TestWebSearchValidation(t *testing.T) {
	ws := NewWebSearchTool(&fakeSearch{}, 0, nopLogger())

	_, err := Invoke(context.Background(), ws, "search", map[string]any{"query": "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ws.search(context.Background(), webSearchParams{Query: "x", TimeRange: "decade"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWebSearchBackendFailure(t *testing.T) {
	ws := NewWebSearchTool(&fakeSearch{err: domain.NewExternalToolError("web_search", "search", "HTTP 503", nil)}, 0, nopLogger())

	res, err := Invoke(context.Background(), ws, "search", map[string]any{"query": "x"})
	assert.ErrorIs(t, err, domain.ErrExternalTool)
	assert.True(t, res.IsRetryable)
}

func TestWebSearchNoResults(t *testing.T) {
	ws := NewWebSearchTool(&fakeSearch{}, 0, nopLogger())
	res, err := Invoke(context.Background(), ws, "search", map[string]any{"query": "zzzz"})
	require.NoError(t, err)
	assert.Equal(t, `No search results found for "zzzz".`, res.Content)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestSearXNGBackend(t *testing.T) {
	b := NewSearXNGBackend("http://localhost:8888/", 0, nopLogger())
	assert.Equal(t, "http://localhost:8888", b.instanceURL)

	b.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "golang testing", req.URL.Query().Get("q"))
		assert.Equal(t, "json", req.URL.Query().Get("format"))
		assert.Equal(t, "week", req.URL.Query().Get("time_range"))
		return jsonResponse(200, `{"results":[
			{"title":"Go Testing","url":"https://go.dev/testing","content":"Testing in Go"},
			{"title":"Second","url":"https://example.com","content":"x"}]}`), nil
	})}

	results, err := b.Search(context.Background(), "golang testing", 1, "week")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev/testing", results[0].URL)
}

func TestSearXNGBackendErrors(t *testing.T) {
	b := NewSearXNGBackend("http://localhost:8888", 0, nopLogger())

	b.client = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	_, err := b.Search(context.Background(), "q", 5, "")
	assert.ErrorIs(t, err, domain.ErrExternalTool)

	b.client = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(502, "bad gateway"), nil
	})}
	_, err = b.Search(context.Background(), "q", 5, "")
	assert.ErrorContains(t, err, "HTTP 502")

	b.client = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, "<html>"), nil
	})}
	_, err = b.Search(context.Background(), "q", 5, "")
	assert.ErrorContains(t, err, "malformed JSON")
}

func TestDuckDuckGoBackend(t *testing.T) {
	b := NewDuckDuckGoBackend(0, nopLogger())
	b.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "api.duckduckgo.com", req.URL.Host)
		assert.Equal(t, "rust tutorial", req.URL.Query().Get("q"))
		return jsonResponse(200, `{
			"Heading": "Rust",
			"AbstractText": "Rust is a systems language.",
			"AbstractURL": "https://en.wikipedia.org/wiki/Rust",
			"RelatedTopics": [
				{"Text": "The Book - official guide", "FirstURL": "https://doc.rust-lang.org/book"},
				{"Name": "Courses", "Topics": [
					{"Text": "Rustlings - small exercises", "FirstURL": "https://rustlings.cool"},
					{"Text": "Exercism - mentored track", "FirstURL": "https://exercism.org/tracks/rust"}
				]},
				{"Text": "", "FirstURL": ""}
			]}`), nil
	})}

	results, err := b.Search(context.Background(), "rust tutorial", 3, "")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Rust", results[0].Title)
	assert.Equal(t, "The Book", results[1].Title)
	assert.Equal(t, "https://rustlings.cool", results[2].URL)
}

func TestNewSearchBackend(t *testing.T) {
	b, err := NewSearchBackend("", "", 0, nopLogger())
	require.NoError(t, err)
	assert.Equal(t, "duckduckgo", b.Name())

	b, err = NewSearchBackend("searxng", "http://localhost:8888", 0, nopLogger())
	require.NoError(t, err)
	assert.Equal(t, "searxng", b.Name())

	_, err = NewSearchBackend("bing", "", 0, nopLogger())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
