package tool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/security"
)

const maxSearchBodySize = 512 * 1024

// SearchBackend abstracts a web search engine.
type SearchBackend interface {
	// Search performs a web search and returns results.
	Search(ctx context.Context, query string, count int, timeRange string) ([]SearchResult, error)
	// Name returns the backend identifier (e.g. "searxng").
	Name() string
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title   string
	URL     string
	Content string
}

// NewSearchBackend builds the backend named by kind ("duckduckgo" or "searxng").
func NewSearchBackend(kind, searxngURL string, timeout time.Duration, logger *slog.Logger) (SearchBackend, error) {
	switch kind {
	case "", "duckduckgo":
		return NewDuckDuckGoBackend(timeout, logger), nil
	case "searxng":
		return NewSearXNGBackend(searxngURL, timeout, logger), nil
	default:
		return nil, domain.NewDomainError("tool.NewSearchBackend", domain.ErrInvalidInput,
			fmt.Sprintf("unknown search backend %q", kind))
	}
}

func newSearchClient(timeout time.Duration, ssrfSafe bool) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &http.Client{Timeout: timeout}
	if ssrfSafe {
		c.Transport = security.NewSSRFSafeTransport()
	}
	return c
}

// doSearch sends req and returns the capped body of a 200 response. Other
// statuses and transport failures become ExternalToolError.
func doSearch(client *http.Client, backend string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, domain.NewExternalToolError("web_search", "search", backend+" request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		return nil, domain.NewExternalToolError("web_search", "search", backend+" read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, domain.NewExternalToolError("web_search", "search",
			fmt.Sprintf("%s HTTP %d: %s", backend, resp.StatusCode, snippet), nil)
	}
	return body, nil
}
