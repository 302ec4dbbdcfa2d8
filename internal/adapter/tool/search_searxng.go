package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// searxngResponse models the relevant portion of the SearXNG JSON response.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// SearXNGBackend searches the web via a self-hosted SearXNG instance.
type SearXNGBackend struct {
	client      *http.Client
	instanceURL string
	logger      *slog.Logger
}

// NewSearXNGBackend creates a search backend backed by a SearXNG instance.
// The instance is usually local, so the SSRF guard is not applied.
func NewSearXNGBackend(instanceURL string, timeout time.Duration, logger *slog.Logger) *SearXNGBackend {
	return &SearXNGBackend{
		client:      newSearchClient(timeout, false),
		instanceURL: strings.TrimRight(instanceURL, "/"),
		logger:      logger,
	}
}

func (b *SearXNGBackend) Name() string { return "searxng" }

func (b *SearXNGBackend) Search(ctx context.Context, query string, count int, timeRange string) ([]SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.instanceURL+"/search", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")
	if timeRange != "" {
		q.Set("time_range", timeRange)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	body, err := doSearch(b.client, b.Name(), req)
	if err != nil {
		return nil, err
	}

	var searxResp searxngResponse
	if err := json.Unmarshal(body, &searxResp); err != nil {
		return nil, domain.NewExternalToolError("web_search", "search", "searxng returned malformed JSON", err)
	}

	results := make([]SearchResult, 0, len(searxResp.Results))
	for _, r := range searxResp.Results {
		if len(results) >= count {
			break
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Content: r.Content})
	}

	b.logger.Debug("searxng search completed", "query", query, "results", len(results))
	return results, nil
}
