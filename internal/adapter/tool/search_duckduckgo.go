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

const duckDuckGoEndpoint = "https://api.duckduckgo.com/"

// ddgTopic is a related topic; groups nest further topics.
type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Results       []ddgTopic `json:"Results"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// DuckDuckGoBackend uses the keyless DuckDuckGo Instant Answer API.
type DuckDuckGoBackend struct {
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

// NewDuckDuckGoBackend creates a DuckDuckGo search backend.
func NewDuckDuckGoBackend(timeout time.Duration, logger *slog.Logger) *DuckDuckGoBackend {
	return &DuckDuckGoBackend{
		client:   newSearchClient(timeout, true),
		endpoint: duckDuckGoEndpoint,
		logger:   logger,
	}
}

func (b *DuckDuckGoBackend) Name() string { return "duckduckgo" }

// Search ignores timeRange; the Instant Answer API has no such filter.
func (b *DuckDuckGoBackend) Search(ctx context.Context, query string, count int, _ string) ([]SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "reposcribe")

	body, err := doSearch(b.client, b.Name(), req)
	if err != nil {
		return nil, err
	}

	var resp ddgResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewExternalToolError("web_search", "search", "duckduckgo returned malformed JSON", err)
	}

	var results []SearchResult
	if resp.AbstractText != "" && resp.AbstractURL != "" {
		results = append(results, SearchResult{Title: resp.Heading, URL: resp.AbstractURL, Content: resp.AbstractText})
	}
	var collect func(topics []ddgTopic)
	collect = func(topics []ddgTopic) {
		for _, tp := range topics {
			if len(results) >= count {
				return
			}
			if len(tp.Topics) > 0 {
				collect(tp.Topics)
				continue
			}
			if tp.FirstURL == "" || tp.Text == "" {
				continue
			}
			title, _, _ := strings.Cut(tp.Text, " - ")
			results = append(results, SearchResult{Title: title, URL: tp.FirstURL, Content: tp.Text})
		}
	}
	collect(resp.Results)
	collect(resp.RelatedTopics)

	if len(results) > count {
		results = results[:count]
	}
	b.logger.Debug("duckduckgo search completed", "query", query, "results", len(results))
	return results, nil
}
