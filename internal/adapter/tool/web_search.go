package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/tracer"
)

const (
	defaultSearchCount = 5
	maxSearchCount     = 20
	defaultCacheTTL    = 15 * time.Minute
	maxCacheEntries    = 100
)

// cacheEntry holds a cached search result with its expiration time.
type cacheEntry struct {
	result    string
	expiresAt time.Time
}

// WebSearchTool performs web searches via a pluggable SearchBackend.
type WebSearchTool struct {
	backend  SearchBackend
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewWebSearchTool creates a web search tool backed by the given SearchBackend.
func NewWebSearchTool(backend SearchBackend, cacheTTL time.Duration, logger *slog.Logger) *WebSearchTool {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &WebSearchTool{
		backend:  backend,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Search the web for tutorials, documentation and courses"
}
func (t *WebSearchTool) Operations() []string { return []string{"search"} }

func (t *WebSearchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"action": {"type": "string", "enum": ["search"]},
				"query": {"type": "string", "description": "The search query"},
				"count": {"type": "integer", "minimum": 1, "maximum": 20, "description": "Number of results (default: 5)"},
				"time_range": {"type": "string", "enum": ["day", "week", "month", "year"], "description": "Time range filter (optional)"}
			},
			"required": ["action", "query"]
		}`),
	}
}

type webSearchParams struct {
	Action    string `json:"action"`
	Query     string `json:"query"`
	Count     int    `json:"count,omitempty"`
	TimeRange string `json:"time_range,omitempty"`
}

func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.web_search", t.logger, params,
		Dispatch(t.Name(), func(p webSearchParams) string { return p.Action }, ActionMap[webSearchParams]{
			"search": t.search,
		}),
	)
}

func (t *WebSearchTool) search(ctx context.Context, p webSearchParams) (any, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, domain.NewDomainError("tool.web_search.search", domain.ErrInvalidInput, "query must not be empty")
	}
	trace.SpanFromContext(ctx).SetAttributes(
		tracer.StringAttr("tool.query", p.Query),
		tracer.StringAttr("search.backend", t.backend.Name()),
	)

	if p.Count <= 0 {
		p.Count = defaultSearchCount
	}
	if p.Count > maxSearchCount {
		p.Count = maxSearchCount
	}
	switch p.TimeRange {
	case "", "day", "week", "month", "year":
	default:
		return nil, domain.NewDomainError("tool.web_search.search", domain.ErrInvalidInput,
			fmt.Sprintf("invalid time_range %q (want: day, week, month, year)", p.TimeRange))
	}

	cacheKey := fmt.Sprintf("%s|%d|%s", strings.ToLower(strings.TrimSpace(p.Query)), p.Count, p.TimeRange)
	if cached, ok := t.getCached(cacheKey); ok {
		t.logger.Debug("web search cache hit", "query", p.Query)
		return cached, nil
	}

	results, err := t.backend.Search(ctx, p.Query, p.Count, p.TimeRange)
	if err != nil {
		return nil, err
	}
	if len(results) > p.Count {
		results = results[:p.Count]
	}

	content := formatSearchResults(p.Query, results)
	t.putCache(cacheKey, content)

	t.logger.Debug("web search completed", "query", p.Query, "results", len(results))
	return content, nil
}

// formatSearchResults converts search results to a compact text format for LLM consumption.
func formatSearchResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No search results found for %q.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for %q:\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   URL: %s\n   %s\n\n", i+1, r.Title, r.URL, r.Content)
	}
	return sb.String()
}

func (t *WebSearchTool) getCached(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.cache[key]
	if !ok {
		return "", false
	}
	if t.now().After(entry.expiresAt) {
		delete(t.cache, key)
		return "", false
	}
	return entry.result, true
}

func (t *WebSearchTool) putCache(key, result string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.cache[key] = cacheEntry{result: result, expiresAt: now.Add(t.cacheTTL)}

	if len(t.cache) > maxCacheEntries {
		for k, v := range t.cache {
			if now.After(v.expiresAt) {
				delete(t.cache, k)
			}
		}
	}
}
