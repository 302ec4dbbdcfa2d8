package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
)

// roundTripFunc is a function type that implements http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer gsk-test" {
			t.Errorf("unexpected auth: %s", r.Header.Get("Authorization"))
		}

		var got openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if got.Model != "qwen/qwen3-32b" {
			t.Errorf("model = %q, want provider default", got.Model)
		}

		resp := openaiResponse{
			ID:    "chatcmpl-123",
			Model: "qwen/qwen3-32b",
			Choices: []openaiChoice{{
				Message:      openaiMessage{Role: "assistant", Content: "<think>plan the answer</think>\nThe repo is a CLI."},
				FinishReason: "stop",
			}},
			Usage: openaiUsage{PromptTokens: 10, CompletionTokens: 8, TotalTokens: 18},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Name:    "groq",
		BaseURL: server.URL + "/",
		APIKey:  "gsk-test",
		Model:   "qwen/qwen3-32b",
	}, newTestLogger())

	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "What is this repo?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "The repo is a CLI.", resp.Message.Content)
	assert.Equal(t, domain.RoleAssistant, resp.Message.Role)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
	assert.Equal(t, "groq", provider.Name())
}

func TestOpenAIProviderChatWithToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openaiResponse{
			ID: "chatcmpl-456",
			Choices: []openaiChoice{{
				Message: openaiMessage{
					Role: "assistant",
					ToolCalls: []openaiToolCall{{
						ID:   "call_1",
						Type: "function",
						Function: openaiToolCallFunction{
							Name:      "filesystem",
							Arguments: `{"action":"read","path":"go.mod"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{Name: "t", BaseURL: server.URL, Model: "m"}, newTestLogger())
	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "read go.mod"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 1)
	tc := resp.Message.ToolCalls[0]
	assert.Equal(t, "call_1", tc.ID)
	assert.Equal(t, "filesystem", tc.Name)
	assert.JSONEq(t, `{"action":"read","path":"go.mod"}`, string(tc.Arguments))
}

func TestOpenAIProviderHTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusUnauthorized, domain.ErrAuthInvalid},
		{http.StatusServiceUnavailable, domain.ErrProviderError},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))
		provider := NewOpenAIProvider(config.ProviderConfig{Name: "t", BaseURL: server.URL, Model: "m"}, newTestLogger())
		_, err := provider.Chat(context.Background(), domain.ChatRequest{})
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		server.Close()
	}
}

func TestOpenAIProviderMalformedResponse(t *testing.T) {
	provider := NewOpenAIProvider(config.ProviderConfig{Name: "t", Model: "m"}, newTestLogger())

	provider.client = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("not json")), Header: make(http.Header)}, nil
	})}
	_, err := provider.Chat(context.Background(), domain.ChatRequest{})
	assert.ErrorIs(t, err, domain.ErrProviderError)

	provider.client = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(`{"choices":[]}`)), Header: make(http.Header)}, nil
	})}
	_, err = provider.Chat(context.Background(), domain.ChatRequest{})
	assert.ErrorIs(t, err, domain.ErrProviderError)
}

func TestOpenAIProviderContextCanceled(t *testing.T) {
	provider := NewOpenAIProvider(config.ProviderConfig{Name: "t", Model: "m"}, newTestLogger())
	provider.client = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, r.Context().Err()
	})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := provider.Chat(ctx, domain.ChatRequest{})
	assert.True(t, errors.Is(err, domain.ErrTimeout))
}

func TestToOpenAIRequest(t *testing.T) {
	req := domain.ChatRequest{
		Model:       "m",
		Temperature: 0.2,
		MaxTokens:   512,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "You are a repository inspector."},
			{Role: domain.RoleUser, Content: "status?"},
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "c1", Name: "git"}}},
			{Role: domain.RoleTool, Content: "## main", Name: "git", ToolCalls: []domain.ToolCall{{ID: "c1"}}},
		},
		Tools: []domain.ToolSchema{{Name: "git", Description: "git ops", Parameters: json.RawMessage(`{"type":"object"}`)}},
	}

	got := toOpenAIRequest(req)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "{}", got.Messages[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", got.Messages[3].ToolCallID)
	assert.Empty(t, got.Messages[3].ToolCalls)
	assert.Equal(t, "auto", got.ToolChoice)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 1e-9)
	assert.Equal(t, 512, got.MaxTokens)
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, "answer", stripThinking("<think>\nreasoning\n</think>\n\nanswer"))
	assert.Equal(t, "plain", stripThinking("plain"))
}
