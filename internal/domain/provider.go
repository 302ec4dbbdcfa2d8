package domain

import "context"

// LLMProvider is the model oracle: any backend that completes a chat.
type LLMProvider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "groq", "anthropic").
	Name() string
}
