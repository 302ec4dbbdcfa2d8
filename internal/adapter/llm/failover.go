package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

var _ domain.LLMProvider = (*FailoverProvider)(nil)

// FailoverProvider wraps a primary LLM provider with fallback providers.
// If the primary fails, it tries each fallback in order.
type FailoverProvider struct {
	primary   domain.LLMProvider
	fallbacks []domain.LLMProvider
	logger    *slog.Logger
}

// NewFailoverProvider creates a failover-capable provider.
func NewFailoverProvider(primary domain.LLMProvider, fallbacks []domain.LLMProvider, logger *slog.Logger) *FailoverProvider {
	return &FailoverProvider{
		primary:   primary,
		fallbacks: fallbacks,
		logger:    logger,
	}
}

// Chat tries the primary provider first, then each fallback on failure.
// A cancelled or expired context stops the chain.
func (f *FailoverProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := f.primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	f.logger.Warn("primary LLM failed, trying fallbacks",
		"primary", f.primary.Name(), "error", err)

	allErrors := []string{fmt.Sprintf("%s: %v", f.primary.Name(), err)}
	lastErr := err

	for _, fb := range f.fallbacks {
		if ctx.Err() != nil {
			break
		}
		// Fallbacks serve their own default model.
		fbReq := req
		fbReq.Model = ""
		resp, err = fb.Chat(ctx, fbReq)
		if err == nil {
			f.logger.Info("failover succeeded", "provider", fb.Name())
			return resp, nil
		}
		f.logger.Warn("fallback LLM failed", "provider", fb.Name(), "error", err)
		allErrors = append(allErrors, fmt.Sprintf("%s: %v", fb.Name(), err))
		lastErr = err
	}

	return nil, fmt.Errorf("all providers failed: [%s]: %w", strings.Join(allErrors, "; "), lastErr)
}

// Name returns a composite name.
func (f *FailoverProvider) Name() string {
	return f.primary.Name() + "+failover"
}
