//go:build bedrock

package main

import (
	"log/slog"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/llm"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
)

func createBedrockProvider(pc config.ProviderConfig, log *slog.Logger) (domain.LLMProvider, error) {
	return llm.NewBedrockProvider(pc, log)
}
