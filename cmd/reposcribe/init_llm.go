package main

import (
	"fmt"
	"log/slog"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/llm"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
)

// initLLM registers every configured provider, wraps each with a circuit
// breaker when enabled, and swaps the default for a failover chain when
// llm.failover names fallbacks.
func initLLM(cfg *config.Config, log *slog.Logger) (*llm.Registry, error) {
	registry := llm.NewRegistry()

	cbCfg := cfg.LLM.CircuitBreaker
	for _, pc := range cfg.LLM.Providers {
		provider, err := createLLMProvider(pc, log)
		if err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}

		if cbCfg.Enabled {
			provider = llm.NewCircuitBreakerProvider(provider, llm.CircuitBreakerConfig{
				MaxFailures: cbCfg.MaxFailures,
				Timeout:     cbCfg.Timeout,
				Interval:    cbCfg.Interval,
			}, log)
		}

		if err := registry.Register(provider); err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
	}

	if cbCfg.Enabled {
		log.Info("llm circuit breaker enabled",
			"max_failures", cbCfg.MaxFailures,
			"timeout", cbCfg.Timeout,
			"interval", cbCfg.Interval,
		)
	}

	if err := registry.SetDefault(cfg.LLM.DefaultProvider); err != nil {
		return nil, fmt.Errorf("default llm provider: %w", err)
	}

	if len(cfg.LLM.Failover) > 0 {
		primary, err := registry.Get(cfg.LLM.DefaultProvider)
		if err != nil {
			return nil, fmt.Errorf("default llm provider: %w", err)
		}
		fallbacks := make([]domain.LLMProvider, 0, len(cfg.LLM.Failover))
		for _, name := range cfg.LLM.Failover {
			fb, err := registry.Get(name)
			if err != nil {
				return nil, fmt.Errorf("failover provider %s: %w", name, err)
			}
			fallbacks = append(fallbacks, fb)
		}
		registry.Replace(cfg.LLM.DefaultProvider, llm.NewFailoverProvider(primary, fallbacks, log))
		log.Info("model failover enabled", "fallbacks", cfg.LLM.Failover)
	}

	return registry, nil
}

func createLLMProvider(pc config.ProviderConfig, log *slog.Logger) (domain.LLMProvider, error) {
	switch pc.Type {
	case "openai", "":
		return llm.NewOpenAIProvider(pc, log), nil
	case "anthropic":
		return llm.NewAnthropicProvider(pc, log), nil
	case "bedrock":
		return createBedrockProvider(pc, log)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", pc.Type)
	}
}
