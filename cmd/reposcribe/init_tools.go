package main

import (
	"fmt"
	"log/slog"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/tool"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
	"github.com/saurav-sabu/RepoScribe/internal/security"
)

// initTools registers the capability adapters workers may be scoped to.
// The registry validates arguments against each tool's schema. The git tool
// is also returned so the workspace can check which repository it holds.
func initTools(cfg config.ToolsConfig, sandbox *security.Sandbox, log *slog.Logger) (*tool.Registry, *tool.GitTool, error) {
	registry := tool.NewRegistry(log)

	search, err := tool.NewSearchBackend(cfg.SearchBackend, cfg.SearXNGURL, cfg.SearchTimeout, log)
	if err != nil {
		return nil, nil, fmt.Errorf("web search: %w", err)
	}

	git := tool.NewGitTool(tool.NewLocalShellBackend(cfg.GitTimeout), sandbox, cfg.AllowedRepoHosts, log)
	tools := []domain.Tool{
		tool.NewFilesystemTool(tool.NewLocalFilesystemBackend(), sandbox, cfg.MaxReadBytes, log),
		tool.NewShellTool(tool.NewLocalShellBackend(cfg.ShellTimeout), cfg.AllowedCommands, sandbox, log),
		git,
		tool.NewWebSearchTool(search, cfg.SearchCacheTTL, log),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, nil, err
		}
	}

	log.Info("tools registered", "count", len(tools), "sandbox", sandbox.Root())
	return registry, git, nil
}
