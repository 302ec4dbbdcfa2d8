package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/channel"
	"github.com/saurav-sabu/RepoScribe/internal/adapter/sessionstore"
	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/chat"
	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	sessionID  string
	tui        bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "reposcribe",
		Short: "Understand and document a code repository with a team of specialists",
		Long: `RepoScribe answers questions about a repository through a team of
specialist workers: a loader, analyzers for structure, dependencies, code
quality, errors and licensing, and writers for onboarding notes, tests and
README previews.

With no command it starts an interactive session. Paste a repository URL to
load it, then ask questions. Findings that need your judgement are held
until you confirm them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", defaultConfigPath(), "config file")
	pf.StringVar(&opts.logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")

	cmd.Flags().StringVar(&opts.sessionID, "session", chat.DefaultSessionID, "session id to resume or create")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "use the full-screen terminal UI")

	cmd.AddCommand(
		newServeCmd(opts),
		newSessionsCmd(opts),
		newWorkersCmd(opts),
		newConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

func defaultConfigPath() string {
	if p := os.Getenv("REPOSCRIBE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// loadConfig reads and validates the config, then applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	o.applyOverrides(cfg)
	return cfg, nil
}

// readConfig is loadConfig without validation.
func (o *rootOptions) readConfig() (*config.Config, error) {
	cfg, err := config.Read(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	o.applyOverrides(cfg)
	return cfg, nil
}

func (o *rootOptions) applyOverrides(cfg *config.Config) {
	if o.logLevel != "" {
		cfg.Logger.Level = o.logLevel
	}
}

func runChat(ctx context.Context, opts *rootOptions, in io.Reader, out io.Writer) error {
	if err := sessionstore.ValidateSessionID(opts.sessionID); err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	a.startBackground(ctx)

	a.log.Info("reposcribe starting",
		"team", a.team.Definition().Name,
		"workers", len(a.team.Workers()),
		"provider", cfg.LLM.DefaultProvider,
		"sessions", cfg.Sessions.Backend,
		"session", opts.sessionID,
		"tui", opts.tui,
	)

	if opts.tui {
		return chat.Run(ctx, chat.Deps{
			Team:      a.team,
			SessionID: opts.sessionID,
			TeamName:  a.team.Definition().Name,
			ModelName: a.modelName(),
			Logger:    a.log,
		}, a.bus)
	}

	repl := channel.NewREPL(a.team, in, out, channel.REPLConfig{
		SessionID: opts.sessionID,
		Renderer:  channel.NewMarkdownRenderer(terminalWidth()),
		Markers:   channel.MarkersFromEnv(),
	}, a.log)
	unwatch := repl.WatchEvents(a.bus)
	defer unwatch()
	return repl.Run(ctx)
}
