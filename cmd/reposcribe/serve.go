package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/channel"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the team over HTTP",
		Long: `Serve exposes the team as a JSON API:

  POST   /api/v1/chat             {"session_id": "...", "content": "..."}
  GET    /api/v1/sessions/{id}    history and team state
  DELETE /api/v1/sessions/{id}    reset a session
  GET    /api/v1/health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			a.startBackground(ctx)

			srv := channel.NewHTTPChannel(a.team, cfg.HTTP, a.log)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			a.log.Info("reposcribe serving",
				"addr", srv.Addr(),
				"team", a.team.Definition().Name,
				"provider", cfg.LLM.DefaultProvider,
			)

			<-ctx.Done()
			a.log.Info("shutting down")
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(stopCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
