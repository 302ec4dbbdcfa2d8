package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/sessionstore"
	"github.com/saurav-sabu/RepoScribe/internal/usecase"
)

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and maintain stored sessions",
	}
	cmd.AddCommand(
		newSessionsListCmd(opts),
		newSessionsShowCmd(opts),
		newSessionsResetCmd(opts),
		newSessionsReapCmd(opts),
	)
	return cmd
}

// openStore opens the configured session store without building the team.
func (o *rootOptions) openStore() (sessionstore.Store, error) {
	cfg, err := o.readConfig()
	if err != nil {
		return nil, err
	}
	store, err := sessionstore.New(cfg.Sessions)
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}
	return store, nil
}

func newSessionsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "No sessions.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTURNS\tUPDATED")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\t%s\n", info.ID, info.Turns, info.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newSessionsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := sessionstore.ValidateSessionID(id); err != nil {
				return err
			}
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			turns, err := store.Read(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(turns) == 0 {
				fmt.Fprintf(out, "Session %s has no history.\n", id)
				return nil
			}
			for _, t := range turns {
				writeTurn(out, t.Timestamp, t.Speaker, t.Text)
			}
			return nil
		},
	}
}

func writeTurn(w io.Writer, at time.Time, speaker, text string) {
	fmt.Fprintf(w, "[%s] %s:\n", at.Local().Format(time.DateTime), speaker)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

func newSessionsResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>",
		Short: "Delete a session's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := sessionstore.ValidateSessionID(id); err != nil {
				return err
			}
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Reset(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s reset.\n", id)
			return nil
		},
	}
}

func newSessionsReapCmd(opts *rootOptions) *cobra.Command {
	var (
		maxAge time.Duration
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Reset sessions idle longer than --max-age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxAge <= 0 {
				return fmt.Errorf("--max-age must be positive")
			}
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if dryRun {
				stale, err := usecase.StaleSessions(ctx, store, maxAge, time.Now())
				if err != nil {
					return err
				}
				for _, id := range stale {
					fmt.Fprintf(out, "would reap %s\n", id)
				}
				return nil
			}

			reaped, err := usecase.ReapStaleSessions(ctx, store, maxAge)
			fmt.Fprintf(out, "Reaped %d stale sessions.\n", len(reaped))
			return err
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 7*24*time.Hour, "idle time after which a session is stale")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list stale sessions without resetting them")
	return cmd
}
