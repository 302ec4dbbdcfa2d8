package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saurav-sabu/RepoScribe/internal/team"
)

func newWorkersCmd(opts *rootOptions) *cobra.Command {
	var export bool

	cmd := &cobra.Command{
		Use:   "workers",
		Short: "List the team's workers",
		Long: `Workers lists the team configured by team.definition, or the built-in
team when none is set. With --export it prints the built-in team file, a
starting point for a custom team.definition.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if export {
				_, err := cmd.OutOrStdout().Write(team.DefaultYAML())
				return err
			}
			cfg, err := opts.readConfig()
			if err != nil {
				return err
			}
			def, err := loadTeam(cfg.Team)
			if err != nil {
				return fmt.Errorf("team: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d workers\n\n", def.Name, len(def.Workers))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTOOLS\tGATED\tNEEDS")
			for _, s := range def.Workers {
				gated := "no"
				if s.RequiresConfirmation {
					gated = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name,
					orDash(strings.Join(s.ToolNames(), ",")),
					gated,
					orDash(strings.Join(s.Prerequisites, ",")))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "print the built-in team definition as YAML")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
