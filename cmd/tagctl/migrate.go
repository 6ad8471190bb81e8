package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tagdesk/tagdesk/internal/migrations"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := migrations.NewRunner(a.cfg.DatabaseURL, nil).Up(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successText("schema is up to date"))
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := migrations.NewRunner(a.cfg.DatabaseURL, nil).Down(steps); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %d step(s)\n", successText("rolled back"), steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			v, dirty, err := migrations.NewRunner(a.cfg.DatabaseURL, nil).Version()
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, map[string]any{"version": v, "dirty": dirty})
			}
			line := fmt.Sprintf("version %d", v)
			if dirty {
				line += " " + warnText("(dirty)")
			}
			fmt.Fprintln(a.out, line)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
