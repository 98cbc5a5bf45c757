package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/grc-backend/internal/adapter/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded database migrations",
	}

	withMigrator := func(run func(cmd *cobra.Command, m *postgres.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.InMemory() {
				return errNeedsDatabase
			}
			m, err := postgres.NewMigrator(cmd.Context(), cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer m.Close() //nolint:errcheck
			return run(cmd, m)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				results, err := m.Up(cmd.Context())
				for _, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "applied %s (%s)\n", filepath.Base(r.Source.Path), r.Duration)
				}
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				r, err := m.Down(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", filepath.Base(r.Source.Path))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				type row struct {
					Version   int64  `json:"version"`
					File      string `json:"file"`
					State     string `json:"state"`
					AppliedAt string `json:"applied_at,omitempty"`
				}
				rows := make([]row, 0, len(statuses))
				for _, s := range statuses {
					r := row{Version: s.Source.Version, File: filepath.Base(s.Source.Path), State: string(s.State)}
					if !s.AppliedAt.IsZero() {
						r.AppliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
					rows = append(rows, r)
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), rows)
				}
				cells := make([][]string, 0, len(rows))
				for _, r := range rows {
					cells = append(cells, []string{strconv.FormatInt(r.Version, 10), r.File, r.State, r.AppliedAt})
				}
				return table(cmd.OutOrStdout(), "VERSION\tFILE\tSTATE\tAPPLIED", cells)
			}),
		},
	)
	return cmd
}
