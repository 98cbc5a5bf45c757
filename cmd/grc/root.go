package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/grc-backend/internal/app"
	"github.com/heartmarshall/grc-backend/internal/config"
)

type rootOptions struct {
	configPath string
	json       bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "grc",
		Short:         "Compliance findings and scoring backend",
		Long:          "grc imports DISA STIG checklists (CKL), SCAP results and Nessus scans, records finding reviews as events and keeps checklist and system compliance scores current.",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.configPath != "" {
				return os.Setenv("CONFIG_PATH", opts.configPath)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (overrides CONFIG_PATH)")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print results as JSON")

	cmd.AddCommand(
		newVersionCmd(),
		newParseCmd(opts),
		newImportCmd(opts),
		newExportCmd(),
		newReplayCmd(opts),
		newScoreCmd(opts),
		newOpenFindingsCmd(opts),
		newChecklistCmd(opts),
		newSystemCmd(opts),
		newMigrateCmd(opts),
		newServeCmd(),
	)
	return cmd
}

// errNeedsDatabase is returned by commands that only make sense against a
// persistent store.
var errNeedsDatabase = errors.New("this command needs database.dsn (DATABASE_DSN): the in-memory store does not outlive the process")

// runtime is a configured and wired backend for one command invocation.
type runtime struct {
	cfg     *config.Config
	log     *slog.Logger
	backend *app.Backend
}

func (r *runtime) Close() { r.backend.Close() }

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := app.NewLogger(cfg.Log)
	storage := "postgres"
	if cfg.Database.InMemory() {
		storage = "memory"
	}
	log.Debug("configuration loaded", slog.String("source", cfg.Source), slog.String("storage", storage))
	return cfg, log, nil
}

// bootstrap loads configuration and builds the backend. With needsDB set it
// refuses to run on the in-memory store.
func bootstrap(ctx context.Context, needsDB bool) (*runtime, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if needsDB && cfg.Database.InMemory() {
		return nil, errNeedsDatabase
	}
	b, err := app.Build(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	return &runtime{cfg: cfg, log: log, backend: b}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "grc %s\n", app.BuildVersion())
		},
	}
}
