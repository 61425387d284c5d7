package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ScholarshipImporter/internal/app"
	"ScholarshipImporter/internal/config"
	"ScholarshipImporter/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "scholarshipimporter",
	Short:         "scholarshipimporter extracts scholarship listings from mail and web pages into a deduplicated table.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config (defaults to $SCHOLARSHIP_IMPORTER_CONFIG).")
}

// ExecuteContext runs the CLI and exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp loads configuration and wires the application; callers Close it.
func openApp(ctx context.Context, mutate func(*config.Config)) (*app.Application, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(&cfg)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}
