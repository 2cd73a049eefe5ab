// Package cmd provides the CLI commands for lodestar.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lodestar-search/lodestar/internal/logging"
	"github.com/lodestar-search/lodestar/pkg/version"
)

// Persistent flags shared by all commands.
var (
	dataDir   string
	indexName string
	debugMode bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the lodestar CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lodestar",
		Short: "Hybrid document retrieval engine",
		Long: `Lodestar indexes documents for hybrid retrieval: lexical full-text
matching, dense vector similarity, and keyword-aware reranking, all in a
single local data directory.

Run 'lodestar index' to add documents and 'lodestar search' to query them.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("lodestar version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data", "", "Data directory (default ~/.lodestar/data)")
	cmd.PersistentFlags().StringVar(&indexName, "index", "", "Index name (default from config)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.lodestar/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging configures the default logger, adding file logging in debug
// mode.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.Config{Level: "info"}
	if debugMode {
		cfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	if debugMode {
		slog.Debug("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}
	return nil
}

// stopLogging closes the log file if one was opened.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
