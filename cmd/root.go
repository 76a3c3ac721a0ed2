// Package cmd contains the alcove command-line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alcove-ai/alcove/internal/app"
	"github.com/alcove-ai/alcove/internal/config"
	"github.com/alcove-ai/alcove/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "alcove",
	Short: "Alcove - chat with your personal knowledge base",
	Long: `Alcove answers questions grounded in your own notes and documents.
Ingest files into a local knowledge base, then ask questions in an
ongoing conversation. Everything is stored locally.

Running alcove with no arguments starts an interactive conversation.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newApp loads configuration and wires the application. Callers own the
// returned App and must Close it.
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logCfg := log.Config{Level: slog.LevelInfo}
	if verbose {
		logCfg.Level = slog.LevelDebug
	}
	logger := log.New(logCfg)

	return app.Setup(ctx, cfg, logger)
}
