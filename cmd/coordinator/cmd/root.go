// Package cmd holds the coordinator CLI commands.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/logger"
)

// NewRootCmd creates the coordinator command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Advance the book pipeline by one unit of work",
		Long: `coordinator inspects the download and index ledgers and performs at most
one action per invocation: index a book that was downloaded but not yet
indexed, or acquire a new book and wait for it to land.

Run it periodically (for example from cron) to keep the pipeline moving.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")

	cmd.AddCommand(newRunCmd(&configPath))
	cmd.AddCommand(newStatusCmd(&configPath))
	return cmd
}

// Execute runs the root command with signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// setup loads config, configures logging and opens the ledger.
func setup(configPath string) (*config.Config, *ledger.FileLedger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	l, err := ledger.NewFileLedger(cfg.Ledger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}
