// Package cli implements ledgerctl, the operator tool for schema migrations and model seeding.
package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/config"
	"github.com/promptledger/PromptLedger/internal/database"
	"github.com/promptledger/PromptLedger/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool

	// loadConfig is replaced in tests.
	loadConfig func() (*config.Config, error)
}

// NewRootCommand creates the ledgerctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{loadConfig: config.LoadConfig})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "PromptLedger operator tool",
		Long:          "Apply database migrations and seed the models table for PromptLedger.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedModelsCommand(opts))
	return cmd
}

// env is what a database-backed command needs.
type env struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *pgxpool.Pool
}

func (e *env) close() {
	if e.pool != nil {
		e.pool.Close()
	}
	logger.Sync(e.log)
}

func (o *RootOptions) open(ctx context.Context) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if o.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Encoding: "console", Service: "ledgerctl"})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	pool, err := database.Connect(ctx, database.PoolConfig{
		DSN:          cfg.GetDSN(),
		MaxConns:     2,
		ConnAttempts: 3,
	}, log)
	if err != nil {
		logger.Sync(log)
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.MaskedDSN(), err)
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}
