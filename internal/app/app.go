// Package app assembles the storage, services and queue shared by the server and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/config"
	"github.com/promptledger/PromptLedger/internal/database"
	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/messaging"
	"github.com/promptledger/PromptLedger/internal/provider"
	"github.com/promptledger/PromptLedger/internal/repository"
	"github.com/promptledger/PromptLedger/internal/service"
	"github.com/promptledger/PromptLedger/pkg/migration"
)

// Core holds the wired services. Close releases the pool and the queue.
type Core struct {
	Pool       *pgxpool.Pool
	Queue      messaging.Queue
	Versioning *service.VersioningService
	Executions *service.ExecutionService
	Models     *service.ModelService
	Dispatcher *service.Dispatcher

	closeQueue func()
}

// Open connects to Postgres and the queue backend, optionally migrates, and wires the services.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Core, error) {
	pool, err := database.Connect(ctx, database.PoolConfig{
		DSN:         cfg.GetDSN(),
		MaxConns:    cfg.DBMaxConns,
		IdleTimeout: cfg.DBIdleTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(pool, MigrationLogger(cfg.LogLevel)); err != nil {
			pool.Close()
			return nil, err
		}
	}

	queue, closeQueue, err := messaging.Open(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open %s queue: %w", cfg.QueueBackend, err)
	}

	registry, err := provider.NewRegistryFromConfig(cfg, logger)
	if err != nil {
		closeQueue()
		pool.Close()
		return nil, err
	}

	core := Wire(pool, database.NewTransactionHelper(pool, logger), queue, registry, cfg, logger)
	core.Pool = pool
	core.closeQueue = closeQueue
	return core, nil
}

// Wire builds the service graph over an existing pool or transaction-capable querier.
func Wire(
	db interfaces.DBTX,
	tx interfaces.TxManager,
	queue messaging.Queue,
	providers service.ProviderResolver,
	cfg *config.Config,
	logger *zap.Logger,
) *Core {
	promptRepo := repository.NewPgPromptRepository(logger)
	executionRepo := repository.NewPgExecutionRepository(logger)
	modelRepo := repository.NewPgModelRepository(logger)
	spanRepo := repository.NewPgSpanRepository(logger)

	versioning := service.NewVersioningService(db, tx, promptRepo, logger)
	guard := service.NewIdempotencyGuard(executionRepo, logger)
	lifecycle := service.NewLifecycleManager(db, tx, executionRepo, guard, logger)
	dispatcher := service.NewDispatcher(db, executionRepo, modelRepo, spanRepo, lifecycle, providers,
		service.DispatcherConfig{
			RetryDelays:    cfg.RetryDelays,
			AttemptTimeout: cfg.ProviderTimeout,
		}, logger)
	executions := service.NewExecutionService(db, versioning, promptRepo, executionRepo, modelRepo,
		lifecycle, dispatcher, queue, cfg.Environment, logger)

	return &Core{
		Queue:      queue,
		Versioning: versioning,
		Executions: executions,
		Models:     service.NewModelService(db, tx, modelRepo, logger),
		Dispatcher: dispatcher,
		closeQueue: func() {},
	}
}

// Ping reports whether Postgres answers.
func (c *Core) Ping(ctx context.Context) error {
	if c.Pool == nil {
		return nil
	}
	return c.Pool.Ping(ctx)
}

func (c *Core) Close() {
	if c.closeQueue != nil {
		c.closeQueue()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// Migrate applies every pending embedded migration.
func Migrate(pool *pgxpool.Pool, log zerolog.Logger) error {
	m, err := NewMigrator(pool, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

// NewMigrator opens a migrator over the embedded schema files.
func NewMigrator(pool *pgxpool.Pool, log zerolog.Logger) (*migration.Migrator, error) {
	return migration.New(migration.Config{
		MigrationsFS:   database.MigrationsFS,
		MigrationsPath: "migrations",
	}, pool, log)
}
