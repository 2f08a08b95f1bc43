package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Config points at the embedded migration files.
type Config struct {
	MigrationsFS    fs.FS
	MigrationsPath  string
	MigrationsTable string
	LockTimeout     time.Duration
}

// Migrator applies schema migrations over a pgx pool.
type Migrator struct {
	m   *migrate.Migrate
	log zerolog.Logger
}

// Status is the current schema version.
type Status struct {
	Version uint
	Dirty   bool
	Applied bool
}

// New opens a migrator. Close it when done.
func New(cfg Config, pool *pgxpool.Pool, log zerolog.Logger) (*Migrator, error) {
	table := cfg.MigrationsTable
	if table == "" {
		table = "schema_migrations"
	}

	db := stdlib.OpenDBFromPool(pool)
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable:       table,
		MigrationsTableQuoted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(cfg.MigrationsFS, cfg.MigrationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	m.LockTimeout = 30 * time.Second
	if cfg.LockTimeout > 0 {
		m.LockTimeout = cfg.LockTimeout
	}
	m.Log = migrateLogger{log: log}

	return &Migrator{m: m, log: log}, nil
}

// Up applies every pending migration. No pending migrations is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	m.log.Info().Msg("database migrations applied")
	return nil
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	m.log.Info().Msg("database migrations rolled back")
	return nil
}

// Steps moves n migrations forward (n > 0) or backward (n < 0).
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to step migrations by %d: %w", n, err)
	}
	m.log.Info().Int("steps", n).Msg("database migrations stepped")
	return nil
}

// Force sets the version without running migrations, clearing the dirty flag.
func (m *Migrator) Force(version int) error {
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("failed to force migration version: %w", err)
	}
	m.log.Warn().Int("version", version).Msg("database migration version forced")
	return nil
}

// Status reports the applied version.
func (m *Migrator) Status() (Status, error) {
	version, dirty, err := m.m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return Status{Version: version, Dirty: dirty, Applied: true}, nil
}

// Close releases the source. The pool stays open.
func (m *Migrator) Close() error {
	srcErr, _ := m.m.Close()
	return srcErr
}

type migrateLogger struct {
	log zerolog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug().Msgf(format, v...)
}

func (l migrateLogger) Verbose() bool {
	return l.log.GetLevel() <= zerolog.DebugLevel
}
