package database

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolConfig controls pool sizing and the startup connection loop.
type PoolConfig struct {
	DSN          string
	MaxConns     int
	IdleTimeout  time.Duration
	ConnAttempts uint
	RetryDelay   time.Duration
}

// Connect opens a pgx pool and pings it, retrying while Postgres is still starting up.
func Connect(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.IdleTimeout > 0 {
		poolConfig.MaxConnIdleTime = cfg.IdleTimeout
	}
	attempts := cfg.ConnAttempts
	if attempts == 0 {
		attempts = 20
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}

	log := logger.Named("Postgres")
	pool, err := retry.DoWithData(
		func() (*pgxpool.Pool, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			p, err := pgxpool.NewWithConfig(attemptCtx, poolConfig)
			if err != nil {
				return nil, err
			}
			if err := p.Ping(attemptCtx); err != nil {
				p.Close()
				return nil, err
			}
			return p, nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("Postgres not reachable yet", zap.Uint("attempt", n+1), zap.Uint("maxAttempts", attempts), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", attempts, err)
	}

	log.Info("Connected to PostgreSQL", zap.Int32("maxConns", poolConfig.MaxConns))
	return pool, nil
}
