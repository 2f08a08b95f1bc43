package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/models"
)

// IdempotencyGuard deduplicates submissions by (prompt, idempotency key). The partial unique
// index on executions is the source of truth; the guard only short-circuits known replays.
type IdempotencyGuard struct {
	executions interfaces.ExecutionRepository
	logger     *zap.Logger
}

func NewIdempotencyGuard(executions interfaces.ExecutionRepository, logger *zap.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{executions: executions, logger: logger.Named("IdempotencyGuard")}
}

// Admit returns the execution already stored under key, or nil when the request may proceed.
// A nil or empty key is always admitted.
func (g *IdempotencyGuard) Admit(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID, key *string) (*models.Execution, error) {
	if key == nil || *key == "" {
		return nil, nil
	}
	existing, err := g.executions.GetByIdempotencyKey(ctx, querier, promptID, *key)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.logger.Info("Idempotent replay",
		zap.String("promptID", promptID.String()),
		zap.String("idempotencyKey", *key),
		zap.String("executionID", existing.ID.String()),
		zap.String("status", string(existing.Status)))
	return existing, nil
}

// Winner loads the execution that won an insert race on key. It is called after the
// unique index rejected our row, so the winner must exist.
func (g *IdempotencyGuard) Winner(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID, key string) (*models.Execution, error) {
	existing, err := g.executions.GetByIdempotencyKey(ctx, querier, promptID, key)
	if err != nil {
		g.logger.Error("Idempotency winner not found after unique violation",
			zap.String("promptID", promptID.String()),
			zap.String("idempotencyKey", key),
			zap.Error(err))
		return nil, err
	}
	g.logger.Info("Concurrent duplicate submission resolved to existing execution",
		zap.String("promptID", promptID.String()),
		zap.String("executionID", existing.ID.String()))
	return existing, nil
}
