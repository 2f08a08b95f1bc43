package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/models"
)

// ModelService reads and seeds the models reference table.
type ModelService struct {
	db        interfaces.DBTX
	tx        interfaces.TxManager
	modelRepo interfaces.ModelRepository
	logger    *zap.Logger
}

func NewModelService(db interfaces.DBTX, tx interfaces.TxManager, modelRepo interfaces.ModelRepository, log *zap.Logger) *ModelService {
	return &ModelService{db: db, tx: tx, modelRepo: modelRepo, logger: log.Named("ModelService")}
}

func (s *ModelService) List(ctx context.Context) ([]*models.Model, error) {
	return s.modelRepo.List(ctx, s.db)
}

// Seed upserts all entries in one transaction, keyed by (provider, model_name).
func (s *ModelService) Seed(ctx context.Context, entries []*models.Model) (int, error) {
	for i, m := range entries {
		m.Provider = strings.ToLower(strings.TrimSpace(m.Provider))
		m.ModelName = strings.TrimSpace(m.ModelName)
		if m.Provider == "" || m.ModelName == "" {
			return 0, models.Validationf("models[%d]: provider and model_name are required", i)
		}
		if m.MaxTokens != nil && *m.MaxTokens < 1 {
			return 0, models.Validationf("models[%d]: max_tokens must be positive", i)
		}
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		for _, m := range entries {
			if err := s.modelRepo.Upsert(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to seed models", zap.Error(err))
		return 0, err
	}
	s.logger.Info("Models seeded", zap.Int("count", len(entries)))
	return len(entries), nil
}
