package repository

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/models"
)

const (
	modelFields = `id, provider, model_name, max_tokens, supports_streaming, created_at`

	getModelByProviderAndNameQuery = `SELECT ` + modelFields + ` FROM models WHERE provider = $1 AND model_name = $2`
	getModelByIDQuery              = `SELECT ` + modelFields + ` FROM models WHERE id = $1`
	listModelsQuery                = `SELECT ` + modelFields + ` FROM models ORDER BY provider, model_name`
	upsertModelQuery               = `
        INSERT INTO models (id, provider, model_name, max_tokens, supports_streaming)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (provider, model_name) DO UPDATE SET
            max_tokens = EXCLUDED.max_tokens,
            supports_streaming = EXCLUDED.supports_streaming
        RETURNING id, created_at`
)

var _ interfaces.ModelRepository = (*pgModelRepository)(nil)

type pgModelRepository struct {
	logger *zap.Logger
}

// NewPgModelRepository creates a Postgres-backed ModelRepository.
func NewPgModelRepository(logger *zap.Logger) interfaces.ModelRepository {
	return &pgModelRepository{logger: logger.Named("PgModelRepo")}
}

func (r *pgModelRepository) GetByProviderAndName(ctx context.Context, querier interfaces.DBTX, provider, modelName string) (*models.Model, error) {
	var m models.Model
	if err := pgxscan.Get(ctx, querier, &m, getModelByProviderAndNameQuery, provider, modelName); err != nil {
		return nil, mapError(err, "get model "+provider+"/"+modelName)
	}
	return &m, nil
}

func (r *pgModelRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Model, error) {
	var m models.Model
	if err := pgxscan.Get(ctx, querier, &m, getModelByIDQuery, id); err != nil {
		return nil, mapError(err, "get model by id")
	}
	return &m, nil
}

func (r *pgModelRepository) List(ctx context.Context, querier interfaces.DBTX) ([]*models.Model, error) {
	list := make([]*models.Model, 0)
	if err := pgxscan.Select(ctx, querier, &list, listModelsQuery); err != nil {
		return nil, mapError(err, "list models")
	}
	return list, nil
}

// Upsert keeps the existing id when (provider, model_name) is already registered.
func (r *pgModelRepository) Upsert(ctx context.Context, querier interfaces.DBTX, m *models.Model) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := querier.QueryRow(ctx, upsertModelQuery, m.ID, m.Provider, m.ModelName, m.MaxTokens, m.SupportsStreaming).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert model", zap.String("provider", m.Provider), zap.String("model", m.ModelName), zap.Error(err))
		return mapError(err, "upsert model")
	}
	r.logger.Info("Model registered", zap.String("provider", m.Provider), zap.String("model", m.ModelName))
	return nil
}
