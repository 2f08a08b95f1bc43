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
	spanFields = `id, trace_id, span_id, parent_span_id, execution_id, name, kind, start_time, end_time,
        duration_ms, status, model, prompt_tokens, response_tokens, data`

	upsertSpanQuery = `
        INSERT INTO spans (id, trace_id, span_id, parent_span_id, execution_id, name, kind, start_time, end_time,
            duration_ms, status, model, prompt_tokens, response_tokens, data)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        ON CONFLICT (execution_id) DO UPDATE SET
            trace_id = EXCLUDED.trace_id,
            span_id = EXCLUDED.span_id,
            parent_span_id = EXCLUDED.parent_span_id,
            name = EXCLUDED.name,
            kind = EXCLUDED.kind,
            start_time = EXCLUDED.start_time,
            end_time = EXCLUDED.end_time,
            duration_ms = EXCLUDED.duration_ms,
            status = EXCLUDED.status,
            model = EXCLUDED.model,
            prompt_tokens = EXCLUDED.prompt_tokens,
            response_tokens = EXCLUDED.response_tokens,
            data = EXCLUDED.data
        RETURNING id`
	getSpanByExecutionIDQuery = `SELECT ` + spanFields + ` FROM spans WHERE execution_id = $1`
)

var _ interfaces.SpanRepository = (*pgSpanRepository)(nil)

type pgSpanRepository struct {
	logger *zap.Logger
}

// NewPgSpanRepository creates a Postgres-backed SpanRepository.
func NewPgSpanRepository(logger *zap.Logger) interfaces.SpanRepository {
	return &pgSpanRepository{logger: logger.Named("PgSpanRepo")}
}

func (r *pgSpanRepository) Upsert(ctx context.Context, querier interfaces.DBTX, s *models.Span) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	err := querier.QueryRow(ctx, upsertSpanQuery,
		s.ID, s.TraceID, s.SpanID, s.ParentSpanID, s.ExecutionID, s.Name, s.Kind, s.StartTime, s.EndTime,
		s.DurationMs, s.Status, s.Model, s.PromptTokens, s.ResponseTokens, s.Data,
	).Scan(&s.ID)
	if err != nil {
		r.logger.Error("Failed to store span", zap.String("executionID", s.ExecutionID.String()), zap.Error(err))
		return mapError(err, "upsert span")
	}
	return nil
}

func (r *pgSpanRepository) GetByExecutionID(ctx context.Context, querier interfaces.DBTX, executionID uuid.UUID) (*models.Span, error) {
	var s models.Span
	if err := pgxscan.Get(ctx, querier, &s, getSpanByExecutionIDQuery, executionID); err != nil {
		return nil, mapError(err, "get span")
	}
	return &s, nil
}
