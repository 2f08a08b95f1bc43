package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/models"
)

const (
	executionFields = `id, prompt_id, version_id, model_id, execution_mode, status, environment, correlation_id,
        idempotency_key, rendered_prompt, response_text, prompt_tokens, response_tokens, latency_ms,
        provider_request_id, error_type, error_message, temperature, top_k, top_p, repetition_penalty,
        max_new_tokens, created_at, started_at, completed_at`

	createExecutionQuery = `
        INSERT INTO executions (id, prompt_id, version_id, model_id, execution_mode, status, environment,
            correlation_id, idempotency_key, rendered_prompt, temperature, top_k, top_p, repetition_penalty,
            max_new_tokens)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING created_at`
	createExecutionInputQuery = `
        INSERT INTO execution_inputs (execution_id, variables)
        VALUES ($1, $2)
        RETURNING created_at`
	getExecutionByIDQuery             = `SELECT ` + executionFields + ` FROM executions WHERE id = $1`
	getExecutionByIdempotencyKeyQuery = `SELECT ` + executionFields + ` FROM executions WHERE prompt_id = $1 AND idempotency_key = $2`
	getExecutionStatusQuery           = `SELECT status FROM executions WHERE id = $1`
	getExecutionInputQuery            = `SELECT execution_id, variables, created_at FROM execution_inputs WHERE execution_id = $1`
	transitionExecutionQuery          = `
        UPDATE executions SET
            status = $2,
            started_at = COALESCE($3, started_at),
            completed_at = COALESCE($4, completed_at),
            response_text = COALESCE($5, response_text),
            prompt_tokens = COALESCE($6, prompt_tokens),
            response_tokens = COALESCE($7, response_tokens),
            latency_ms = COALESCE($8, latency_ms),
            provider_request_id = COALESCE($9, provider_request_id),
            error_type = COALESCE($10, error_type),
            error_message = COALESCE($11, error_message)
        WHERE id = $1 AND status = ANY($12)
        RETURNING ` + executionFields
)

// maxListLimit caps execution listings.
const maxListLimit = 100

var _ interfaces.ExecutionRepository = (*pgExecutionRepository)(nil)

type pgExecutionRepository struct {
	logger *zap.Logger
}

// NewPgExecutionRepository creates a Postgres-backed ExecutionRepository.
func NewPgExecutionRepository(logger *zap.Logger) interfaces.ExecutionRepository {
	return &pgExecutionRepository{logger: logger.Named("PgExecutionRepo")}
}

func (r *pgExecutionRepository) Create(ctx context.Context, querier interfaces.DBTX, e *models.Execution, input *models.ExecutionInput) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := querier.QueryRow(ctx, createExecutionQuery,
		e.ID, e.PromptID, e.VersionID, e.ModelID, e.ExecutionMode, e.Status, e.Environment,
		e.CorrelationID, e.IdempotencyKey, e.RenderedPrompt,
		e.Temperature, e.TopK, e.TopP, e.RepetitionPenalty, e.MaxNewTokens,
	).Scan(&e.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			r.logger.Info("Duplicate idempotency key detected on insert",
				zap.String("promptID", e.PromptID.String()),
				zap.String("constraint", constraint))
		} else {
			r.logger.Error("Failed to create execution", zap.String("promptID", e.PromptID.String()), zap.Error(err))
		}
		return mapError(err, "create execution")
	}

	if input != nil {
		input.ExecutionID = e.ID
		if input.Variables == nil {
			input.Variables = map[string]any{}
		}
		if err := querier.QueryRow(ctx, createExecutionInputQuery, input.ExecutionID, input.Variables).Scan(&input.CreatedAt); err != nil {
			r.logger.Error("Failed to store execution input", zap.String("executionID", e.ID.String()), zap.Error(err))
			return mapError(err, "create execution input")
		}
	}

	r.logger.Debug("Execution row created",
		zap.String("executionID", e.ID.String()),
		zap.String("mode", string(e.ExecutionMode)),
		zap.Int("renderedBytes", len(e.RenderedPrompt)))
	return nil
}

func (r *pgExecutionRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Execution, error) {
	var e models.Execution
	if err := pgxscan.Get(ctx, querier, &e, getExecutionByIDQuery, id); err != nil {
		return nil, mapError(err, "get execution "+id.String())
	}
	return &e, nil
}

func (r *pgExecutionRepository) GetByIdempotencyKey(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID, key string) (*models.Execution, error) {
	var e models.Execution
	if err := pgxscan.Get(ctx, querier, &e, getExecutionByIdempotencyKeyQuery, promptID, key); err != nil {
		return nil, mapError(err, "get execution by idempotency key")
	}
	return &e, nil
}

func (r *pgExecutionRepository) GetInput(ctx context.Context, querier interfaces.DBTX, executionID uuid.UUID) (*models.ExecutionInput, error) {
	var in models.ExecutionInput
	if err := pgxscan.Get(ctx, querier, &in, getExecutionInputQuery, executionID); err != nil {
		return nil, mapError(err, "get execution input")
	}
	return &in, nil
}

func (r *pgExecutionRepository) Transition(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, from []models.ExecutionStatus, t models.Transition) (*models.Execution, error) {
	fromValues := make([]string, 0, len(from))
	for _, s := range from {
		fromValues = append(fromValues, string(s))
	}

	var e models.Execution
	err := pgxscan.Get(ctx, querier, &e, transitionExecutionQuery,
		id, t.To, t.StartedAt, t.CompletedAt, t.ResponseText, t.PromptTokens, t.ResponseTokens,
		t.LatencyMs, t.ProviderRequestID, t.ErrorType, t.ErrorMessage, fromValues,
	)
	if err == nil {
		return &e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("Failed to transition execution", zap.String("executionID", id.String()), zap.String("to", string(t.To)), zap.Error(err))
		return nil, mapError(err, "transition execution")
	}

	// No row matched: either the execution is missing or its status rules the move out.
	var current models.ExecutionStatus
	if err := querier.QueryRow(ctx, getExecutionStatusQuery, id).Scan(&current); err != nil {
		return nil, mapError(err, "get execution "+id.String())
	}
	return nil, &models.TransitionError{From: current, To: t.To}
}

func (r *pgExecutionRepository) List(ctx context.Context, querier interfaces.DBTX, filter models.ExecutionFilter) ([]*models.Execution, error) {
	var (
		conditions []string
		args       []any
	)
	from := `executions`
	if filter.PromptName != "" {
		from = `executions JOIN prompts p ON p.id = executions.prompt_id`
		args = append(args, filter.PromptName)
		conditions = append(conditions, fmt.Sprintf("p.name = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("executions.status = $%d", len(args)))
	}
	if filter.CorrelationID != "" {
		args = append(args, filter.CorrelationID)
		conditions = append(conditions, fmt.Sprintf("executions.correlation_id = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var qb strings.Builder
	qb.WriteString(`SELECT `)
	qb.WriteString(qualify(executionFields, "executions"))
	qb.WriteString(` FROM `)
	qb.WriteString(from)
	if len(conditions) > 0 {
		qb.WriteString(` WHERE `)
		qb.WriteString(strings.Join(conditions, " AND "))
	}
	args = append(args, limit, offset)
	qb.WriteString(fmt.Sprintf(` ORDER BY executions.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)))

	executions := make([]*models.Execution, 0)
	if err := pgxscan.Select(ctx, querier, &executions, qb.String(), args...); err != nil {
		r.logger.Error("Failed to list executions", zap.Any("filter", filter), zap.Error(err))
		return nil, mapError(err, "list executions")
	}
	return executions, nil
}

// qualify prefixes every column in a comma separated list with table.
func qualify(fields, table string) string {
	cols := strings.Split(fields, ",")
	for i, c := range cols {
		cols[i] = table + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
