package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/logger"
	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/truncate"
)

// CreateRequest carries everything stored on a new execution. RenderedPrompt is final text.
type CreateRequest struct {
	Prompt         *models.Prompt
	Version        *models.PromptVersion
	Model          *models.Model
	Mode           models.ExecutionMode
	RenderedPrompt string
	Variables      map[string]any
	Params         models.GenerationParams
	Environment    string
	CorrelationID  *string
	IdempotencyKey *string
}

// Outcome is a successful provider result to record on an execution.
type Outcome struct {
	ResponseText      string
	PromptTokens      *int
	ResponseTokens    *int
	LatencyMs         int
	ProviderRequestID string
}

// LifecycleManager owns the execution state machine. Every status change goes through a
// conditional update, so late or duplicate callbacks cannot move a terminal execution.
type LifecycleManager struct {
	db         interfaces.DBTX
	tx         interfaces.TxManager
	executions interfaces.ExecutionRepository
	guard      *IdempotencyGuard
	logger     *zap.Logger
	now        func() time.Time
}

func NewLifecycleManager(db interfaces.DBTX, tx interfaces.TxManager, executions interfaces.ExecutionRepository, guard *IdempotencyGuard, log *zap.Logger) *LifecycleManager {
	return &LifecycleManager{
		db:         db,
		tx:         tx,
		executions: executions,
		guard:      guard,
		logger:     log.Named("LifecycleManager"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// FindReplay returns the execution already stored under key for promptID, or nil.
func (m *LifecycleManager) FindReplay(ctx context.Context, promptID uuid.UUID, key *string) (*models.Execution, error) {
	return m.guard.Admit(ctx, m.db, promptID, key)
}

// Create stores a queued execution and its inputs. The second return value is true when the
// idempotency key matched an existing execution, which is returned instead.
func (m *LifecycleManager) Create(ctx context.Context, req CreateRequest) (*models.Execution, bool, error) {
	if !req.Mode.Valid() {
		return nil, false, models.Validationf("unknown execution mode %q", req.Mode)
	}
	if truncate.Exceeds(req.RenderedPrompt, truncate.MaxRenderedPromptBytes) {
		return nil, false, models.Validationf("rendered prompt is %d bytes, limit is %d", len(req.RenderedPrompt), truncate.MaxRenderedPromptBytes)
	}
	if req.IdempotencyKey != nil && *req.IdempotencyKey == "" {
		req.IdempotencyKey = nil
	}

	existing, err := m.guard.Admit(ctx, m.db, req.Prompt.ID, req.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	variables := req.Variables
	if variables == nil {
		variables = map[string]any{}
	}
	exec := &models.Execution{
		ID:               uuid.New(),
		PromptID:         req.Prompt.ID,
		VersionID:        req.Version.ID,
		ModelID:          req.Model.ID,
		ExecutionMode:    req.Mode,
		Status:           models.StatusQueued,
		Environment:      req.Environment,
		CorrelationID:    req.CorrelationID,
		IdempotencyKey:   req.IdempotencyKey,
		RenderedPrompt:   req.RenderedPrompt,
		GenerationParams: req.Params,
		CreatedAt:        m.now(),
	}
	input := &models.ExecutionInput{ExecutionID: exec.ID, Variables: variables}

	err = m.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		return m.executions.Create(ctx, tx, exec, input)
	})
	if errors.Is(err, models.ErrAlreadyExists) && req.IdempotencyKey != nil {
		winner, lookupErr := m.guard.Winner(ctx, m.db, req.Prompt.ID, *req.IdempotencyKey)
		if lookupErr != nil {
			return nil, false, fmt.Errorf("failed to load execution for idempotency key: %w", lookupErr)
		}
		return winner, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	m.logger.Info("Execution created",
		append(logger.ExecutionFields(exec.ID, exec.Status),
			zap.String("prompt", req.Prompt.Name),
			zap.Int("versionNumber", req.Version.VersionNumber),
			zap.String("mode", string(exec.ExecutionMode)))...)
	return exec, false, nil
}

// MarkRunning moves queued -> running.
func (m *LifecycleManager) MarkRunning(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	now := m.now()
	return m.transition(ctx, id, models.Transition{To: models.StatusRunning, StartedAt: &now})
}

// Complete moves running -> succeeded. An oversized response is cut to the storage limit and
// flagged with error_type "truncated"; the execution still succeeds.
func (m *LifecycleManager) Complete(ctx context.Context, id uuid.UUID, out Outcome) (*models.Execution, error) {
	now := m.now()
	text, cut := truncate.Enforce(out.ResponseText, truncate.MaxResponseBytes)
	t := models.Transition{
		To:             models.StatusSucceeded,
		CompletedAt:    &now,
		ResponseText:   &text,
		PromptTokens:   out.PromptTokens,
		ResponseTokens: out.ResponseTokens,
		LatencyMs:      &out.LatencyMs,
	}
	if out.ProviderRequestID != "" {
		t.ProviderRequestID = &out.ProviderRequestID
	}
	if cut {
		errorType := models.ErrorTypeTruncated
		message := fmt.Sprintf("response truncated from %d to %d bytes", len(out.ResponseText), len(text))
		t.ErrorType = &errorType
		t.ErrorMessage = &message
	}

	exec, err := m.transition(ctx, id, t)
	if err != nil {
		return nil, err
	}
	if cut {
		truncationsTotal.WithLabelValues("response_text").Inc()
		m.logger.Warn("Response truncated", append(logger.ExecutionFields(id, exec.Status),
			zap.Int("originalBytes", len(out.ResponseText)),
			zap.Int("storedBytes", len(text)))...)
	}
	m.observeTerminal(exec)
	return exec, nil
}

// Fail moves running -> failed with an error classification.
func (m *LifecycleManager) Fail(ctx context.Context, id uuid.UUID, errorType, errorMessage string) (*models.Execution, error) {
	now := m.now()
	exec, err := m.transition(ctx, id, models.Transition{
		To:           models.StatusFailed,
		CompletedAt:  &now,
		ErrorType:    &errorType,
		ErrorMessage: &errorMessage,
	})
	if err != nil {
		return nil, err
	}
	m.observeTerminal(exec)
	return exec, nil
}

// Cancel moves a queued or running execution to canceled. reason, when set, is stored as the error.
func (m *LifecycleManager) Cancel(ctx context.Context, id uuid.UUID, errorType, reason string) (*models.Execution, error) {
	now := m.now()
	t := models.Transition{To: models.StatusCanceled, CompletedAt: &now}
	if errorType != "" {
		t.ErrorType = &errorType
	}
	if reason != "" {
		t.ErrorMessage = &reason
	}
	exec, err := m.transition(ctx, id, t)
	if err != nil {
		return nil, err
	}
	m.observeTerminal(exec)
	return exec, nil
}

func (m *LifecycleManager) transition(ctx context.Context, id uuid.UUID, t models.Transition) (*models.Execution, error) {
	exec, err := m.executions.Transition(ctx, m.db, id, models.SourcesFor(t.To), t)
	if err != nil {
		var te *models.TransitionError
		if errors.As(err, &te) {
			m.logger.Warn("Execution transition rejected",
				append(logger.ExecutionFields(id, te.From), zap.String("attempted", string(t.To)))...)
		}
		return nil, err
	}
	m.logger.Debug("Execution transitioned", logger.ExecutionFields(id, exec.Status)...)
	return exec, nil
}

func (m *LifecycleManager) observeTerminal(exec *models.Execution) {
	executionsTotal.WithLabelValues(string(exec.ExecutionMode), string(exec.Status)).Inc()
	if exec.StartedAt != nil && exec.CompletedAt != nil {
		executionDuration.WithLabelValues(string(exec.ExecutionMode)).Observe(exec.CompletedAt.Sub(*exec.StartedAt).Seconds())
	}
}
