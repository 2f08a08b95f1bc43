package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/render"
)

// ErrorTypeQueue marks executions canceled because they could not be enqueued.
const ErrorTypeQueue = "queue_error"

// RunRequest is a request to render and execute a prompt version.
type RunRequest struct {
	PromptName     string
	Version        VersionSelector
	Variables      map[string]any
	Provider       string
	ModelName      string
	Params         models.GenerationParams
	Environment    string
	CorrelationID  *string
	IdempotencyKey *string
	// RequireMode rejects prompts in another mode when set.
	RequireMode models.PromptMode
}

// ExecutionResult is an execution together with the lineage it was created from.
type ExecutionResult struct {
	Execution *models.Execution
	Prompt    *models.Prompt
	Version   *models.PromptVersion
	Replayed  bool
}

// ExecutionService is the entry point for run, submit, poll and cancel.
type ExecutionService struct {
	db          interfaces.DBTX
	versioning  *VersioningService
	prompts     interfaces.PromptRepository
	executions  interfaces.ExecutionRepository
	modelRepo   interfaces.ModelRepository
	lifecycle   *LifecycleManager
	dispatcher  *Dispatcher
	queue       interfaces.ExecutionQueue
	environment string
	logger      *zap.Logger
}

func NewExecutionService(
	db interfaces.DBTX,
	versioning *VersioningService,
	prompts interfaces.PromptRepository,
	executions interfaces.ExecutionRepository,
	modelRepo interfaces.ModelRepository,
	lifecycle *LifecycleManager,
	dispatcher *Dispatcher,
	queue interfaces.ExecutionQueue,
	defaultEnvironment string,
	log *zap.Logger,
) *ExecutionService {
	if defaultEnvironment == "" {
		defaultEnvironment = "dev"
	}
	return &ExecutionService{
		db:          db,
		versioning:  versioning,
		prompts:     prompts,
		executions:  executions,
		modelRepo:   modelRepo,
		lifecycle:   lifecycle,
		dispatcher:  dispatcher,
		queue:       queue,
		environment: defaultEnvironment,
		logger:      log.Named("ExecutionService"),
	}
}

// Run creates an execution and dispatches it inline, returning once it is terminal.
func (s *ExecutionService) Run(ctx context.Context, req RunRequest) (*ExecutionResult, error) {
	return s.Execute(ctx, models.ModeSync, req)
}

// Submit creates an execution and hands its id to the queue, returning it while still queued.
func (s *ExecutionService) Submit(ctx context.Context, req RunRequest) (*ExecutionResult, error) {
	return s.Execute(ctx, models.ModeAsync, req)
}

// Execute resolves, renders, creates and dispatches in the given mode. Errors returned here
// happen before an execution row exists; provider failures are reported on the row.
func (s *ExecutionService) Execute(ctx context.Context, mode models.ExecutionMode, req RunRequest) (*ExecutionResult, error) {
	if !mode.Valid() {
		return nil, models.Validationf("invalid execution mode %q, must be sync or async", mode)
	}
	if err := validateRunRequest(&req); err != nil {
		return nil, err
	}
	if req.Environment == "" {
		req.Environment = s.environment
	}

	prompt, version, err := s.versioning.ResolveVersion(ctx, req.PromptName, req.Version)
	if err != nil {
		return nil, err
	}
	if req.RequireMode != "" && prompt.Mode != req.RequireMode {
		return nil, modeMismatch(prompt, req.RequireMode, "execute")
	}

	// A replay answers with the stored execution whatever the current variables render to.
	existing, err := s.lifecycle.FindReplay(ctx, prompt.ID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.replayResult(ctx, existing, prompt, version)
	}

	model, err := s.modelRepo.GetByProviderAndName(ctx, s.db, req.Provider, req.ModelName)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NotFoundf("model %s/%s", req.Provider, req.ModelName)
		}
		return nil, err
	}

	rendered, err := render.Render(version.TemplateText, req.Variables)
	if err != nil {
		return nil, err
	}

	exec, replayed, err := s.lifecycle.Create(ctx, CreateRequest{
		Prompt:         prompt,
		Version:        version,
		Model:          model,
		Mode:           mode,
		RenderedPrompt: rendered,
		Variables:      req.Variables,
		Params:         req.Params,
		Environment:    req.Environment,
		CorrelationID:  req.CorrelationID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return s.replayResult(ctx, exec, prompt, version)
	}
	result := &ExecutionResult{Execution: exec, Prompt: prompt, Version: version}

	switch mode {
	case models.ModeSync:
		final, err := s.dispatcher.Run(ctx, exec)
		if err != nil {
			return nil, fmt.Errorf("failed to dispatch execution %s: %w", exec.ID, err)
		}
		result.Execution = final
	case models.ModeAsync:
		if err := s.queue.Enqueue(ctx, exec.ID); err != nil {
			s.logger.Error("Failed to enqueue execution, canceling it",
				zap.String("executionID", exec.ID.String()), zap.Error(err))
			if _, cancelErr := s.lifecycle.Cancel(context.WithoutCancel(ctx), exec.ID, ErrorTypeQueue, err.Error()); cancelErr != nil {
				s.logger.Error("Failed to cancel unqueued execution",
					zap.String("executionID", exec.ID.String()), zap.Error(cancelErr))
			}
			return nil, fmt.Errorf("failed to enqueue execution %s: %w", exec.ID, err)
		}
	}
	return result, nil
}

// replayResult reports a stored execution, loading the version it actually ran against.
func (s *ExecutionService) replayResult(ctx context.Context, exec *models.Execution, prompt *models.Prompt, version *models.PromptVersion) (*ExecutionResult, error) {
	if exec.VersionID != version.ID {
		var err error
		if version, err = s.prompts.GetVersionByID(ctx, s.db, exec.VersionID); err != nil {
			return nil, err
		}
	}
	return &ExecutionResult{Execution: exec, Prompt: prompt, Version: version, Replayed: true}, nil
}

// Get returns the current state of an execution.
func (s *ExecutionService) Get(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	return s.executions.GetByID(ctx, s.db, id)
}

// GetInput returns the variables an execution was rendered with.
func (s *ExecutionService) GetInput(ctx context.Context, id uuid.UUID) (*models.ExecutionInput, error) {
	return s.executions.GetInput(ctx, s.db, id)
}

func (s *ExecutionService) List(ctx context.Context, filter models.ExecutionFilter) ([]*models.Execution, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.Validationf("unknown status %q", filter.Status)
	}
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return s.executions.List(ctx, s.db, filter)
}

// Cancel administratively cancels a queued or running execution.
func (s *ExecutionService) Cancel(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	exec, err := s.lifecycle.Cancel(ctx, id, "", "canceled by request")
	if err != nil {
		return nil, err
	}
	s.logger.Info("Execution canceled", zap.String("executionID", id.String()))
	return exec, nil
}

func validateRunRequest(req *RunRequest) error {
	req.PromptName = strings.TrimSpace(req.PromptName)
	if req.PromptName == "" {
		return models.Validationf("prompt_name is required")
	}
	req.Provider = strings.TrimSpace(req.Provider)
	req.ModelName = strings.TrimSpace(req.ModelName)
	if req.Provider == "" || req.ModelName == "" {
		return models.Validationf("model.provider and model.model_name are required")
	}
	if req.Version.Number != nil && *req.Version.Number < 1 {
		return models.Validationf("version_number must be positive")
	}
	if req.IdempotencyKey != nil && len(*req.IdempotencyKey) > 255 {
		return models.Validationf("idempotency_key is longer than 255 characters")
	}
	return validateParams(req.Params)
}

func validateParams(p models.GenerationParams) error {
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return models.Validationf("temperature must be between 0 and 2")
	}
	if p.TopP != nil && (*p.TopP <= 0 || *p.TopP > 1) {
		return models.Validationf("top_p must be in (0, 1]")
	}
	if p.TopK != nil && *p.TopK < 1 {
		return models.Validationf("top_k must be at least 1")
	}
	if p.RepetitionPenalty != nil && *p.RepetitionPenalty <= 0 {
		return models.Validationf("repetition_penalty must be positive")
	}
	if p.MaxNewTokens != nil && *p.MaxNewTokens < 1 {
		return models.Validationf("max_new_tokens must be at least 1")
	}
	return nil
}
