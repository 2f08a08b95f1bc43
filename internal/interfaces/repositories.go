package interfaces

import (
	"context"

	"github.com/google/uuid"

	"github.com/promptledger/PromptLedger/internal/models"
)

// PromptRepository manages prompts and their append-only versions.
type PromptRepository interface {
	// CreatePrompt inserts a prompt. Returns models.ErrAlreadyExists on a name clash.
	CreatePrompt(ctx context.Context, querier DBTX, prompt *models.Prompt) error
	GetPromptByName(ctx context.Context, querier DBTX, name string) (*models.Prompt, error)
	// GetPromptByNameForUpdate locks the prompt row until querier's transaction ends.
	GetPromptByNameForUpdate(ctx context.Context, querier DBTX, name string) (*models.Prompt, error)
	GetPromptByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Prompt, error)
	ListPrompts(ctx context.Context, querier DBTX, mode models.PromptMode, limit, offset int) ([]*models.Prompt, error)
	UpdatePromptMetadata(ctx context.Context, querier DBTX, id uuid.UUID, description, ownerTeam *string) error
	SetActiveVersion(ctx context.Context, querier DBTX, promptID, versionID uuid.UUID) error

	// CreateVersion inserts a version. Returns models.ErrAlreadyExists when
	// (prompt_id, checksum_hash) or (prompt_id, version_number) is taken.
	CreateVersion(ctx context.Context, querier DBTX, version *models.PromptVersion) error
	GetVersionByChecksum(ctx context.Context, querier DBTX, promptID uuid.UUID, checksum string) (*models.PromptVersion, error)
	GetVersionByNumber(ctx context.Context, querier DBTX, promptID uuid.UUID, number int) (*models.PromptVersion, error)
	GetVersionByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.PromptVersion, error)
	// MaxVersionNumber returns 0 when the prompt has no versions.
	MaxVersionNumber(ctx context.Context, querier DBTX, promptID uuid.UUID) (int, error)
	ListVersions(ctx context.Context, querier DBTX, promptID uuid.UUID) ([]*models.PromptVersion, error)
	VersionHistory(ctx context.Context, querier DBTX, promptID uuid.UUID) ([]*models.VersionUsage, error)
}

// ExecutionRepository persists executions and their inputs.
type ExecutionRepository interface {
	// Create inserts the execution and its input row. Returns models.ErrAlreadyExists
	// when (prompt_id, idempotency_key) is taken.
	Create(ctx context.Context, querier DBTX, execution *models.Execution, input *models.ExecutionInput) error
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Execution, error)
	GetByIdempotencyKey(ctx context.Context, querier DBTX, promptID uuid.UUID, key string) (*models.Execution, error)
	GetInput(ctx context.Context, querier DBTX, executionID uuid.UUID) (*models.ExecutionInput, error)
	// Transition applies t only when the current status is one of from.
	// Returns models.ErrInvalidTransition (as *models.TransitionError) when the row is in another status.
	Transition(ctx context.Context, querier DBTX, id uuid.UUID, from []models.ExecutionStatus, t models.Transition) (*models.Execution, error)
	List(ctx context.Context, querier DBTX, filter models.ExecutionFilter) ([]*models.Execution, error)
}

// ModelRepository reads and seeds the models reference table.
type ModelRepository interface {
	GetByProviderAndName(ctx context.Context, querier DBTX, provider, modelName string) (*models.Model, error)
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Model, error)
	List(ctx context.Context, querier DBTX) ([]*models.Model, error)
	Upsert(ctx context.Context, querier DBTX, model *models.Model) error
}

// SpanRepository stores one span per execution.
type SpanRepository interface {
	Upsert(ctx context.Context, querier DBTX, span *models.Span) error
	GetByExecutionID(ctx context.Context, querier DBTX, executionID uuid.UUID) (*models.Span, error)
}
