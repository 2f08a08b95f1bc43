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
	promptFields  = `id, name, description, owner_team, mode, active_version_id, created_at, updated_at`
	versionFields = `id, prompt_id, version_number, template_text, checksum_hash, created_by, created_at`

	createPromptQuery = `
        INSERT INTO prompts (id, name, description, owner_team, mode)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at`
	getPromptByNameQuery          = `SELECT ` + promptFields + ` FROM prompts WHERE name = $1`
	getPromptByNameForUpdateQuery = getPromptByNameQuery + ` FOR UPDATE`
	getPromptByIDQuery            = `SELECT ` + promptFields + ` FROM prompts WHERE id = $1`
	listPromptsQuery     = `
        SELECT ` + promptFields + ` FROM prompts
        WHERE ($1 = '' OR mode = $1)
        ORDER BY name
        LIMIT $2 OFFSET $3`
	updatePromptMetadataQuery = `
        UPDATE prompts SET
            description = COALESCE($2, description),
            owner_team = COALESCE($3, owner_team),
            updated_at = NOW()
        WHERE id = $1`
	setActiveVersionQuery = `
        UPDATE prompts SET active_version_id = $2, updated_at = NOW()
        WHERE id = $1`

	createVersionQuery = `
        INSERT INTO prompt_versions (id, prompt_id, version_number, template_text, checksum_hash, created_by)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`
	getVersionByChecksumQuery = `SELECT ` + versionFields + ` FROM prompt_versions WHERE prompt_id = $1 AND checksum_hash = $2`
	getVersionByNumberQuery   = `SELECT ` + versionFields + ` FROM prompt_versions WHERE prompt_id = $1 AND version_number = $2`
	getVersionByIDQuery       = `SELECT ` + versionFields + ` FROM prompt_versions WHERE id = $1`
	maxVersionNumberQuery     = `SELECT COALESCE(MAX(version_number), 0) FROM prompt_versions WHERE prompt_id = $1`
	listVersionsQuery         = `SELECT ` + versionFields + ` FROM prompt_versions WHERE prompt_id = $1 ORDER BY version_number DESC`
	versionHistoryQuery       = `
        SELECT v.id, v.prompt_id, v.version_number, v.template_text, v.checksum_hash, v.created_by, v.created_at,
               COUNT(e.id) AS execution_count
        FROM prompt_versions v
        LEFT JOIN executions e ON e.version_id = v.id
        WHERE v.prompt_id = $1
        GROUP BY v.id
        ORDER BY v.version_number DESC`
)

var _ interfaces.PromptRepository = (*pgPromptRepository)(nil)

type pgPromptRepository struct {
	logger *zap.Logger
}

// NewPgPromptRepository creates a Postgres-backed PromptRepository.
func NewPgPromptRepository(logger *zap.Logger) interfaces.PromptRepository {
	return &pgPromptRepository{logger: logger.Named("PgPromptRepo")}
}

func (r *pgPromptRepository) CreatePrompt(ctx context.Context, querier interfaces.DBTX, prompt *models.Prompt) error {
	if prompt.ID == uuid.Nil {
		prompt.ID = uuid.New()
	}
	if prompt.Mode == "" {
		prompt.Mode = models.PromptModeFull
	}
	err := querier.QueryRow(ctx, createPromptQuery,
		prompt.ID, prompt.Name, prompt.Description, prompt.OwnerTeam, prompt.Mode,
	).Scan(&prompt.CreatedAt, &prompt.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			r.logger.Debug("Prompt name already taken", zap.String("name", prompt.Name))
		} else {
			r.logger.Error("Failed to create prompt", zap.String("name", prompt.Name), zap.Error(err))
		}
		return mapError(err, "create prompt")
	}
	r.logger.Info("Prompt created", zap.String("promptID", prompt.ID.String()), zap.String("name", prompt.Name), zap.String("mode", string(prompt.Mode)))
	return nil
}

func (r *pgPromptRepository) GetPromptByName(ctx context.Context, querier interfaces.DBTX, name string) (*models.Prompt, error) {
	var prompt models.Prompt
	if err := pgxscan.Get(ctx, querier, &prompt, getPromptByNameQuery, name); err != nil {
		return nil, mapError(err, "get prompt "+name)
	}
	return &prompt, nil
}

func (r *pgPromptRepository) GetPromptByNameForUpdate(ctx context.Context, querier interfaces.DBTX, name string) (*models.Prompt, error) {
	var prompt models.Prompt
	if err := pgxscan.Get(ctx, querier, &prompt, getPromptByNameForUpdateQuery, name); err != nil {
		return nil, mapError(err, "lock prompt "+name)
	}
	return &prompt, nil
}

func (r *pgPromptRepository) GetPromptByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Prompt, error) {
	var prompt models.Prompt
	if err := pgxscan.Get(ctx, querier, &prompt, getPromptByIDQuery, id); err != nil {
		return nil, mapError(err, "get prompt by id")
	}
	return &prompt, nil
}

func (r *pgPromptRepository) ListPrompts(ctx context.Context, querier interfaces.DBTX, mode models.PromptMode, limit, offset int) ([]*models.Prompt, error) {
	prompts := make([]*models.Prompt, 0)
	if err := pgxscan.Select(ctx, querier, &prompts, listPromptsQuery, string(mode), limit, offset); err != nil {
		r.logger.Error("Failed to list prompts", zap.Error(err))
		return nil, mapError(err, "list prompts")
	}
	return prompts, nil
}

func (r *pgPromptRepository) UpdatePromptMetadata(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, description, ownerTeam *string) error {
	tag, err := querier.Exec(ctx, updatePromptMetadataQuery, id, description, ownerTeam)
	if err != nil {
		return mapError(err, "update prompt metadata")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFoundf("prompt %s", id)
	}
	return nil
}

func (r *pgPromptRepository) SetActiveVersion(ctx context.Context, querier interfaces.DBTX, promptID, versionID uuid.UUID) error {
	tag, err := querier.Exec(ctx, setActiveVersionQuery, promptID, versionID)
	if err != nil {
		r.logger.Error("Failed to set active version", zap.String("promptID", promptID.String()), zap.String("versionID", versionID.String()), zap.Error(err))
		return mapError(err, "set active version")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFoundf("prompt %s", promptID)
	}
	r.logger.Info("Active version updated", zap.String("promptID", promptID.String()), zap.String("versionID", versionID.String()))
	return nil
}

func (r *pgPromptRepository) CreateVersion(ctx context.Context, querier interfaces.DBTX, version *models.PromptVersion) error {
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	err := querier.QueryRow(ctx, createVersionQuery,
		version.ID, version.PromptID, version.VersionNumber, version.TemplateText, version.ChecksumHash, version.CreatedBy,
	).Scan(&version.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			r.logger.Warn("Concurrent version insert lost the race",
				zap.String("promptID", version.PromptID.String()),
				zap.Int("versionNumber", version.VersionNumber),
				zap.String("constraint", constraint))
		} else {
			r.logger.Error("Failed to create prompt version", zap.String("promptID", version.PromptID.String()), zap.Error(err))
		}
		return mapError(err, "create prompt version")
	}
	r.logger.Info("Prompt version created",
		zap.String("promptID", version.PromptID.String()),
		zap.Int("versionNumber", version.VersionNumber),
		zap.String("checksum", version.ChecksumHash))
	return nil
}

func (r *pgPromptRepository) GetVersionByChecksum(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID, checksum string) (*models.PromptVersion, error) {
	var version models.PromptVersion
	if err := pgxscan.Get(ctx, querier, &version, getVersionByChecksumQuery, promptID, checksum); err != nil {
		return nil, mapError(err, "get version by checksum")
	}
	return &version, nil
}

func (r *pgPromptRepository) GetVersionByNumber(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID, number int) (*models.PromptVersion, error) {
	var version models.PromptVersion
	if err := pgxscan.Get(ctx, querier, &version, getVersionByNumberQuery, promptID, number); err != nil {
		return nil, mapError(err, "get version by number")
	}
	return &version, nil
}

func (r *pgPromptRepository) GetVersionByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.PromptVersion, error) {
	var version models.PromptVersion
	if err := pgxscan.Get(ctx, querier, &version, getVersionByIDQuery, id); err != nil {
		return nil, mapError(err, "get version by id")
	}
	return &version, nil
}

func (r *pgPromptRepository) MaxVersionNumber(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID) (int, error) {
	var max int
	if err := querier.QueryRow(ctx, maxVersionNumberQuery, promptID).Scan(&max); err != nil {
		return 0, mapError(err, "get max version number")
	}
	return max, nil
}

func (r *pgPromptRepository) ListVersions(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID) ([]*models.PromptVersion, error) {
	versions := make([]*models.PromptVersion, 0)
	if err := pgxscan.Select(ctx, querier, &versions, listVersionsQuery, promptID); err != nil {
		return nil, mapError(err, "list versions")
	}
	return versions, nil
}

func (r *pgPromptRepository) VersionHistory(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID) ([]*models.VersionUsage, error) {
	history := make([]*models.VersionUsage, 0)
	if err := pgxscan.Select(ctx, querier, &history, versionHistoryQuery, promptID); err != nil {
		return nil, mapError(err, "load version history")
	}
	return history, nil
}
