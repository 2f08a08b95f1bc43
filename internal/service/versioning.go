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
)

// maxRegisterAttempts bounds how often a registration is retried after losing a unique-constraint race.
// Only the first insert of a prompt can race; later registrations wait on the prompt row lock.
const maxRegisterAttempts = 3

// RegisterInput describes one template registration.
type RegisterInput struct {
	Name         string
	TemplateText string
	Description  *string
	OwnerTeam    *string
	CreatedBy    *string
	SetActive    bool
	Mode         models.PromptMode
}

// VersionResult is the outcome of ResolveOrCreateVersion.
type VersionResult struct {
	Prompt         *models.Prompt
	Version        *models.PromptVersion
	VersionChanged bool
	PromptCreated  bool
	// PreviousActive is the active version number before this call, nil for a new prompt.
	PreviousActive *int
}

// VersionSelector pins a run to a version. Both fields nil means "active version".
type VersionSelector struct {
	Number *int
	ID     *uuid.UUID
}

// PromptDetails is a prompt together with its active version, if any.
type PromptDetails struct {
	Prompt        *models.Prompt
	ActiveVersion *models.PromptVersion
}

// VersioningService resolves and creates prompt versions keyed by template checksum.
type VersioningService struct {
	db      interfaces.DBTX
	tx      interfaces.TxManager
	prompts interfaces.PromptRepository
	logger  *zap.Logger
}

func NewVersioningService(db interfaces.DBTX, tx interfaces.TxManager, prompts interfaces.PromptRepository, logger *zap.Logger) *VersioningService {
	return &VersioningService{
		db:      db,
		tx:      tx,
		prompts: prompts,
		logger:  logger.Named("VersioningService"),
	}
}

// ResolveOrCreateVersion returns the version holding exactly in.TemplateText, creating the prompt
// and/or a new version when needed. Identical content never yields a second version.
func (s *VersioningService) ResolveOrCreateVersion(ctx context.Context, in RegisterInput) (*VersionResult, error) {
	if err := validateRegisterInput(&in); err != nil {
		return nil, err
	}
	checksum := models.Checksum(in.TemplateText)
	log := s.logger.With(zap.String("prompt", in.Name), zap.String("checksum", checksum))

	var result *VersionResult
	var err error
	for attempt := 1; attempt <= maxRegisterAttempts; attempt++ {
		err = s.tx.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
			var txErr error
			result, txErr = s.resolveOrCreateTx(ctx, tx, in, checksum)
			return txErr
		})
		if !errors.Is(err, models.ErrAlreadyExists) {
			break
		}
		// A concurrent registration inserted the same prompt or version first; the next
		// attempt finds that row through the lookup path.
		log.Info("Registration lost a unique-constraint race, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			log.Error("Registration kept conflicting", zap.Error(err))
			return nil, fmt.Errorf("failed to register prompt %q after %d attempts: %w", in.Name, maxRegisterAttempts, err)
		}
		return nil, err
	}

	log.Info("Prompt version resolved",
		zap.Int("versionNumber", result.Version.VersionNumber),
		zap.Bool("versionChanged", result.VersionChanged))
	return result, nil
}

func (s *VersioningService) resolveOrCreateTx(ctx context.Context, tx interfaces.DBTX, in RegisterInput, checksum string) (*VersionResult, error) {
	result := &VersionResult{}

	// The row lock serializes version numbering per prompt.
	prompt, err := s.prompts.GetPromptByNameForUpdate(ctx, tx, in.Name)
	switch {
	case errors.Is(err, models.ErrNotFound):
		prompt = &models.Prompt{
			Name:        in.Name,
			Description: in.Description,
			OwnerTeam:   in.OwnerTeam,
			Mode:        in.Mode,
		}
		if err := s.prompts.CreatePrompt(ctx, tx, prompt); err != nil {
			return nil, err
		}
		result.PromptCreated = true
	case err != nil:
		return nil, err
	default:
		if prompt.Mode != in.Mode {
			return nil, modeMismatch(prompt, in.Mode, "register")
		}
		if in.Description != nil || in.OwnerTeam != nil {
			if err := s.prompts.UpdatePromptMetadata(ctx, tx, prompt.ID, in.Description, in.OwnerTeam); err != nil {
				return nil, err
			}
			if in.Description != nil {
				prompt.Description = in.Description
			}
			if in.OwnerTeam != nil {
				prompt.OwnerTeam = in.OwnerTeam
			}
		}
		if prompt.ActiveVersionID != nil {
			active, err := s.prompts.GetVersionByID(ctx, tx, *prompt.ActiveVersionID)
			if err != nil {
				return nil, err
			}
			number := active.VersionNumber
			result.PreviousActive = &number
		}
	}
	result.Prompt = prompt

	version, err := s.prompts.GetVersionByChecksum(ctx, tx, prompt.ID, checksum)
	switch {
	case err == nil:
		result.Version = version
	case errors.Is(err, models.ErrNotFound):
		maxNumber, err := s.prompts.MaxVersionNumber(ctx, tx, prompt.ID)
		if err != nil {
			return nil, err
		}
		version = &models.PromptVersion{
			PromptID:      prompt.ID,
			VersionNumber: maxNumber + 1,
			TemplateText:  in.TemplateText,
			ChecksumHash:  checksum,
			CreatedBy:     in.CreatedBy,
		}
		if err := s.prompts.CreateVersion(ctx, tx, version); err != nil {
			return nil, err
		}
		result.Version = version
		result.VersionChanged = true
	default:
		return nil, err
	}

	if (in.SetActive || prompt.ActiveVersionID == nil) && !isActive(prompt, version) {
		if err := s.prompts.SetActiveVersion(ctx, tx, prompt.ID, version.ID); err != nil {
			return nil, err
		}
		id := version.ID
		prompt.ActiveVersionID = &id
	}
	return result, nil
}

// ResolveVersion returns the pinned version when sel names one, otherwise the active version.
// A version id belonging to another prompt is a mode mismatch.
func (s *VersioningService) ResolveVersion(ctx context.Context, promptName string, sel VersionSelector) (*models.Prompt, *models.PromptVersion, error) {
	prompt, err := s.prompts.GetPromptByName(ctx, s.db, promptName)
	if err != nil {
		return nil, nil, err
	}

	var version *models.PromptVersion
	switch {
	case sel.ID != nil:
		version, err = s.prompts.GetVersionByID(ctx, s.db, *sel.ID)
		if err != nil {
			return nil, nil, err
		}
		if version.PromptID != prompt.ID {
			return nil, nil, fmt.Errorf("%w: version %s does not belong to prompt %q", models.ErrModeMismatch, sel.ID, promptName)
		}
		if sel.Number != nil && *sel.Number != version.VersionNumber {
			return nil, nil, models.Validationf("version_id %s is version %d, not %d", sel.ID, version.VersionNumber, *sel.Number)
		}
	case sel.Number != nil:
		version, err = s.prompts.GetVersionByNumber(ctx, s.db, prompt.ID, *sel.Number)
		if err != nil {
			return nil, nil, err
		}
	default:
		if prompt.ActiveVersionID == nil {
			return nil, nil, models.NotFoundf("prompt %q has no active version", promptName)
		}
		version, err = s.prompts.GetVersionByID(ctx, s.db, *prompt.ActiveVersionID)
		if err != nil {
			return nil, nil, err
		}
	}
	return prompt, version, nil
}

// ValidateMode fails with ErrModeMismatch when the stored prompt is not in the expected mode.
func (s *VersioningService) ValidateMode(ctx context.Context, promptName string, expected models.PromptMode, operation string) (*models.Prompt, error) {
	prompt, err := s.prompts.GetPromptByName(ctx, s.db, promptName)
	if err != nil {
		return nil, err
	}
	if prompt.Mode != expected {
		return nil, modeMismatch(prompt, expected, operation)
	}
	return prompt, nil
}

func (s *VersioningService) GetPrompt(ctx context.Context, name string) (*PromptDetails, error) {
	prompt, err := s.prompts.GetPromptByName(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	details := &PromptDetails{Prompt: prompt}
	if prompt.ActiveVersionID != nil {
		details.ActiveVersion, err = s.prompts.GetVersionByID(ctx, s.db, *prompt.ActiveVersionID)
		if err != nil {
			return nil, err
		}
	}
	return details, nil
}

func (s *VersioningService) ListPrompts(ctx context.Context, mode models.PromptMode, limit, offset int) ([]*models.Prompt, error) {
	if mode != "" && !mode.Valid() {
		return nil, models.Validationf("unknown prompt mode %q", mode)
	}
	limit, offset = clampPage(limit, offset)
	return s.prompts.ListPrompts(ctx, s.db, mode, limit, offset)
}

// ListVersions returns the prompt and its versions, newest first.
func (s *VersioningService) ListVersions(ctx context.Context, name string) (*models.Prompt, []*models.PromptVersion, error) {
	prompt, err := s.prompts.GetPromptByName(ctx, s.db, name)
	if err != nil {
		return nil, nil, err
	}
	versions, err := s.prompts.ListVersions(ctx, s.db, prompt.ID)
	if err != nil {
		return nil, nil, err
	}
	return prompt, versions, nil
}

// History returns versions with the number of executions each one served.
func (s *VersioningService) History(ctx context.Context, name string) (*models.Prompt, []*models.VersionUsage, error) {
	prompt, err := s.prompts.GetPromptByName(ctx, s.db, name)
	if err != nil {
		return nil, nil, err
	}
	usage, err := s.prompts.VersionHistory(ctx, s.db, prompt.ID)
	if err != nil {
		return nil, nil, err
	}
	return prompt, usage, nil
}

func validateRegisterInput(in *RegisterInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return models.Validationf("prompt name is required")
	}
	if len(in.Name) > 255 {
		return models.Validationf("prompt name is longer than 255 characters")
	}
	if in.TemplateText == "" {
		return models.Validationf("template_text is required")
	}
	if in.Mode == "" {
		in.Mode = models.PromptModeFull
	}
	if !in.Mode.Valid() {
		return models.Validationf("unknown prompt mode %q", in.Mode)
	}
	return nil
}

func modeMismatch(prompt *models.Prompt, expected models.PromptMode, operation string) error {
	return fmt.Errorf("%w: prompt %q is in %s mode, %s requires %s mode",
		models.ErrModeMismatch, prompt.Name, prompt.Mode, operation, expected)
}

func isActive(prompt *models.Prompt, version *models.PromptVersion) bool {
	return prompt.ActiveVersionID != nil && *prompt.ActiveVersionID == version.ID
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
