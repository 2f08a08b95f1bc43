package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/mocks"
	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/service"
)

func newVersioning(t *testing.T) (*service.VersioningService, *mocks.MockPromptRepository, *mocks.InlineTxManager) {
	repo := mocks.NewMockPromptRepository(t)
	tx := &mocks.InlineTxManager{}
	return service.NewVersioningService(nil, tx, repo, zap.NewNop()), repo, tx
}

func TestResolveOrCreateVersion(t *testing.T) {
	ctx := context.Background()
	template := "Hello {{name}}"
	checksum := models.Checksum(template)

	t.Run("new prompt gets version 1 and becomes active", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)

		repo.On("GetPromptByNameForUpdate", mock.Anything, mock.Anything, "greet").Return(nil, models.ErrNotFound).Once()
		repo.On("CreatePrompt", mock.Anything, mock.Anything, mock.MatchedBy(func(p *models.Prompt) bool {
			return p.Name == "greet" && p.Mode == models.PromptModeFull
		})).Return(func(_ context.Context, _ interfaces.DBTX, p *models.Prompt) error {
			p.ID = uuid.New()
			return nil
		}).Once()
		repo.On("GetVersionByChecksum", mock.Anything, mock.Anything, mock.Anything, checksum).Return(nil, models.ErrNotFound).Once()
		repo.On("MaxVersionNumber", mock.Anything, mock.Anything, mock.Anything).Return(0, nil).Once()
		repo.On("CreateVersion", mock.Anything, mock.Anything, mock.MatchedBy(func(v *models.PromptVersion) bool {
			return v.VersionNumber == 1 && v.ChecksumHash == checksum && v.TemplateText == template
		})).Return(func(_ context.Context, _ interfaces.DBTX, v *models.PromptVersion) error {
			v.ID = uuid.New()
			return nil
		}).Once()
		repo.On("SetActiveVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		res, err := svc.ResolveOrCreateVersion(ctx, service.RegisterInput{Name: "greet", TemplateText: template})
		require.NoError(t, err)
		assert.True(t, res.VersionChanged)
		assert.True(t, res.PromptCreated)
		assert.Equal(t, 1, res.Version.VersionNumber)
		require.NotNil(t, res.Prompt.ActiveVersionID)
		assert.Equal(t, res.Version.ID, *res.Prompt.ActiveVersionID)
		assert.Nil(t, res.PreviousActive)
	})

	t.Run("identical content returns the existing version untouched", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		v1 := &models.PromptVersion{ID: uuid.New(), VersionNumber: 1, ChecksumHash: checksum, TemplateText: template}
		prompt := &models.Prompt{ID: uuid.New(), Name: "greet", Mode: models.PromptModeFull, ActiveVersionID: &v1.ID}
		v1.PromptID = prompt.ID

		repo.On("GetPromptByNameForUpdate", mock.Anything, mock.Anything, "greet").Return(prompt, nil).Once()
		repo.On("GetVersionByID", mock.Anything, mock.Anything, v1.ID).Return(v1, nil).Once()
		repo.On("GetVersionByChecksum", mock.Anything, mock.Anything, prompt.ID, checksum).Return(v1, nil).Once()

		res, err := svc.ResolveOrCreateVersion(ctx, service.RegisterInput{Name: "greet", TemplateText: template, SetActive: true})
		require.NoError(t, err)
		assert.False(t, res.VersionChanged)
		assert.Equal(t, 1, res.Version.VersionNumber)
		repo.AssertNotCalled(t, "CreateVersion", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "MaxVersionNumber", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "SetActiveVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("changed content takes max plus one and keeps the active pointer", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		v3 := &models.PromptVersion{ID: uuid.New(), VersionNumber: 3}
		prompt := &models.Prompt{ID: uuid.New(), Name: "greet", Mode: models.PromptModeFull, ActiveVersionID: &v3.ID}
		changed := "Hi {{name}}!"

		repo.On("GetPromptByNameForUpdate", mock.Anything, mock.Anything, "greet").Return(prompt, nil).Once()
		repo.On("GetVersionByID", mock.Anything, mock.Anything, v3.ID).Return(v3, nil).Once()
		repo.On("GetVersionByChecksum", mock.Anything, mock.Anything, prompt.ID, models.Checksum(changed)).Return(nil, models.ErrNotFound).Once()
		repo.On("MaxVersionNumber", mock.Anything, mock.Anything, prompt.ID).Return(3, nil).Once()
		repo.On("CreateVersion", mock.Anything, mock.Anything, mock.MatchedBy(func(v *models.PromptVersion) bool {
			return v.VersionNumber == 4
		})).Return(nil).Once()

		res, err := svc.ResolveOrCreateVersion(ctx, service.RegisterInput{Name: "greet", TemplateText: changed})
		require.NoError(t, err)
		assert.True(t, res.VersionChanged)
		assert.Equal(t, 4, res.Version.VersionNumber)
		assert.Equal(t, 3, *res.PreviousActive)
		assert.Equal(t, v3.ID, *res.Prompt.ActiveVersionID)
		repo.AssertNotCalled(t, "SetActiveVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "GetPromptByName", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("losing the insert race retries and returns the winner's row", func(t *testing.T) {
		svc, repo, tx := newVersioning(t)
		prompt := &models.Prompt{ID: uuid.New(), Name: "greet", Mode: models.PromptModeFull}
		winner := &models.PromptVersion{ID: uuid.New(), PromptID: prompt.ID, VersionNumber: 1, ChecksumHash: checksum}

		repo.On("GetPromptByNameForUpdate", mock.Anything, mock.Anything, "greet").Return(prompt, nil).Twice()
		repo.On("GetVersionByChecksum", mock.Anything, mock.Anything, prompt.ID, checksum).Return(nil, models.ErrNotFound).Once()
		repo.On("MaxVersionNumber", mock.Anything, mock.Anything, prompt.ID).Return(0, nil).Once()
		repo.On("CreateVersion", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.Join(models.ErrAlreadyExists, errors.New("prompt_versions_prompt_checksum_key"))).Once()
		repo.On("GetVersionByChecksum", mock.Anything, mock.Anything, prompt.ID, checksum).Return(winner, nil).Once()
		repo.On("SetActiveVersion", mock.Anything, mock.Anything, prompt.ID, winner.ID).Return(nil).Once()

		res, err := svc.ResolveOrCreateVersion(ctx, service.RegisterInput{Name: "greet", TemplateText: template})
		require.NoError(t, err)
		assert.False(t, res.VersionChanged)
		assert.Equal(t, winner.ID, res.Version.ID)
		assert.Equal(t, 2, tx.Calls)
	})

	t.Run("registering into a prompt of another mode is a mismatch", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		prompt := &models.Prompt{ID: uuid.New(), Name: "greet", Mode: models.PromptModeFull}
		repo.On("GetPromptByNameForUpdate", mock.Anything, mock.Anything, "greet").Return(prompt, nil).Once()

		_, err := svc.ResolveOrCreateVersion(ctx, service.RegisterInput{Name: "greet", TemplateText: template, Mode: models.PromptModeTracking})
		assert.ErrorIs(t, err, models.ErrModeMismatch)
	})

	t.Run("empty template is rejected before touching storage", func(t *testing.T) {
		svc, _, tx := newVersioning(t)
		_, err := svc.ResolveOrCreateVersion(ctx, service.RegisterInput{Name: "greet"})
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.Zero(t, tx.Calls)
	})
}

func TestResolveVersion(t *testing.T) {
	ctx := context.Background()
	active := &models.PromptVersion{ID: uuid.New(), VersionNumber: 2}
	prompt := &models.Prompt{ID: uuid.New(), Name: "greet", Mode: models.PromptModeFull, ActiveVersionID: &active.ID}
	active.PromptID = prompt.ID

	t.Run("active version by default", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		repo.On("GetPromptByName", mock.Anything, mock.Anything, "greet").Return(prompt, nil).Once()
		repo.On("GetVersionByID", mock.Anything, mock.Anything, active.ID).Return(active, nil).Once()

		_, v, err := svc.ResolveVersion(ctx, "greet", service.VersionSelector{})
		require.NoError(t, err)
		assert.Equal(t, 2, v.VersionNumber)
	})

	t.Run("pinned version number", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		v1 := &models.PromptVersion{ID: uuid.New(), PromptID: prompt.ID, VersionNumber: 1}
		repo.On("GetPromptByName", mock.Anything, mock.Anything, "greet").Return(prompt, nil).Once()
		repo.On("GetVersionByNumber", mock.Anything, mock.Anything, prompt.ID, 1).Return(v1, nil).Once()

		_, v, err := svc.ResolveVersion(ctx, "greet", service.VersionSelector{Number: intPtr(1)})
		require.NoError(t, err)
		assert.Equal(t, v1.ID, v.ID)
	})

	t.Run("unknown version number", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		repo.On("GetPromptByName", mock.Anything, mock.Anything, "greet").Return(prompt, nil).Once()
		repo.On("GetVersionByNumber", mock.Anything, mock.Anything, prompt.ID, 9).Return(nil, models.NotFoundf("version 9")).Once()

		_, _, err := svc.ResolveVersion(ctx, "greet", service.VersionSelector{Number: intPtr(9)})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("version id of another prompt is a mode mismatch", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		foreign := &models.PromptVersion{ID: uuid.New(), PromptID: uuid.New(), VersionNumber: 1}
		repo.On("GetPromptByName", mock.Anything, mock.Anything, "greet").Return(prompt, nil).Once()
		repo.On("GetVersionByID", mock.Anything, mock.Anything, foreign.ID).Return(foreign, nil).Once()

		_, _, err := svc.ResolveVersion(ctx, "greet", service.VersionSelector{ID: &foreign.ID})
		assert.ErrorIs(t, err, models.ErrModeMismatch)
	})

	t.Run("no active version and none requested", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		bare := &models.Prompt{ID: uuid.New(), Name: "bare", Mode: models.PromptModeFull}
		repo.On("GetPromptByName", mock.Anything, mock.Anything, "bare").Return(bare, nil).Once()

		_, _, err := svc.ResolveVersion(ctx, "bare", service.VersionSelector{})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("unknown prompt", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		repo.On("GetPromptByName", mock.Anything, mock.Anything, "nope").Return(nil, models.NotFoundf("prompt nope")).Once()

		_, _, err := svc.ResolveVersion(ctx, "nope", service.VersionSelector{})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestRegisterCode(t *testing.T) {
	ctx := context.Background()

	t.Run("empty batch", func(t *testing.T) {
		svc, _, _ := newVersioning(t)
		_, err := svc.RegisterCode(ctx, nil)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("hash mismatch rejects the whole batch", func(t *testing.T) {
		svc, _, tx := newVersioning(t)
		_, err := svc.RegisterCode(ctx, []service.CodePrompt{
			{Name: "WELCOME", TemplateText: "Hello {{name}}!", TemplateHash: strPtr("deadbeef")},
		})
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.Zero(t, tx.Calls)
	})

	t.Run("changed template reports the previous active version", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		text := "Welcome back, {{name}}!"
		v1 := &models.PromptVersion{ID: uuid.New(), VersionNumber: 1}
		prompt := &models.Prompt{ID: uuid.New(), Name: "WELCOME", Mode: models.PromptModeTracking, ActiveVersionID: &v1.ID}

		repo.On("GetPromptByNameForUpdate", mock.Anything, mock.Anything, "WELCOME").Return(prompt, nil).Once()
		repo.On("GetVersionByID", mock.Anything, mock.Anything, v1.ID).Return(v1, nil).Once()
		repo.On("GetVersionByChecksum", mock.Anything, mock.Anything, prompt.ID, models.Checksum(text)).Return(nil, models.ErrNotFound).Once()
		repo.On("MaxVersionNumber", mock.Anything, mock.Anything, prompt.ID).Return(1, nil).Once()
		repo.On("CreateVersion", mock.Anything, mock.Anything, mock.Anything).Return(func(_ context.Context, _ interfaces.DBTX, v *models.PromptVersion) error {
			v.ID = uuid.New()
			return nil
		}).Once()
		repo.On("SetActiveVersion", mock.Anything, mock.Anything, prompt.ID, mock.Anything).Return(nil).Once()

		hash := models.Checksum(text)
		regs, err := svc.RegisterCode(ctx, []service.CodePrompt{{Name: "WELCOME", TemplateText: text, TemplateHash: &hash}})
		require.NoError(t, err)
		require.Len(t, regs, 1)
		assert.Equal(t, models.PromptModeTracking, regs[0].Mode)
		assert.Equal(t, 2, regs[0].VersionNumber)
		assert.True(t, regs[0].ChangeDetected)
		assert.Equal(t, 1, *regs[0].PreviousVersion)
	})

	t.Run("full-mode prompt cannot be registered from code", func(t *testing.T) {
		svc, repo, _ := newVersioning(t)
		prompt := &models.Prompt{ID: uuid.New(), Name: "greet", Mode: models.PromptModeFull}
		repo.On("GetPromptByNameForUpdate", mock.Anything, mock.Anything, "greet").Return(prompt, nil).Once()

		_, err := svc.RegisterCode(ctx, []service.CodePrompt{{Name: "greet", TemplateText: "x"}})
		assert.ErrorIs(t, err, models.ErrModeMismatch)
	})
}
