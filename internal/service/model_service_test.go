package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/mocks"
	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/service"
)

func TestModelServiceSeed(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes and upserts every entry in one transaction", func(t *testing.T) {
		repo := mocks.NewMockModelRepository(t)
		tx := &mocks.InlineTxManager{}
		svc := service.NewModelService(nil, tx, repo, zap.NewNop())
		repo.On("Upsert", mock.Anything, mock.Anything, mock.MatchedBy(func(m *models.Model) bool {
			return m.Provider == "openai" && m.ModelName == "gpt-4o-mini"
		})).Return(nil).Once()
		repo.On("Upsert", mock.Anything, mock.Anything, mock.MatchedBy(func(m *models.Model) bool {
			return m.Provider == "ollama" && m.ModelName == "llama3"
		})).Return(nil).Once()

		n, err := svc.Seed(ctx, []*models.Model{
			{Provider: " OpenAI ", ModelName: "gpt-4o-mini"},
			{Provider: "ollama", ModelName: " llama3"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 1, tx.Calls)
	})

	t.Run("entry without a model name is rejected", func(t *testing.T) {
		repo := mocks.NewMockModelRepository(t)
		svc := service.NewModelService(nil, &mocks.InlineTxManager{}, repo, zap.NewNop())

		_, err := svc.Seed(ctx, []*models.Model{{Provider: "openai"}})
		assert.ErrorIs(t, err, models.ErrValidation)
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non-positive max tokens is rejected", func(t *testing.T) {
		repo := mocks.NewMockModelRepository(t)
		svc := service.NewModelService(nil, &mocks.InlineTxManager{}, repo, zap.NewNop())

		_, err := svc.Seed(ctx, []*models.Model{{Provider: "openai", ModelName: "gpt-4o", MaxTokens: intPtr(0)}})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("storage failure is returned", func(t *testing.T) {
		repo := mocks.NewMockModelRepository(t)
		svc := service.NewModelService(nil, &mocks.InlineTxManager{}, repo, zap.NewNop())
		repo.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

		n, err := svc.Seed(ctx, []*models.Model{{Provider: "openai", ModelName: "gpt-4o"}})
		assert.Error(t, err)
		assert.Zero(t, n)
	})
}
