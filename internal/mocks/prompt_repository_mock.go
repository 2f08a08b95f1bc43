package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/models"
)

// MockPromptRepository is a mock type for the PromptRepository type
type MockPromptRepository struct {
	mock.Mock
}

// CreatePrompt provides a mock function with given fields: ctx, querier, prompt
func (_m *MockPromptRepository) CreatePrompt(ctx context.Context, querier interfaces.DBTX, prompt *models.Prompt) error {
	ret := _m.Called(ctx, querier, prompt)

	if rf, ok := ret.Get(0).(func(context.Context, interfaces.DBTX, *models.Prompt) error); ok {
		return rf(ctx, querier, prompt)
	}
	return ret.Error(0)
}

// GetPromptByName provides a mock function with given fields: ctx, querier, name
func (_m *MockPromptRepository) GetPromptByName(ctx context.Context, querier interfaces.DBTX, name string) (*models.Prompt, error) {
	ret := _m.Called(ctx, querier, name)

	var r0 *models.Prompt
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.Prompt)
	}
	return r0, ret.Error(1)
}

// GetPromptByNameForUpdate provides a mock function with given fields: ctx, querier, name
func (_m *MockPromptRepository) GetPromptByNameForUpdate(ctx context.Context, querier interfaces.DBTX, name string) (*models.Prompt, error) {
	ret := _m.Called(ctx, querier, name)

	var r0 *models.Prompt
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.Prompt)
	}
	return r0, ret.Error(1)
}

// GetPromptByID provides a mock function with given fields: ctx, querier, id
func (_m *MockPromptRepository) GetPromptByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Prompt, error) {
	ret := _m.Called(ctx, querier, id)

	var r0 *models.Prompt
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.Prompt)
	}
	return r0, ret.Error(1)
}

// ListPrompts provides a mock function with given fields: ctx, querier, mode, limit, offset
func (_m *MockPromptRepository) ListPrompts(ctx context.Context, querier interfaces.DBTX, mode models.PromptMode, limit, offset int) ([]*models.Prompt, error) {
	ret := _m.Called(ctx, querier, mode, limit, offset)

	var r0 []*models.Prompt
	if v := ret.Get(0); v != nil {
		r0 = v.([]*models.Prompt)
	}
	return r0, ret.Error(1)
}

// UpdatePromptMetadata provides a mock function with given fields: ctx, querier, id, description, ownerTeam
func (_m *MockPromptRepository) UpdatePromptMetadata(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, description, ownerTeam *string) error {
	ret := _m.Called(ctx, querier, id, description, ownerTeam)
	return ret.Error(0)
}

// SetActiveVersion provides a mock function with given fields: ctx, querier, promptID, versionID
func (_m *MockPromptRepository) SetActiveVersion(ctx context.Context, querier interfaces.DBTX, promptID, versionID uuid.UUID) error {
	ret := _m.Called(ctx, querier, promptID, versionID)
	return ret.Error(0)
}

// CreateVersion provides a mock function with given fields: ctx, querier, version
func (_m *MockPromptRepository) CreateVersion(ctx context.Context, querier interfaces.DBTX, version *models.PromptVersion) error {
	ret := _m.Called(ctx, querier, version)

	if rf, ok := ret.Get(0).(func(context.Context, interfaces.DBTX, *models.PromptVersion) error); ok {
		return rf(ctx, querier, version)
	}
	return ret.Error(0)
}

// GetVersionByChecksum provides a mock function with given fields: ctx, querier, promptID, checksum
func (_m *MockPromptRepository) GetVersionByChecksum(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID, checksum string) (*models.PromptVersion, error) {
	ret := _m.Called(ctx, querier, promptID, checksum)

	var r0 *models.PromptVersion
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.PromptVersion)
	}
	return r0, ret.Error(1)
}

// GetVersionByNumber provides a mock function with given fields: ctx, querier, promptID, number
func (_m *MockPromptRepository) GetVersionByNumber(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID, number int) (*models.PromptVersion, error) {
	ret := _m.Called(ctx, querier, promptID, number)

	var r0 *models.PromptVersion
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.PromptVersion)
	}
	return r0, ret.Error(1)
}

// GetVersionByID provides a mock function with given fields: ctx, querier, id
func (_m *MockPromptRepository) GetVersionByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.PromptVersion, error) {
	ret := _m.Called(ctx, querier, id)

	var r0 *models.PromptVersion
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.PromptVersion)
	}
	return r0, ret.Error(1)
}

// MaxVersionNumber provides a mock function with given fields: ctx, querier, promptID
func (_m *MockPromptRepository) MaxVersionNumber(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID) (int, error) {
	ret := _m.Called(ctx, querier, promptID)
	return ret.Int(0), ret.Error(1)
}

// ListVersions provides a mock function with given fields: ctx, querier, promptID
func (_m *MockPromptRepository) ListVersions(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID) ([]*models.PromptVersion, error) {
	ret := _m.Called(ctx, querier, promptID)

	var r0 []*models.PromptVersion
	if v := ret.Get(0); v != nil {
		r0 = v.([]*models.PromptVersion)
	}
	return r0, ret.Error(1)
}

// VersionHistory provides a mock function with given fields: ctx, querier, promptID
func (_m *MockPromptRepository) VersionHistory(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID) ([]*models.VersionUsage, error) {
	ret := _m.Called(ctx, querier, promptID)

	var r0 []*models.VersionUsage
	if v := ret.Get(0); v != nil {
		r0 = v.([]*models.VersionUsage)
	}
	return r0, ret.Error(1)
}

// NewMockPromptRepository creates a new instance of MockPromptRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockPromptRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPromptRepository {
	m := &MockPromptRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ interfaces.PromptRepository = (*MockPromptRepository)(nil)
