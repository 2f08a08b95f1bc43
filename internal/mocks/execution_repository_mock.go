package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/models"
)

// MockExecutionRepository is a mock type for the ExecutionRepository type
type MockExecutionRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, querier, execution, input
func (_m *MockExecutionRepository) Create(ctx context.Context, querier interfaces.DBTX, execution *models.Execution, input *models.ExecutionInput) error {
	ret := _m.Called(ctx, querier, execution, input)

	if rf, ok := ret.Get(0).(func(context.Context, interfaces.DBTX, *models.Execution, *models.ExecutionInput) error); ok {
		return rf(ctx, querier, execution, input)
	}
	return ret.Error(0)
}

// GetByID provides a mock function with given fields: ctx, querier, id
func (_m *MockExecutionRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Execution, error) {
	ret := _m.Called(ctx, querier, id)

	var r0 *models.Execution
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.Execution)
	}
	return r0, ret.Error(1)
}

// GetByIdempotencyKey provides a mock function with given fields: ctx, querier, promptID, key
func (_m *MockExecutionRepository) GetByIdempotencyKey(ctx context.Context, querier interfaces.DBTX, promptID uuid.UUID, key string) (*models.Execution, error) {
	ret := _m.Called(ctx, querier, promptID, key)

	var r0 *models.Execution
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.Execution)
	}
	return r0, ret.Error(1)
}

// GetInput provides a mock function with given fields: ctx, querier, executionID
func (_m *MockExecutionRepository) GetInput(ctx context.Context, querier interfaces.DBTX, executionID uuid.UUID) (*models.ExecutionInput, error) {
	ret := _m.Called(ctx, querier, executionID)

	var r0 *models.ExecutionInput
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.ExecutionInput)
	}
	return r0, ret.Error(1)
}

// Transition provides a mock function with given fields: ctx, querier, id, from, t
func (_m *MockExecutionRepository) Transition(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, from []models.ExecutionStatus, t models.Transition) (*models.Execution, error) {
	ret := _m.Called(ctx, querier, id, from, t)

	if rf, ok := ret.Get(0).(func(context.Context, interfaces.DBTX, uuid.UUID, []models.ExecutionStatus, models.Transition) (*models.Execution, error)); ok {
		return rf(ctx, querier, id, from, t)
	}
	var r0 *models.Execution
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.Execution)
	}
	return r0, ret.Error(1)
}

// List provides a mock function with given fields: ctx, querier, filter
func (_m *MockExecutionRepository) List(ctx context.Context, querier interfaces.DBTX, filter models.ExecutionFilter) ([]*models.Execution, error) {
	ret := _m.Called(ctx, querier, filter)

	var r0 []*models.Execution
	if v := ret.Get(0); v != nil {
		r0 = v.([]*models.Execution)
	}
	return r0, ret.Error(1)
}

// NewMockExecutionRepository creates a new instance of MockExecutionRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockExecutionRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockExecutionRepository {
	m := &MockExecutionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ interfaces.ExecutionRepository = (*MockExecutionRepository)(nil)
