package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/models"
)

// MockModelRepository is a mock type for the ModelRepository type
type MockModelRepository struct {
	mock.Mock
}

// GetByProviderAndName provides a mock function with given fields: ctx, querier, provider, modelName
func (_m *MockModelRepository) GetByProviderAndName(ctx context.Context, querier interfaces.DBTX, provider, modelName string) (*models.Model, error) {
	ret := _m.Called(ctx, querier, provider, modelName)

	var r0 *models.Model
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.Model)
	}
	return r0, ret.Error(1)
}

// GetByID provides a mock function with given fields: ctx, querier, id
func (_m *MockModelRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Model, error) {
	ret := _m.Called(ctx, querier, id)

	var r0 *models.Model
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.Model)
	}
	return r0, ret.Error(1)
}

// List provides a mock function with given fields: ctx, querier
func (_m *MockModelRepository) List(ctx context.Context, querier interfaces.DBTX) ([]*models.Model, error) {
	ret := _m.Called(ctx, querier)

	var r0 []*models.Model
	if v := ret.Get(0); v != nil {
		r0 = v.([]*models.Model)
	}
	return r0, ret.Error(1)
}

// Upsert provides a mock function with given fields: ctx, querier, model
func (_m *MockModelRepository) Upsert(ctx context.Context, querier interfaces.DBTX, model *models.Model) error {
	ret := _m.Called(ctx, querier, model)
	return ret.Error(0)
}

// NewMockModelRepository creates a new instance of MockModelRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockModelRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockModelRepository {
	m := &MockModelRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ interfaces.ModelRepository = (*MockModelRepository)(nil)

// MockSpanRepository is a mock type for the SpanRepository type
type MockSpanRepository struct {
	mock.Mock
}

// Upsert provides a mock function with given fields: ctx, querier, span
func (_m *MockSpanRepository) Upsert(ctx context.Context, querier interfaces.DBTX, span *models.Span) error {
	ret := _m.Called(ctx, querier, span)
	return ret.Error(0)
}

// GetByExecutionID provides a mock function with given fields: ctx, querier, executionID
func (_m *MockSpanRepository) GetByExecutionID(ctx context.Context, querier interfaces.DBTX, executionID uuid.UUID) (*models.Span, error) {
	ret := _m.Called(ctx, querier, executionID)

	var r0 *models.Span
	if v := ret.Get(0); v != nil {
		r0 = v.(*models.Span)
	}
	return r0, ret.Error(1)
}

// NewMockSpanRepository creates a new instance of MockSpanRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockSpanRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSpanRepository {
	m := &MockSpanRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ interfaces.SpanRepository = (*MockSpanRepository)(nil)
