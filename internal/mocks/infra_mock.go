package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/provider"
)

// InlineTxManager runs callbacks directly with a nil querier. Repository mocks ignore the querier.
type InlineTxManager struct {
	mu    sync.Mutex
	Calls int
}

func (m *InlineTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx interfaces.DBTX) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return fn(ctx, nil)
}

var _ interfaces.TxManager = (*InlineTxManager)(nil)

// MockExecutionQueue is a mock type for the ExecutionQueue type
type MockExecutionQueue struct {
	mock.Mock
}

// Enqueue provides a mock function with given fields: ctx, executionID
func (_m *MockExecutionQueue) Enqueue(ctx context.Context, executionID uuid.UUID) error {
	ret := _m.Called(ctx, executionID)
	return ret.Error(0)
}

// NewMockExecutionQueue creates a new instance of MockExecutionQueue. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockExecutionQueue(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockExecutionQueue {
	m := &MockExecutionQueue{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ interfaces.ExecutionQueue = (*MockExecutionQueue)(nil)

// MockProvider is a mock type for the provider.Provider type
type MockProvider struct {
	mock.Mock
	ProviderName string
}

// Name returns ProviderName without recording a call.
func (_m *MockProvider) Name() string {
	return _m.ProviderName
}

// Generate provides a mock function with given fields: ctx, req
func (_m *MockProvider) Generate(ctx context.Context, req provider.Request) (*provider.Result, error) {
	ret := _m.Called(ctx, req)

	var r0 *provider.Result
	if v := ret.Get(0); v != nil {
		r0 = v.(*provider.Result)
	}
	return r0, ret.Error(1)
}

// NewMockProvider creates a new instance of MockProvider. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}, name string) *MockProvider {
	m := &MockProvider{ProviderName: name}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ provider.Provider = (*MockProvider)(nil)
