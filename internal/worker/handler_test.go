package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/messaging"
	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/service"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, id uuid.UUID) (service.ProcessResult, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(service.ProcessResult), args.Error(1)
}

func counter(result string) float64 {
	return testutil.ToFloat64(deliveriesTotal.WithLabelValues(result))
}

func TestHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("processed delivery is acknowledged", func(t *testing.T) {
		p := &mockProcessor{}
		id := uuid.New()
		p.On("Process", mock.Anything, id).Return(service.ProcessProcessed, nil).Once()
		body, err := messaging.EncodePayload(id)
		require.NoError(t, err)
		before := counter(resultProcessed)

		err = NewHandler(p, zap.NewNop()).Handle(ctx, body)
		assert.NoError(t, err)
		assert.Equal(t, before+1, counter(resultProcessed))
		p.AssertExpectations(t)
	})

	t.Run("redelivered execution is skipped", func(t *testing.T) {
		p := &mockProcessor{}
		id := uuid.New()
		p.On("Process", mock.Anything, id).Return(service.ProcessSkipped, nil).Once()
		body, _ := messaging.EncodePayload(id)
		before := counter(resultSkipped)

		assert.NoError(t, NewHandler(p, zap.NewNop()).Handle(ctx, body))
		assert.Equal(t, before+1, counter(resultSkipped))
	})

	t.Run("malformed body is rejected without processing", func(t *testing.T) {
		p := &mockProcessor{}
		before := counter(resultMalformed)

		err := NewHandler(p, zap.NewNop()).Handle(ctx, []byte(`{"execution_id":42}`))
		assert.ErrorIs(t, err, messaging.ErrMalformedPayload)
		assert.Equal(t, before+1, counter(resultMalformed))
		p.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
	})

	t.Run("storage failure is returned for dead-lettering", func(t *testing.T) {
		p := &mockProcessor{}
		id := uuid.New()
		p.On("Process", mock.Anything, id).Return(service.ProcessResult(""), errors.New("connection refused")).Once()
		body, _ := messaging.EncodePayload(id)
		before := counter(resultError)

		assert.Error(t, NewHandler(p, zap.NewNop()).Handle(ctx, body))
		assert.Equal(t, before+1, counter(resultError))
	})

	t.Run("unknown execution is dropped", func(t *testing.T) {
		p := &mockProcessor{}
		id := uuid.New()
		p.On("Process", mock.Anything, id).Return(service.ProcessResult(""), models.NotFoundf("execution %s", id)).Once()
		body, _ := messaging.EncodePayload(id)

		assert.NoError(t, NewHandler(p, zap.NewNop()).Handle(ctx, body))
	})
}

func TestRun_MemoryQueue(t *testing.T) {
	p := &mockProcessor{}
	id := uuid.New()
	processed := make(chan struct{})
	p.On("Process", mock.Anything, id).
		Run(func(mock.Arguments) { close(processed) }).
		Return(service.ProcessProcessed, nil).Once()

	q := messaging.NewMemoryQueue(4, 1, zap.NewNop())
	require.NoError(t, q.Enqueue(context.Background(), id))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, q, NewHandler(p, zap.NewNop())) }()

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was not processed")
	}
	cancel()
	assert.NoError(t, <-done)
	assert.Empty(t, q.Dead())
}
