// Package worker turns queue deliveries into dispatched executions.
package worker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/messaging"
	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/service"
)

// Processor drives one execution to a terminal status.
type Processor interface {
	Process(ctx context.Context, executionID uuid.UUID) (service.ProcessResult, error)
}

// Handler decodes deliveries and hands them to the Processor. Deliveries for executions that
// no longer exist are dropped rather than dead-lettered.
type Handler struct {
	processor Processor
	logger    *zap.Logger
}

func NewHandler(processor Processor, logger *zap.Logger) *Handler {
	return &Handler{processor: processor, logger: logger.Named("Worker")}
}

// Handle implements interfaces.DeliveryHandler.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	inFlight.Inc()
	defer inFlight.Dec()

	id, err := messaging.DecodePayload(body)
	if err != nil {
		deliveriesTotal.WithLabelValues(resultMalformed).Inc()
		h.logger.Error("Malformed delivery", zap.ByteString("body", body), zap.Error(err))
		return err
	}
	log := h.logger.With(zap.String("executionID", id.String()))

	result, err := h.processor.Process(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		deliveriesTotal.WithLabelValues(resultSkipped).Inc()
		log.Warn("Delivery for unknown execution dropped")
		return nil
	}
	if err != nil {
		deliveriesTotal.WithLabelValues(resultError).Inc()
		log.Error("Failed to process execution", zap.Error(err))
		return err
	}
	switch result {
	case service.ProcessSkipped:
		deliveriesTotal.WithLabelValues(resultSkipped).Inc()
	default:
		deliveriesTotal.WithLabelValues(resultProcessed).Inc()
	}
	log.Debug("Delivery handled", zap.String("result", string(result)))
	return nil
}

// Run consumes until ctx is canceled.
func Run(ctx context.Context, consumer interfaces.ExecutionConsumer, handler *Handler) error {
	err := consumer.Consume(ctx, handler.Handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
