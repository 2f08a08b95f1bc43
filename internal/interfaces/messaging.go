package interfaces

import (
	"context"

	"github.com/google/uuid"
)

// ExecutionQueue hands execution ids to workers. Only the id travels; workers reload everything else.
type ExecutionQueue interface {
	Enqueue(ctx context.Context, executionID uuid.UUID) error
}

// DeliveryHandler processes one raw queue payload. A non-nil error dead-letters the delivery.
type DeliveryHandler func(ctx context.Context, body []byte) error

// ExecutionConsumer blocks, feeding deliveries to handler until ctx is done.
type ExecutionConsumer interface {
	Consume(ctx context.Context, handler DeliveryHandler) error
}
