// Package messaging carries execution ids from the API to the workers over RabbitMQ,
// Redis or an in-process channel.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/promptledger/PromptLedger/internal/interfaces"
)

// ErrMalformedPayload marks a delivery whose body is not a valid execution payload.
var ErrMalformedPayload = errors.New("malformed execution payload")

// ErrQueueFull is returned by the memory queue when its buffer is exhausted.
var ErrQueueFull = errors.New("execution queue is full")

// ExecutionPayload is the message body on every backend.
type ExecutionPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
}

// Queue is a backend that both publishes and consumes execution ids.
type Queue interface {
	interfaces.ExecutionQueue
	interfaces.ExecutionConsumer
	Close() error
}

func EncodePayload(id uuid.UUID) ([]byte, error) {
	return json.Marshal(ExecutionPayload{ExecutionID: id})
}

// DecodePayload parses body. Any failure wraps ErrMalformedPayload.
func DecodePayload(body []byte) (uuid.UUID, error) {
	var p ExecutionPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.ExecutionID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: execution_id is missing", ErrMalformedPayload)
	}
	return p.ExecutionID, nil
}
