package messaging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/config"
)

// MemoryQueueSize is the buffer of the in-process queue.
const MemoryQueueSize = 1024

// Open builds the backend selected by QUEUE_BACKEND. The returned cleanup closes the queue and
// the connection it owns.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Queue, func(), error) {
	switch cfg.QueueBackend {
	case config.QueueBackendMemory:
		q := NewMemoryQueue(MemoryQueueSize, cfg.WorkerConcurrency, logger)
		return q, func() {}, nil

	case config.QueueBackendRedis:
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		q := NewRedisQueue(client, cfg.ExecutionQueueName, cfg.WorkerConcurrency, logger)
		return q, func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}, nil

	case config.QueueBackendRabbitMQ:
		conn, err := DialRabbitMQ(ctx, cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		q, err := NewRabbitQueue(conn, cfg.ExecutionQueueName, cfg.WorkerConcurrency, logger)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return q, func() {
			if err := q.Close(); err != nil {
				logger.Warn("Failed to close rabbitmq channel", zap.Error(err))
			}
			if err := conn.Close(); err != nil {
				logger.Warn("Failed to close rabbitmq connection", zap.Error(err))
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
}
