package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/promptledger/PromptLedger/internal/interfaces"
)

const (
	redisPollTimeout = 5 * time.Second
	redisErrorPause  = time.Second
)

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

// RedisQueue is a reliable list queue: producers LPUSH, consumers BLMOVE into <list>:processing
// and LREM once handled. Failed deliveries are moved to <list>:dead.
type RedisQueue struct {
	client      redis.UniversalClient
	list        string
	processing  string
	dead        string
	concurrency int
	pollTimeout time.Duration
	logger      *zap.Logger
}

func NewRedisQueue(client redis.UniversalClient, list string, concurrency int, logger *zap.Logger) *RedisQueue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RedisQueue{
		client:      client,
		list:        list,
		processing:  list + ":processing",
		dead:        list + ":dead",
		concurrency: concurrency,
		pollTimeout: redisPollTimeout,
		logger:      logger.Named("RedisQueue"),
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, executionID uuid.UUID) error {
	body, err := EncodePayload(executionID)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.list, body).Err(); err != nil {
		return fmt.Errorf("failed to push execution %s: %w", executionID, err)
	}
	return nil
}

// Recover moves deliveries left in the processing list by a crashed worker back onto the queue.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.list, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("failed to recover %s: %w", q.processing, err)
		}
		moved++
	}
	if moved > 0 {
		q.logger.Warn("Requeued abandoned deliveries", zap.Int("count", moved))
	}
	return moved, nil
}

func (q *RedisQueue) Consume(ctx context.Context, handler interfaces.DeliveryHandler) error {
	q.logger.Info("Consuming executions", zap.String("list", q.list), zap.Int("concurrency", q.concurrency))
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		g.Go(func() error {
			for gctx.Err() == nil {
				body, err := q.client.BLMove(gctx, q.list, q.processing, "RIGHT", "LEFT", q.pollTimeout).Result()
				switch {
				case errors.Is(err, redis.Nil):
					continue
				case gctx.Err() != nil:
					return nil
				case err != nil:
					q.logger.Error("Failed to pop delivery", zap.Error(err))
					select {
					case <-gctx.Done():
					case <-time.After(redisErrorPause):
					}
					continue
				}
				q.handle(gctx, body, handler)
			}
			return nil
		})
	}
	return g.Wait()
}

func (q *RedisQueue) handle(ctx context.Context, body string, handler interfaces.DeliveryHandler) {
	// Bookkeeping must finish even when shutdown starts mid-delivery.
	ctx = context.WithoutCancel(ctx)
	if err := handler(ctx, []byte(body)); err != nil {
		q.logger.Warn("Delivery failed, dead-lettering", zap.Error(err))
		if pushErr := q.client.LPush(ctx, q.dead, body).Err(); pushErr != nil {
			q.logger.Error("Failed to dead-letter delivery", zap.Error(pushErr))
			return
		}
	}
	if err := q.client.LRem(ctx, q.processing, 1, body).Err(); err != nil {
		q.logger.Error("Failed to remove delivery from processing list", zap.Error(err))
	}
}

// Close is a no-op; the client belongs to the caller.
func (q *RedisQueue) Close() error { return nil }

var _ Queue = (*RedisQueue)(nil)
