package messaging

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/promptledger/PromptLedger/internal/interfaces"
)

// MemoryQueue is a buffered channel shared by the API and in-process workers.
type MemoryQueue struct {
	ch          chan []byte
	concurrency int
	logger      *zap.Logger

	mu   sync.Mutex
	dead [][]byte
}

func NewMemoryQueue(size, concurrency int, logger *zap.Logger) *MemoryQueue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &MemoryQueue{
		ch:          make(chan []byte, size),
		concurrency: concurrency,
		logger:      logger.Named("MemoryQueue"),
	}
}

// Enqueue never blocks: a full buffer is reported as ErrQueueFull.
func (q *MemoryQueue) Enqueue(ctx context.Context, executionID uuid.UUID) error {
	body, err := EncodePayload(executionID)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- body:
		return nil
	default:
		return ErrQueueFull
	}
}

// Push puts a raw body on the queue.
func (q *MemoryQueue) Push(body []byte) {
	q.ch <- body
}

func (q *MemoryQueue) Consume(ctx context.Context, handler interfaces.DeliveryHandler) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case body := <-q.ch:
					if err := handler(context.WithoutCancel(gctx), body); err != nil {
						q.logger.Warn("Delivery dead-lettered", zap.Error(err))
						q.mu.Lock()
						q.dead = append(q.dead, body)
						q.mu.Unlock()
					}
				}
			}
		})
	}
	return g.Wait()
}

// Dead returns the dead-lettered bodies.
func (q *MemoryQueue) Dead() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([][]byte(nil), q.dead...)
}

// Len is the number of undelivered messages.
func (q *MemoryQueue) Len() int { return len(q.ch) }

func (q *MemoryQueue) Close() error { return nil }

var _ Queue = (*MemoryQueue)(nil)
