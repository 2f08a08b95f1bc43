package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/promptledger/PromptLedger/internal/interfaces"
)

const dlqRoutingKey = "dlq"

// DialRabbitMQ connects to the broker, retrying while it starts up.
func DialRabbitMQ(ctx context.Context, url string, logger *zap.Logger) (*amqp.Connection, error) {
	log := logger.Named("RabbitMQ")
	return retry.DoWithData(func() (*amqp.Connection, error) {
		return amqp.Dial(url)
	},
		retry.Context(ctx),
		retry.Attempts(10),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("RabbitMQ not reachable yet, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

// RabbitQueue publishes to a durable lazy queue and dead-letters failed deliveries to <queue>.dlq
// through the <queue>.dlx exchange.
type RabbitQueue struct {
	conn        *amqp.Connection
	queue       string
	dlx         string
	dlq         string
	concurrency int
	logger      *zap.Logger

	mu    sync.Mutex
	pubCh *amqp.Channel
}

// NewRabbitQueue declares the topology and opens the publishing channel.
func NewRabbitQueue(conn *amqp.Connection, queueName string, concurrency int, logger *zap.Logger) (*RabbitQueue, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	q := &RabbitQueue{
		conn:        conn,
		queue:       queueName,
		dlx:         queueName + ".dlx",
		dlq:         queueName + ".dlq",
		concurrency: concurrency,
		logger:      logger.Named("RabbitQueue"),
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publishing channel: %w", err)
	}
	if err := q.declare(ch); err != nil {
		ch.Close()
		return nil, err
	}
	q.pubCh = ch
	q.logger.Info("RabbitMQ topology declared",
		zap.String("queue", q.queue), zap.String("dlx", q.dlx), zap.String("dlq", q.dlq))
	return q, nil
}

func (q *RabbitQueue) declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(q.dlx, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", q.dlx, err)
	}
	if _, err := ch.QueueDeclare(q.dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", q.dlq, err)
	}
	if err := ch.QueueBind(q.dlq, dlqRoutingKey, q.dlx, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s to %s: %w", q.dlq, q.dlx, err)
	}
	args := amqp.Table{
		"x-queue-mode":              "lazy",
		"x-dead-letter-exchange":    q.dlx,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", q.queue, err)
	}
	return nil
}

func (q *RabbitQueue) Enqueue(ctx context.Context, executionID uuid.UUID) error {
	body, err := EncodePayload(executionID)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pubCh == nil || q.pubCh.IsClosed() {
		return errors.New("rabbitmq publishing channel is closed")
	}
	err = q.pubCh.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    executionID.String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish execution %s: %w", executionID, err)
	}
	return nil
}

// Consume runs concurrency handlers over one channel with prefetch = concurrency. Success is acked;
// any handler error is nacked without requeue so the broker moves it to the DLQ.
func (q *RabbitQueue) Consume(ctx context.Context, handler interfaces.DeliveryHandler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(q.concurrency, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	tag := fmt.Sprintf("prompt-ledger-worker-%s", uuid.NewString())
	msgs, err := ch.Consume(q.queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", q.queue, err)
	}
	q.logger.Info("Consuming executions", zap.String("queue", q.queue), zap.Int("concurrency", q.concurrency))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case msg, ok := <-msgs:
					if !ok {
						if gctx.Err() != nil {
							return nil
						}
						return errors.New("rabbitmq delivery channel closed")
					}
					q.handle(gctx, msg, handler)
				}
			}
		})
	}
	return g.Wait()
}

func (q *RabbitQueue) handle(ctx context.Context, msg amqp.Delivery, handler interfaces.DeliveryHandler) {
	if err := handler(context.WithoutCancel(ctx), msg.Body); err != nil {
		q.logger.Warn("Delivery failed, dead-lettering",
			zap.Uint64("deliveryTag", msg.DeliveryTag), zap.Error(err))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			q.logger.Error("Failed to nack delivery", zap.Uint64("deliveryTag", msg.DeliveryTag), zap.Error(nackErr))
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		q.logger.Error("Failed to ack delivery", zap.Uint64("deliveryTag", msg.DeliveryTag), zap.Error(ackErr))
	}
}

// Close closes the publishing channel. The connection belongs to the caller.
func (q *RabbitQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pubCh == nil {
		return nil
	}
	err := q.pubCh.Close()
	q.pubCh = nil
	return err
}

var _ Queue = (*RabbitQueue)(nil)
