package messaging

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// DefaultMaxAttempts is how often a failing event is redelivered before it is dropped.
const DefaultMaxAttempts = 5

// Handler processes a single event.
type Handler[T any] func(ctx context.Context, event *T) error

// ConsumerOption configures a Consumer.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	maxAttempts int
}

// WithMaxAttempts bounds the deliveries of an event whose handler keeps failing.
func WithMaxAttempts(n int) ConsumerOption {
	return func(c *consumerConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Consumer decodes the events of one topic and passes them to a typed handler.
// The payload codec is picked per message from its content type metadata.
type Consumer[T any] struct {
	subscriber  message.Subscriber
	topic       string
	handler     Handler[T]
	logger      *zap.Logger
	maxAttempts int

	mu       sync.Mutex
	attempts map[string]int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewConsumer creates a consumer of topic.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
	opts ...ConsumerOption,
) *Consumer[T] {
	cfg := consumerConfig{maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer[T]{
		subscriber:  subscriber,
		topic:       topic,
		handler:     handler,
		logger:      logger.With(zap.String("topic", topic)),
		maxAttempts: cfg.maxAttempts,
		attempts:    make(map[string]int),
		done:        make(chan struct{}),
	}
}

func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start subscribes and processes messages in the background until ctx ends or Shutdown is called.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		c.cancel()
		close(c.done)

		return err
	}

	go func() {
		defer close(c.done)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				c.process(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *Consumer[T]) process(ctx context.Context, msg *message.Message) {
	logger := c.logger.With(zap.String("message_id", msg.UUID))

	codec, ok := codecFor(msg.Metadata.Get(MetadataContentType))
	if !ok {
		logger.Error("dropping event with unknown encoding",
			zap.String("content_type", msg.Metadata.Get(MetadataContentType)))
		msg.Ack()

		return
	}

	var event T
	if err := codec.Unmarshal(msg.Payload, &event); err != nil {
		logger.Error("dropping undecodable event", zap.Error(err))
		msg.Ack()

		return
	}

	if err := c.handler(ctx, &event); err != nil {
		attempt := c.recordFailure(msg.UUID)
		if attempt >= c.maxAttempts {
			logger.Error("dropping event after repeated failures", zap.Int("attempts", attempt), zap.Error(err))
			c.forget(msg.UUID)
			msg.Ack()

			return
		}

		logger.Warn("event handler failed", zap.Int("attempt", attempt), zap.Error(err))
		msg.Nack()

		return
	}

	c.forget(msg.UUID)
	msg.Ack()
}

func (c *Consumer[T]) recordFailure(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempts[id]++

	return c.attempts[id]
}

func (c *Consumer[T]) forget(id string) {
	c.mu.Lock()
	delete(c.attempts, id)
	c.mu.Unlock()
}

// Shutdown stops the consumer and waits for the message in flight.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	<-c.done

	return nil
}
