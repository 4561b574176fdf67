package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Worker is a background component with a start/stop lifecycle.
type Worker interface {
	Start(ctx context.Context) error
	Shutdown() error
}

// ConsumerGroup starts and stops a set of workers reading from one subscriber.
type ConsumerGroup struct {
	workers    []Worker
	subscriber message.Subscriber
	logger     *zap.Logger
}

func NewConsumerGroup(subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		subscriber: subscriber,
		logger:     logger,
	}
}

func (g *ConsumerGroup) Add(w Worker) {
	g.workers = append(g.workers, w)
}

// Start starts every worker. If one fails, the ones already running are stopped.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	for i, w := range g.workers {
		if err := w.Start(ctx); err != nil {
			for _, started := range g.workers[:i] {
				_ = started.Shutdown()
			}

			return fmt.Errorf("start worker %d: %w", i, err)
		}
	}

	g.logger.Info("consumer group started",
		zap.Int("workers", len(g.workers)),
		zap.Strings("topics", g.Topics()),
	)

	return nil
}

// Topics lists the topics of workers that consume one.
func (g *ConsumerGroup) Topics() []string {
	topics := make([]string, 0, len(g.workers))

	for _, w := range g.workers {
		if t, ok := w.(interface{ Topic() string }); ok {
			topics = append(topics, t.Topic())
		}
	}

	return topics
}

// Shutdown stops every worker, then closes the subscriber. All errors are returned joined.
func (g *ConsumerGroup) Shutdown() error {
	g.logger.Info("stopping consumer group")

	errs := make([]error, 0, len(g.workers)+1)

	for _, w := range g.workers {
		errs = append(errs, w.Shutdown())
	}

	errs = append(errs, g.subscriber.Close())

	return errors.Join(errs...)
}
