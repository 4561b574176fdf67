package container

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/samber/do"
	"github.com/zamdevio/mdviewer-sub000/internal/analytics"
	analyticsstore "github.com/zamdevio/mdviewer-sub000/internal/analytics/store"
	"github.com/zamdevio/mdviewer-sub000/internal/messaging"
	"go.uber.org/zap"
)

// ConsumerGroupName is the Redis streams consumer group reading share events.
const ConsumerGroupName = "analytics"

// PublisherGroupPackage provides the typed share event publishers.
// With analytics disabled both publishers discard events.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     client.Client,
			Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[analytics.ShareCreatedEvent], error) {
		options := do.MustInvoke[*Options](i)
		if !options.Analytics {
			return messaging.Discard[analytics.ShareCreatedEvent](), nil
		}

		codec, err := messaging.CodecByName(options.EventCodec)
		if err != nil {
			return nil, err
		}

		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return messaging.NewPublishFunc[analytics.ShareCreatedEvent](group.Publisher(), analytics.TopicShareCreated, codec), nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[analytics.ShareAccessedEvent], error) {
		options := do.MustInvoke[*Options](i)
		if !options.Analytics {
			return messaging.Discard[analytics.ShareAccessedEvent](), nil
		}

		codec, err := messaging.CodecByName(options.EventCodec)
		if err != nil {
			return nil, err
		}

		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return messaging.NewPublishFunc[analytics.ShareAccessedEvent](group.Publisher(), analytics.TopicShareAccessed, codec), nil
	})
}

// ConsumerGroupPackage provides the consumers that persist share events.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (analytics.Store, error) {
		switch sink := do.MustInvoke[*Options](i).AnalyticsStore; sink {
		case "log":
			return analyticsstore.NewLog(do.MustInvoke[*zap.Logger](i)), nil
		case "", BackendRedis:
			return analyticsstore.NewRedis(do.MustInvoke[*RedisClient](i).Client), nil
		default:
			return nil, fmt.Errorf("unknown analytics store %q", sink)
		}
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)
		eventStore := do.MustInvoke[analytics.Store](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client.Client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: ConsumerGroupName,
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create subscriber: %w", err)
		}

		attempts := messaging.WithMaxAttempts(do.MustInvoke[*Options](i).EventAttempts)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(messaging.NewConsumer(subscriber, analytics.TopicShareCreated, eventStore.SaveShareCreated, logger, attempts))
		group.Add(messaging.NewConsumer(subscriber, analytics.TopicShareAccessed, eventStore.SaveShareAccessed, logger, attempts))

		return group, nil
	})
}
