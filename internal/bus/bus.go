// Package bus wires the watermill publisher/subscriber pair that carries
// payloads between the API client and the renderer.
package bus

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scrum-assistant/backend/internal/config"
)

// Bus bundles a publisher and a subscriber over the same transport.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	closers []func() error
}

// New builds a Redis Streams bus when enabled, otherwise an in-process one.
func New(cfg config.BusConfig) (*Bus, error) {
	if !cfg.RedisEnabled {
		return NewInMemory(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}
	logger := NewWatermillLogger(log.Logger)

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	sub, err := rstream.NewSubscriber(subscriberConfig(cfg, client, marshaler), logger)
	if err != nil {
		pub.Close()
		client.Close()
		return nil, err
	}

	log.Info().Str("component", "bus").Str("addr", cfg.RedisAddr).Str("group", cfg.Group).Msg("payload bus on redis streams")
	return &Bus{
		Publisher:  pub,
		Subscriber: sub,
		closers:    []func() error{sub.Close, pub.Close, client.Close},
	}, nil
}

// NewInMemory returns a gochannel bus. Publish blocks until every subscriber
// acked the message, which keeps delivery in publish order per topic.
func NewInMemory() *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            16,
		BlockPublishUntilSubscriberAck: true,
	}, NewWatermillLogger(log.Logger))

	return &Bus{
		Publisher:  ch,
		Subscriber: ch,
		closers:    []func() error{ch.Close},
	}
}

// subscriberConfig starts new consumer groups at the stream tail. A panel
// publishes its initial request before it observes requests, and that
// request must not be replayed to the observer.
func subscriberConfig(cfg config.BusConfig, client redis.UniversalClient, u rstream.Unmarshaller) rstream.SubscriberConfig {
	return rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  u,
		ConsumerGroup: cfg.Group,
		Consumer:      cfg.Consumer,
		OldestId:      "$",
	}
}

// Close releases the transport.
func (b *Bus) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewMessage wraps a payload body in a watermill message. An empty id gets a
// fresh uuid.
func NewMessage(id string, body []byte) *message.Message {
	if id == "" {
		id = watermill.NewUUID()
	}
	return message.NewMessage(id, body)
}
