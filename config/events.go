package config

import (
	"context"
	"fmt"
)

const (
	SinkPubSub = "pubsub"
	SinkKafka  = "kafka"
)

// EventPublisher is the transport behind the outbox dispatcher.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload []byte) (string, error)
	Close() error
}

// NewEventPublisher returns nil, nil when sale events are disabled.
func NewEventPublisher(sink string) (EventPublisher, error) {
	switch sink {
	case "":
		return nil, nil
	case SinkPubSub:
		p, err := NewPubSubPublisher()
		if err != nil {
			return nil, err
		}
		return p, nil
	case SinkKafka:
		p, err := NewKafkaPublisher()
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported SALE_EVENTS_SINK %q", sink)
	}
}
