package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher publishes outbox events to KAFKA_TOPIC on KAFKA_BROKERS.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher() (*KafkaPublisher, error) {
	brokers := envList("KAFKA_BROKERS")
	if len(brokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	topic := envString("KAFKA_TOPIC", "ventas")
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
	}, nil
}

// Publish keys messages by aggregate so events of one product stay ordered in a partition.
// Kafka has no server message id; the partition/offset pair is not returned by the writer, so the key is echoed.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte) (string, error) {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("kafka publish: %w", err)
	}
	return key, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
