// Package bus connects the pipeline stages to Kafka: consumers read stage
// triggers, the publisher emits the next stage's trigger.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/theme-discovery-service/internal/config"
)

// Publisher writes trigger messages to Kafka topics.
// One publisher is shared by all stages; the topic is chosen per message.
type Publisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewPublisher creates a Kafka trigger publisher.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{
		writer: writer,
		logger: logger.With().Str("component", "bus_publisher").Logger(),
	}
}

// Publish marshals the payload and writes it to the topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Msg("trigger published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
