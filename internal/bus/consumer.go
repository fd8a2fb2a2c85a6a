package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/theme-discovery-service/internal/config"
	"github.com/helixir/theme-discovery-service/internal/domain"
	"github.com/helixir/theme-discovery-service/internal/observability"
)

// validate checks trigger payload structs after decoding.
var validate = validator.New()

// Decode unmarshals a trigger payload into v and validates it. Any error
// means the payload is malformed and must be dropped without surfacing an
// error to the transport.
func Decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal trigger payload: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid trigger payload: %w", err)
	}
	return nil
}

// Handler processes one raw trigger payload and reports how it finished.
// Handlers own malformed-payload detection (via Decode) and must report a
// skip, not a failure, for payloads they drop.
type Handler func(ctx context.Context, payload []byte) domain.StageResult

// Consumer runs a read loop over one topic and dispatches each message to
// its handler. Handler outcomes only affect logging and metrics; the loop
// never redelivers on its own, matching at-least-once consumer group
// semantics.
type Consumer struct {
	reader  *kafka.Reader
	topic   string
	handler Handler
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewConsumer creates a consumer group reader for the topic.
func NewConsumer(cfg config.KafkaConfig, topic string, handler Handler, metrics *observability.Metrics, logger zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  cfg.MaxWait,
	})

	return &Consumer{
		reader:  reader,
		topic:   topic,
		handler: handler,
		metrics: metrics,
		logger:  logger.With().Str("component", "bus_consumer").Str("topic", topic).Logger(),
	}
}

// Run starts the consumer loop. Blocks until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Msg("starting trigger consumer")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("trigger consumer stopped via context cancellation")
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		c.process(ctx, msg)
	}
}

// process dispatches one message and records its outcome.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	c.metrics.TriggersReceived.WithLabelValues(c.topic).Inc()
	c.logger.Debug().
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("received trigger")

	ctx = observability.WithTriggerID(ctx, fmt.Sprintf("%s/%d/%d", c.topic, msg.Partition, msg.Offset))
	result := c.handler(ctx, msg.Value)

	switch result.Outcome {
	case domain.StageCompleted:
		c.logger.Debug().Msg("trigger handled")
	case domain.StageSkipped:
		c.logger.Debug().Str("reason", result.Reason).Msg("trigger skipped")
	case domain.StageFailed:
		c.logger.Error().Err(result.Err).Msg("trigger handling failed")
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
