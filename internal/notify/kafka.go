package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaOptions configures the Kafka publisher.
type KafkaOptions struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Kafka writes events to a topic keyed by restaurant id, so events of one
// restaurant stay ordered within a partition.
type Kafka struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafka creates a new Kafka publisher.
func NewKafka(opts KafkaOptions, logger zerolog.Logger) (*Kafka, error) {
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("kafka: no topic configured")
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 10 * time.Millisecond
	}
	logger = logger.With().Str("component", "notify.kafka").Logger()
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(opts.Brokers...),
			Topic:        opts.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: opts.BatchTimeout,
			RequiredAcks: kafka.RequireOne,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				logger.Error().Msgf(msg, args...)
			}),
		},
		logger: logger,
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.RestaurantID.String()),
		Value: body,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "entity", Value: []byte(e.Entity)},
			{Key: "op", Value: []byte(e.Op)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", e.RoutingKey(), err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
