package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/charlesng35/waitlist/internal/models"
)

// KafkaConfig describes the topic leads are published to.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each lead as JSON keyed by lead id, so all events for one lead land on
// the same partition.
type Kafka struct {
	writer messageWriter
}

// NewKafka builds a producer for cfg. Brokers are contacted lazily on first publish.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("relay: kafka requires at least one broker")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("relay: kafka topic is required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Kafka{writer: writer}, nil
}

// Name implements Named.
func (k *Kafka) Name() string { return "kafka" }

// Deliver publishes the lead.
func (k *Kafka) Deliver(ctx context.Context, lead models.Lead) error {
	value, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("relay: encode lead: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(lead.ID),
		Value: value,
		Time:  lead.SubmittedAt,
	}); err != nil {
		return fmt.Errorf("relay: kafka publish: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
