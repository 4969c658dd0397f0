package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"nathanbeddoewebdev/cloudharvest/internal/domain"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each record as a JSON message keyed by subject, so all
// records for one resource land on the same partition.
type Kafka struct {
	w MessageWriter
}

// NewKafka returns a Kafka sink producing to topic on brokers.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: no brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka sink: no topic configured")
	}
	return NewKafkaWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}), nil
}

// NewKafkaWithWriter wraps an existing writer.
func NewKafkaWithWriter(w MessageWriter) *Kafka {
	return &Kafka{w: w}
}

func (k *Kafka) Write(ctx context.Context, rec domain.Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kafka sink: marshal record: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.Subject),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(rec.Kind)},
			{Key: "metric", Value: []byte(rec.Metric)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka sink: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }
