package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of kafka.Writer the sink needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes each event to the Kafka topic of the same name.
type KafkaSink struct {
	writer KafkaWriter
}

// NewKafkaSink builds a writer without a fixed topic; every message carries its own.
func NewKafkaSink(brokers []string) *KafkaSink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
	return &KafkaSink{writer: w}
}

func NewKafkaSinkWithWriter(w KafkaWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Publish(ctx context.Context, topic string, payload any) error {
	body, err := encode(topic, payload)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(partitionKey(payload)),
		Value: body,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
