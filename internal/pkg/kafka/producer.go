package kafka

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer publishes CloudEvents to named topics. One Producer is shared by
// the whole process, constructed at startup and closed on shutdown.
type Producer struct {
	writer *kafkago.Writer
	source string
	logger *zap.Logger
}

// NewProducer creates a Producer for the given brokers. source names this
// service in the event envelope.
func NewProducer(brokers []string, source string, logger *zap.Logger) *Producer {
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &Producer{writer: writer, source: source, logger: logger}
}

// Publish writes one event and waits for broker acknowledgement. Broker
// acknowledgement says nothing about subscriber processing; delivery to
// subscribers is at-least-once and consumers are expected to be idempotent.
func (p *Producer) Publish(ctx context.Context, topic, eventType, key string, data any) error {
	event, err := NewEvent(p.source, eventType, data)
	if err != nil {
		return err
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
