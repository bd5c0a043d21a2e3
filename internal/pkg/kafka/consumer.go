package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler processes one message. Returning nil commits the offset; returning
// an error leaves it uncommitted so the message is redelivered after a
// restart (at-least-once). Handlers must therefore be idempotent and should
// return nil for malformed messages that can never succeed.
type Handler func(ctx context.Context, msg kafkago.Message) error

// Consumer reads a consumer-group subscription over one or more topics.
type Consumer struct {
	reader *kafkago.Reader
	logger *zap.Logger
}

// NewConsumer creates a Consumer for the given group and topics.
func NewConsumer(brokers []string, groupID string, logger *zap.Logger, topics ...string) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits
	})
	return &Consumer{reader: reader, logger: logger}
}

// Consume fetches and handles messages until the context is cancelled or the
// reader fails. Offsets are committed only after the handler succeeds.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if err := handler(ctx, msg); err != nil {
			c.logger.Error("message handling failed, offset not committed",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("offset commit failed",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

// Run keeps Consume alive across transient broker failures with exponential
// backoff. It returns only when the context is cancelled.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	policy := backoff.WithContext(newRunBackoff(), ctx)
	return backoff.Retry(func() error {
		err := c.Consume(ctx, handler)
		if err == nil || errors.Is(err, context.Canceled) {
			return backoff.Permanent(context.Canceled)
		}
		c.logger.Warn("consumer loop ended, reconnecting", zap.Error(err))
		return err
	}, policy)
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func newRunBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry forever until the context is cancelled
	return b
}
