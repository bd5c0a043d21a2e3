// Package consumer wires Kafka topics to application behavior. Handlers
// return nil for events that must not be redelivered (malformed payloads,
// bookings in a state the event no longer applies to) and an error only
// when retrying could succeed.
package consumer

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/application"
	"github.com/stayloft/service-booking/internal/domain/shared"
	"github.com/stayloft/service-booking/internal/events"
	"github.com/stayloft/service-booking/internal/pkg/kafka"
)

// PaymentConsumer applies payment outcomes to bookings.
type PaymentConsumer struct {
	service *application.BookingService
	logger  *zap.Logger
}

// NewPaymentConsumer creates the payment event handler.
func NewPaymentConsumer(service *application.BookingService, logger *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{service: service, logger: logger}
}

// Handle routes one payment message by topic.
func (c *PaymentConsumer) Handle(ctx context.Context, msg kafkago.Message) error {
	var ev kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.Error("dropping malformed payment event",
			zap.String("topic", msg.Topic), zap.Error(err))
		return nil
	}

	switch msg.Topic {
	case events.TopicPaymentSuccessful:
		return c.handleSuccessful(ctx, ev)
	case events.TopicPaymentExpired:
		return c.handleExpired(ctx, ev)
	default:
		c.logger.Warn("ignoring message on unexpected topic", zap.String("topic", msg.Topic))
		return nil
	}
}

func (c *PaymentConsumer) handleSuccessful(ctx context.Context, ev kafka.CloudEvent) error {
	var payload events.PaymentSuccessfulEvent
	if err := ev.ParseData(&payload); err != nil {
		c.logger.Error("dropping payment.successful with bad payload",
			zap.String("event_id", ev.ID), zap.Error(err))
		return nil
	}

	_, err := c.service.ConfirmBooking(ctx, payload.BookingID, payload.SessionID)
	if err != nil {
		return c.settle(err, "payment.successful", payload.BookingID.String())
	}
	return nil
}

func (c *PaymentConsumer) handleExpired(ctx context.Context, ev kafka.CloudEvent) error {
	var payload events.PaymentExpiredEvent
	if err := ev.ParseData(&payload); err != nil {
		c.logger.Error("dropping payment.expired with bad payload",
			zap.String("event_id", ev.ID), zap.Error(err))
		return nil
	}

	_, err := c.service.ExpirePayment(ctx, payload.BookingID)
	if err != nil {
		return c.settle(err, "payment.expired", payload.BookingID.String())
	}
	return nil
}

// settle decides between dropping and redelivering a failed event. Missing
// bookings and stale transitions are final; everything else may be a
// transient store failure and gets retried.
func (c *PaymentConsumer) settle(err error, eventType, bookingID string) error {
	switch shared.KindOf(err) {
	case shared.KindNotFound:
		c.logger.Error("payment event references unknown booking, dropping",
			zap.String("event_type", eventType),
			zap.String("booking_id", bookingID),
			zap.Error(err))
		return nil
	case shared.KindInvalidState:
		c.logger.Warn("payment event no longer applies, dropping",
			zap.String("event_type", eventType),
			zap.String("booking_id", bookingID),
			zap.Error(err))
		return nil
	default:
		c.logger.Error("payment event handling failed, will retry",
			zap.String("event_type", eventType),
			zap.String("booking_id", bookingID),
			zap.Error(err))
		return err
	}
}
