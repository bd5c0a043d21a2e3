package consumer

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/events"
	"github.com/stayloft/service-booking/internal/notify"
	"github.com/stayloft/service-booking/internal/pkg/kafka"
)

// NotificationConsumer sends guest confirmations. Delivery is best effort;
// a failed send is logged and the event is not redelivered, because the
// booking state is already final and a duplicate email is worse than a
// missing one.
type NotificationConsumer struct {
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewNotificationConsumer creates the confirmation-mail handler.
func NewNotificationConsumer(notifier notify.Notifier, logger *zap.Logger) *NotificationConsumer {
	return &NotificationConsumer{notifier: notifier, logger: logger}
}

// Handle sends the confirmation for one booking.
func (c *NotificationConsumer) Handle(ctx context.Context, msg kafkago.Message) error {
	var ev kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.Error("dropping malformed booking.confirmed event", zap.Error(err))
		return nil
	}
	var payload events.BookingConfirmedEvent
	if err := ev.ParseData(&payload); err != nil {
		c.logger.Error("dropping booking.confirmed with bad payload",
			zap.String("event_id", ev.ID), zap.Error(err))
		return nil
	}

	if err := c.notifier.SendConfirmation(ctx, payload); err != nil {
		c.logger.Error("confirmation send failed",
			zap.String("booking_id", payload.BookingID.String()),
			zap.String("to", payload.CustomerEmail),
			zap.Error(err))
	}
	return nil
}
