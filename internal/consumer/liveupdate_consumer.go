package consumer

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/events"
	"github.com/stayloft/service-booking/internal/live"
	"github.com/stayloft/service-booking/internal/pkg/kafka"
)

// LiveUpdateConsumer pushes confirmed bookings to connected sessions.
type LiveUpdateConsumer struct {
	hub    *live.Hub
	logger *zap.Logger
}

// NewLiveUpdateConsumer creates the live-push handler.
func NewLiveUpdateConsumer(hub *live.Hub, logger *zap.Logger) *LiveUpdateConsumer {
	return &LiveUpdateConsumer{hub: hub, logger: logger}
}

// Handle publishes one confirmation to the hub.
func (c *LiveUpdateConsumer) Handle(_ context.Context, msg kafkago.Message) error {
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

	c.hub.Publish(live.Update{Kind: "booking.confirmed", Booking: payload})
	return nil
}
