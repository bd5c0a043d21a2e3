package consumer

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/events"
	"github.com/stayloft/service-booking/internal/pkg/kafka"
	"github.com/stayloft/service-booking/internal/repository"
)

// MirrorStore persists analytics-side booking rows.
type MirrorStore interface {
	Upsert(ctx context.Context, m *repository.BookingMirrorModel) error
}

// MirrorConsumer projects confirmed bookings into the analytics store.
// Upserts are keyed by the source booking id, so redelivery is harmless.
type MirrorConsumer struct {
	mirrors MirrorStore
	logger  *zap.Logger
}

// NewMirrorConsumer creates the analytics projection handler.
func NewMirrorConsumer(mirrors MirrorStore, logger *zap.Logger) *MirrorConsumer {
	return &MirrorConsumer{mirrors: mirrors, logger: logger}
}

// Handle upserts the mirror row for one confirmed booking.
func (c *MirrorConsumer) Handle(ctx context.Context, msg kafkago.Message) error {
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

	now := time.Now()
	row := &repository.BookingMirrorModel{
		BookingID:     payload.BookingID.String(),
		UserID:        payload.UserID,
		HotelID:       payload.HotelID,
		HotelName:     payload.HotelName,
		CustomerName:  payload.CustomerName,
		CustomerEmail: payload.CustomerEmail,
		CheckIn:       payload.CheckIn,
		CheckOut:      payload.CheckOut,
		Nights:        payload.Nights,
		TotalAmount:   payload.TotalAmount,
		Currency:      payload.Currency,
		Status:        payload.Status,
		PaymentStatus: translatePaymentStatus(payload.PaymentStatus),
		SourceCreated: payload.CreatedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.mirrors.Upsert(ctx, row); err != nil {
		c.logger.Error("mirror upsert failed, will retry",
			zap.String("booking_id", row.BookingID), zap.Error(err))
		return err
	}

	c.logger.Debug("booking mirrored", zap.String("booking_id", row.BookingID))
	return nil
}

// translatePaymentStatus maps the operational payment vocabulary onto the
// analytics one.
func translatePaymentStatus(s string) string {
	switch s {
	case "PAID":
		return "SUCCEEDED"
	case "EXPIRED":
		return "EXPIRED"
	case "UNPAID":
		return "PENDING"
	default:
		return s
	}
}
