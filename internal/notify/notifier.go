// Package notify delivers booking confirmations to guests.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/events"
)

// Notifier sends a confirmation message for a booking.
type Notifier interface {
	SendConfirmation(ctx context.Context, ev events.BookingConfirmedEvent) error
}

// ConsoleNotifier renders the confirmation to the service log. Stands in
// for the mail gateway in environments without SMTP credentials.
type ConsoleNotifier struct {
	logger *zap.Logger
}

// NewConsoleNotifier creates a log-backed notifier.
func NewConsoleNotifier(logger *zap.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger}
}

// SendConfirmation logs the rendered confirmation.
func (n *ConsoleNotifier) SendConfirmation(_ context.Context, ev events.BookingConfirmedEvent) error {
	n.logger.Info("booking confirmation sent",
		zap.String("booking_id", ev.BookingID.String()),
		zap.String("to", ev.CustomerEmail),
		zap.String("subject", fmt.Sprintf("Your stay at %s is confirmed", ev.HotelName)),
		zap.Time("check_in", ev.CheckIn),
		zap.Time("check_out", ev.CheckOut),
		zap.Int64("total_amount", ev.TotalAmount),
		zap.String("currency", ev.Currency))
	return nil
}
