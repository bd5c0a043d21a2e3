// Package events defines the topic catalog and payload contracts shared by
// producers and consumers. Payloads are versionless JSON; fields are only
// ever added, never repurposed.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topic catalog. The hotel topics are produced by the inventory service and
// consumed by the external product-catalog mirror; the constants live here so
// every party agrees on the names.
const (
	TopicPaymentSuccessful = "payment.successful"
	TopicPaymentExpired    = "payment.expired"
	TopicBookingConfirmed  = "booking.confirmed"
	TopicHotelCreated      = "hotel.created"
	TopicHotelDeleted      = "hotel.deleted"
)

// Event type names carried in the envelope. They mirror the topic names;
// a topic carries exactly one event type.
const (
	PaymentSucceeded = "payment.successful"
	PaymentExpired   = "payment.expired"
	BookingConfirmed = "booking.confirmed"
)

// RoomLine describes one room in a paid booking.
type RoomLine struct {
	Name           string `json:"name"`
	PriceAtBooking int64  `json:"price_at_booking"`
}

// PaymentSuccessfulEvent is published by the payment service after the
// gateway confirms a charge.
type PaymentSuccessfulEvent struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	UserID        string     `json:"user_id"`
	CustomerEmail string     `json:"customer_email"`
	TotalAmount   int64      `json:"total_amount"`
	Currency      string     `json:"currency"`
	PaymentStatus string     `json:"payment_status"`
	SessionID     string     `json:"session_id"`
	Rooms         []RoomLine `json:"rooms,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// PaymentExpiredEvent is published when a checkout session lapses without
// payment; the booking service releases the inventory hold.
type PaymentExpiredEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingConfirmedEvent carries the full booking snapshot so fan-out
// consumers can mirror, notify and push without querying the primary store.
type BookingConfirmedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	UserID        string    `json:"user_id"`
	HotelID       int64     `json:"hotel_id"`
	HotelName     string    `json:"hotel_name"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Nights        int       `json:"nights"`
	Adults        int       `json:"adults"`
	Children      int       `json:"children"`
	TotalAmount   int64     `json:"total_amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// HotelCreatedEvent mirrors inventory creation into downstream catalogs.
type HotelCreatedEvent struct {
	HotelID int64             `json:"hotel_id"`
	Name    string            `json:"name"`
	Price   int64             `json:"price"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// HotelDeletedEvent mirrors inventory deletion into downstream catalogs.
type HotelDeletedEvent struct {
	HotelID int64 `json:"hotel_id"`
}
