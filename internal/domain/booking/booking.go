package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/stayloft/service-booking/internal/domain/shared"
)

// Contact is the guest contact snapshot captured at creation time. It is
// immutable once set; later profile changes never rewrite past bookings.
type Contact struct {
	FullName string `json:"full_name" bson:"full_name"`
	Email    string `json:"email" bson:"email"`
	Phone    string `json:"phone" bson:"phone"`
}

// Guests holds the occupancy counts for a stay.
type Guests struct {
	Adults   int `json:"adults" bson:"adults"`
	Children int `json:"children" bson:"children"`
}

// HotelSnapshot captures the hotel as it was priced at booking time.
type HotelSnapshot struct {
	Name          string `json:"name" bson:"name"`
	Slug          string `json:"slug" bson:"slug"`
	Address       string `json:"address" bson:"address"`
	PricePerNight int64  `json:"price_per_night" bson:"price_per_night"`
}

// Payment tracks the payment sub-state of a booking.
type Payment struct {
	Status    PaymentStatus `json:"status" bson:"status"`
	SessionID string        `json:"session_id,omitempty" bson:"session_id,omitempty"`
}

// Booking is the aggregate root for the booking domain. The operational
// store's copy of a Booking is the single source of truth for its state.
type Booking struct {
	id          uuid.UUID
	userID      string
	hotelID     int64
	stay        StayWindow
	guests      Guests
	totalAmount int64
	currency    string
	status      BookingStatus
	payment     Payment
	contact     Contact
	hotel       HotelSnapshot

	confirmedAt *time.Time
	cancelledAt *time.Time
	cancelNote  string

	createdAt time.Time
	updatedAt time.Time
}

// NewBooking creates a PENDING booking after validating its invariants.
func NewBooking(
	userID string,
	hotelID int64,
	stay StayWindow,
	guests Guests,
	contact Contact,
	hotel HotelSnapshot,
	currency string,
) (*Booking, error) {
	if userID == "" {
		return nil, shared.NewValidationError("user ID is required")
	}
	if hotelID <= 0 {
		return nil, shared.NewValidationError("hotel ID must be a positive integer")
	}
	if contact.FullName == "" || contact.Email == "" || contact.Phone == "" {
		return nil, shared.NewValidationError("contact name, email and phone are required")
	}
	if guests.Adults < 1 {
		return nil, shared.NewValidationError("at least one adult is required")
	}
	if guests.Children < 0 {
		return nil, shared.NewValidationError("children count cannot be negative")
	}
	if hotel.PricePerNight < 0 {
		return nil, shared.NewValidationError("price per night cannot be negative")
	}
	if currency == "" {
		currency = "VND"
	}

	now := time.Now().UTC()
	return &Booking{
		id:          uuid.New(),
		userID:      userID,
		hotelID:     hotelID,
		stay:        stay,
		guests:      guests,
		totalAmount: hotel.PricePerNight * int64(stay.Nights()),
		currency:    currency,
		status:      StatusPending,
		payment:     Payment{Status: PaymentUnpaid},
		contact:     contact,
		hotel:       hotel,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	userID string,
	hotelID int64,
	stay StayWindow,
	guests Guests,
	totalAmount int64,
	currency string,
	status BookingStatus,
	payment Payment,
	contact Contact,
	hotel HotelSnapshot,
	confirmedAt *time.Time,
	cancelledAt *time.Time,
	cancelNote string,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:          id,
		userID:      userID,
		hotelID:     hotelID,
		stay:        stay,
		guests:      guests,
		totalAmount: totalAmount,
		currency:    currency,
		status:      status,
		payment:     payment,
		contact:     contact,
		hotel:       hotel,
		confirmedAt: confirmedAt,
		cancelledAt: cancelledAt,
		cancelNote:  cancelNote,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// UserID returns the booking owner's user ID.
func (b *Booking) UserID() string { return b.userID }

// HotelID returns the inventory unit this booking reserves.
func (b *Booking) HotelID() int64 { return b.hotelID }

// Stay returns the stay window.
func (b *Booking) Stay() StayWindow { return b.stay }

// Guests returns the occupancy counts.
func (b *Booking) Guests() Guests { return b.guests }

// TotalAmount returns the monetary total in minor currency units.
func (b *Booking) TotalAmount() int64 { return b.totalAmount }

// Currency returns the currency code.
func (b *Booking) Currency() string { return b.currency }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// PaymentState returns the payment sub-state.
func (b *Booking) PaymentState() Payment { return b.payment }

// Contact returns the immutable contact snapshot.
func (b *Booking) Contact() Contact { return b.contact }

// Hotel returns the hotel snapshot taken at creation time.
func (b *Booking) Hotel() HotelSnapshot { return b.hotel }

// Nights returns the number of nights in the stay.
func (b *Booking) Nights() int { return b.stay.Nights() }

// ConfirmedAt returns the confirmation time, or nil.
func (b *Booking) ConfirmedAt() *time.Time { return b.confirmedAt }

// CancelledAt returns the cancellation time, or nil.
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// CancelNote returns the cancellation reason.
func (b *Booking) CancelNote() string { return b.cancelNote }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// Confirm transitions the booking from PENDING to CONFIRMED in response to a
// payment-successful event. A confirmation against any other state is
// rejected so a late or duplicate event can never resurrect a cancelled
// booking.
func (b *Booking) Confirm(sessionID string) error {
	if !b.status.CanTransitionTo(StatusConfirmed) {
		return shared.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	now := time.Now().UTC()
	b.status = StatusConfirmed
	b.payment = Payment{Status: PaymentPaid, SessionID: sessionID}
	b.confirmedAt = &now
	b.updatedAt = now
	return nil
}

// Cancel transitions the booking to CANCELLED.
func (b *Booking) Cancel(reason string) error {
	if !b.status.CanTransitionTo(StatusCancelled) {
		return shared.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	now := time.Now().UTC()
	b.status = StatusCancelled
	b.cancelNote = reason
	b.cancelledAt = &now
	b.updatedAt = now
	return nil
}

// ExpirePayment cancels a PENDING booking whose checkout session lapsed,
// releasing its inventory hold.
func (b *Booking) ExpirePayment() error {
	if err := b.Cancel("payment session expired"); err != nil {
		return err
	}
	b.payment.Status = PaymentExpired
	return nil
}

// Complete transitions a CONFIRMED booking to COMPLETED after the stay ends.
func (b *Booking) Complete() error {
	if !b.status.CanTransitionTo(StatusCompleted) {
		return shared.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	b.status = StatusCompleted
	b.updatedAt = time.Now().UTC()
	return nil
}
