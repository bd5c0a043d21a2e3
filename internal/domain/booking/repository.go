package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DailyActivity is the aggregate of one reconciliation window over the
// operational store.
type DailyActivity struct {
	// Revenue sums the totals of CONFIRMED and COMPLETED bookings.
	Revenue int64
	// Bookings counts CONFIRMED and COMPLETED bookings.
	Bookings int64
	// Cancels counts CANCELLED bookings.
	Cancels int64
}

// BookingRepository defines the persistence contract for booking aggregates
// against the operational store.
type BookingRepository interface {
	// Insert persists a new booking.
	Insert(ctx context.Context, b *Booking) error

	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindOverlapping returns bookings for the hotel whose status still
	// reserves inventory and whose stay overlaps the given window.
	FindOverlapping(ctx context.Context, hotelID int64, window StayWindow) ([]*Booking, error)

	// Update persists state changes to an existing booking.
	Update(ctx context.Context, b *Booking) error

	// FindByEmail retrieves bookings for a guest email, newest first.
	FindByEmail(ctx context.Context, email string, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination, newest first.
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// AggregateDailyActivity folds the bookings created in [from, to] into
	// a DailyActivity summary.
	AggregateDailyActivity(ctx context.Context, from, to time.Time) (DailyActivity, error)
}
