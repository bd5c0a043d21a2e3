package booking

import (
	"time"

	"github.com/stayloft/service-booking/internal/domain/shared"
)

// StayWindow is a half-open-by-convention stay interval. Check-in and
// check-out are instants at day granularity; the invariant CheckIn < CheckOut
// is enforced at construction.
type StayWindow struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// NewStayWindow validates and builds a StayWindow.
func NewStayWindow(checkIn, checkOut time.Time) (StayWindow, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return StayWindow{}, shared.NewValidationError("check-in and check-out are required")
	}
	if !checkIn.Before(checkOut) {
		return StayWindow{}, shared.NewValidationError("check-out date must be after check-in date")
	}
	return StayWindow{CheckIn: checkIn, CheckOut: checkOut}, nil
}

// Overlaps reports whether two stay windows reserve any of the same nights.
// The predicate is start < other.end AND end > other.start; full containment
// in either direction is a special case of it and needs no separate branch.
func (w StayWindow) Overlaps(other StayWindow) bool {
	return w.CheckIn.Before(other.CheckOut) && w.CheckOut.After(other.CheckIn)
}

// Nights returns the number of nights in the window, rounding partial days
// up, with a minimum of one.
func (w StayWindow) Nights() int {
	nights := int((w.CheckOut.Sub(w.CheckIn) + 24*time.Hour - time.Nanosecond) / (24 * time.Hour))
	if nights < 1 {
		nights = 1
	}
	return nights
}
