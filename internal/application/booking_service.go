package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/domain/booking"
	"github.com/stayloft/service-booking/internal/domain/shared"
	"github.com/stayloft/service-booking/internal/events"
	"github.com/stayloft/service-booking/internal/pkg/lock"
)

const (
	readLockTTL  = 1 * time.Second
	writeLockTTL = 5 * time.Second
)

// EventSink accepts events for asynchronous publication. Enqueue never
// blocks the caller.
type EventSink interface {
	Enqueue(topic, eventType, key string, data any)
}

// AvailabilityResult is the outcome of an availability check.
type AvailabilityResult struct {
	Available     bool              `json:"available"`
	Message       string            `json:"message,omitempty"`
	ConflictCount int               `json:"conflict_count"`
	Conflicts     []ConflictSummary `json:"conflicts,omitempty"`
}

// ConflictSummary describes one booking that blocks a requested window.
type ConflictSummary struct {
	BookingID string    `json:"booking_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	Status    string    `json:"status"`
}

// CreateBookingInput carries the fields needed to admit a new booking.
type CreateBookingInput struct {
	UserID   string
	HotelID  int64
	CheckIn  time.Time
	CheckOut time.Time
	Guests   booking.Guests
	Currency string
	Contact  booking.Contact
	Hotel    booking.HotelSnapshot
}

// BookingService implements the admission guard. All state transitions of
// a booking flow through it; hotel+window serialization is delegated to
// the lock service.
type BookingService struct {
	repo   booking.BookingRepository
	locker lock.Locker
	sink   EventSink
	logger *zap.Logger
}

// NewBookingService creates the booking application service.
func NewBookingService(repo booking.BookingRepository, locker lock.Locker, sink EventSink, logger *zap.Logger) *BookingService {
	return &BookingService{
		repo:   repo,
		locker: locker,
		sink:   sink,
		logger: logger,
	}
}

func lockResource(hotelID int64, checkIn time.Time) string {
	return fmt.Sprintf("hotel:%d:%s", hotelID, checkIn.UTC().Format("2006-01-02"))
}

// CheckAvailability reports whether the hotel can be booked for the window.
// A held lock is not a conflict; when the short read lease cannot be taken
// the overlap query still runs, so the answer may be momentarily stale.
func (s *BookingService) CheckAvailability(ctx context.Context, hotelID int64, checkIn, checkOut time.Time) (*AvailabilityResult, error) {
	window, err := booking.NewStayWindow(checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	lease, err := s.locker.Acquire(ctx, lockResource(hotelID, window.CheckIn), readLockTTL)
	if err != nil && err != lock.ErrNotAcquired {
		s.logger.Warn("lock service unreachable during availability check", zap.Error(err))
	}
	if lease != nil {
		defer func() {
			if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
				s.logger.Warn("failed to release read lease", zap.Error(relErr))
			}
		}()
	}

	overlapping, err := s.repo.FindOverlapping(ctx, hotelID, window)
	if err != nil {
		return nil, shared.NewUnavailableError("availability check failed", err)
	}

	result := &AvailabilityResult{
		Available:     len(overlapping) == 0,
		ConflictCount: len(overlapping),
	}
	if result.Available {
		result.Message = "Hotel is available for the selected dates"
	} else {
		result.Message = "Hotel is already booked for the selected dates"
		for _, b := range overlapping {
			result.Conflicts = append(result.Conflicts, ConflictSummary{
				BookingID: b.ID().String(),
				CheckIn:   b.Stay().CheckIn,
				CheckOut:  b.Stay().CheckOut,
				Status:    string(b.Status()),
			})
		}
	}
	return result, nil
}

// CreateBooking admits a booking under the hotel+window lock. The overlap
// check is re-run inside the critical section so that two concurrent
// requests for the same window cannot both win.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*booking.Booking, error) {
	window, err := booking.NewStayWindow(in.CheckIn, in.CheckOut)
	if err != nil {
		return nil, err
	}

	lease, err := s.locker.Acquire(ctx, lockResource(in.HotelID, window.CheckIn), writeLockTTL)
	if err != nil {
		if err == lock.ErrNotAcquired {
			// Contention is transient, not a business outcome; the caller
			// should retry rather than treat the window as taken.
			return nil, shared.NewUnavailableError("another booking for these dates is in progress, please try again", nil)
		}
		return nil, shared.NewUnavailableError("lock service unavailable", err)
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Warn("failed to release write lease",
				zap.String("resource", lease.Resource()), zap.Error(relErr))
		}
	}()

	overlapping, err := s.repo.FindOverlapping(ctx, in.HotelID, window)
	if err != nil {
		return nil, shared.NewUnavailableError("could not verify availability", err)
	}
	if len(overlapping) > 0 {
		return nil, shared.NewConflictError("hotel is already booked for the selected dates")
	}

	b, err := booking.NewBooking(in.UserID, in.HotelID, window, in.Guests, in.Contact, in.Hotel, in.Currency)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, b); err != nil {
		return nil, shared.NewUnavailableError("failed to persist booking", err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID().String()),
		zap.Int64("hotel_id", in.HotelID),
		zap.Time("check_in", window.CheckIn),
		zap.Time("check_out", window.CheckOut))
	return b, nil
}

// ConfirmBooking applies a successful payment to a pending booking and
// enqueues the booking.confirmed fan-out event.
func (s *BookingService) ConfirmBooking(ctx context.Context, id uuid.UUID, sessionID string) (*booking.Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Confirm(sessionID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}

	s.sink.Enqueue(events.TopicBookingConfirmed, events.BookingConfirmed, b.ID().String(), confirmedEvent(b))
	s.logger.Info("booking confirmed",
		zap.String("booking_id", b.ID().String()),
		zap.String("session_id", sessionID))
	return b, nil
}

// ExpirePayment cancels a pending booking whose payment window elapsed.
func (s *BookingService) ExpirePayment(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.ExpirePayment(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("booking payment expired", zap.String("booking_id", b.ID().String()))
	return b, nil
}

// CancelBooking cancels a pending booking on behalf of the guest.
func (s *BookingService) CancelBooking(ctx context.Context, id uuid.UUID, reason string) (*booking.Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", b.ID().String()),
		zap.String("reason", reason))
	return b, nil
}

// GetBooking retrieves one booking by id.
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	return s.repo.FindByID(ctx, id)
}

// ListBookings pages over all bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, page, limit int) ([]*booking.Booking, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListAll(ctx, page, limit)
}

// FindByEmail pages over a guest's bookings, newest first.
func (s *BookingService) FindByEmail(ctx context.Context, email string, page, limit int) ([]*booking.Booking, int64, error) {
	if email == "" {
		return nil, 0, shared.NewValidationError("email is required")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.FindByEmail(ctx, email, page, limit)
}

func confirmedEvent(b *booking.Booking) events.BookingConfirmedEvent {
	var confirmedAt time.Time
	if t := b.ConfirmedAt(); t != nil {
		confirmedAt = *t
	}
	return events.BookingConfirmedEvent{
		BookingID:     b.ID(),
		UserID:        b.UserID(),
		HotelID:       b.HotelID(),
		HotelName:     b.Hotel().Name,
		CustomerName:  b.Contact().FullName,
		CustomerEmail: b.Contact().Email,
		CustomerPhone: b.Contact().Phone,
		CheckIn:       b.Stay().CheckIn,
		CheckOut:      b.Stay().CheckOut,
		Nights:        b.Nights(),
		Adults:        b.Guests().Adults,
		Children:      b.Guests().Children,
		TotalAmount:   b.TotalAmount(),
		Currency:      b.Currency(),
		Status:        string(b.Status()),
		PaymentStatus: string(b.PaymentState().Status),
		SessionID:     b.PaymentState().SessionID,
		CreatedAt:     b.CreatedAt(),
		ConfirmedAt:   confirmedAt,
	}
}
