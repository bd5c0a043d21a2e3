package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/application"
	"github.com/stayloft/service-booking/internal/domain/booking"
	"github.com/stayloft/service-booking/internal/domain/shared"
	"github.com/stayloft/service-booking/internal/pkg/lock"
)

// fakeRepo is a minimal in-memory BookingRepository for handler tests.
type fakeRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*booking.Booking
	failWith error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bookings: make(map[uuid.UUID]*booking.Booking)}
}

func (r *fakeRepo) Insert(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID()] = b
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, shared.NewNotFoundError("Booking", id.String())
	}
	return b, nil
}

func (r *fakeRepo) FindOverlapping(_ context.Context, hotelID int64, window booking.StayWindow) ([]*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []*booking.Booking
	for _, b := range r.bookings {
		if b.HotelID() == hotelID && b.Status().ReservesInventory() && b.Stay().Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeRepo) Update(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID()] = b
	return nil
}

func (r *fakeRepo) FindByEmail(context.Context, string, int, int) ([]*booking.Booking, int64, error) {
	return nil, 0, nil
}

func (r *fakeRepo) ListAll(context.Context, int, int) ([]*booking.Booking, int64, error) {
	return nil, 0, nil
}

func (r *fakeRepo) AggregateDailyActivity(context.Context, time.Time, time.Time) (booking.DailyActivity, error) {
	return booking.DailyActivity{}, nil
}

type grantLocker struct{}

func (grantLocker) Acquire(context.Context, string, time.Duration) (lock.Lease, error) {
	return grantedLease{}, nil
}

type grantedLease struct{}

func (grantedLease) Resource() string { return "" }

func (grantedLease) Refresh(context.Context, time.Duration) error { return nil }

func (grantedLease) Release(context.Context) error { return nil }

type discardSink struct{}

func (discardSink) Enqueue(string, string, string, any) {}

func newTestRouter(repo *fakeRepo) (*gin.Engine, *application.BookingService) {
	gin.SetMode(gin.TestMode)
	svc := application.NewBookingService(repo, grantLocker{}, discardSink{}, zap.NewNop())
	router := gin.New()
	NewAvailabilityHandler(svc, zap.NewNop()).RegisterRoutes(router)
	NewBookingHandler(svc, zap.NewNop()).RegisterRoutes(router)
	return router, svc
}

func seedPendingStay(t *testing.T, svc *application.BookingService) *booking.Booking {
	t.Helper()
	b, err := svc.CreateBooking(context.Background(), application.CreateBookingInput{
		UserID:   "user-42",
		HotelID:  7,
		CheckIn:  time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC),
		Guests:   booking.Guests{Adults: 2},
		Contact:  booking.Contact{FullName: "Lan Pham", Email: "lan@example.com", Phone: "+84901234567"},
		Hotel:    booking.HotelSnapshot{Name: "Saigon Riverside", PricePerNight: 1_000_000},
	})
	require.NoError(t, err)
	return b
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestAvailabilityMissingParams(t *testing.T) {
	router, _ := newTestRouter(newFakeRepo())

	w := get(router, "/check-availability?hotelId=7")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityBadDate(t *testing.T) {
	router, _ := newTestRouter(newFakeRepo())

	w := get(router, "/check-availability?hotelId=7&checkIn=20-01-2026&checkOut=2026-01-25")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityInvertedWindow(t *testing.T) {
	router, _ := newTestRouter(newFakeRepo())

	w := get(router, "/check-availability?hotelId=7&checkIn=2026-01-25&checkOut=2026-01-20")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityOpenHotel(t *testing.T) {
	router, _ := newTestRouter(newFakeRepo())

	w := get(router, "/check-availability?hotelId=7&checkIn=2026-01-20&checkOut=2026-01-25")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Available     bool `json:"available"`
		ConflictCount int  `json:"conflict_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Available)
	assert.Zero(t, body.ConflictCount)
}

func TestAvailabilityConflict(t *testing.T) {
	router, svc := newTestRouter(newFakeRepo())
	seedPendingStay(t, svc)

	w := get(router, "/check-availability?hotelId=7&checkIn=2026-01-22&checkOut=2026-01-23")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Available     bool `json:"available"`
		ConflictCount int  `json:"conflict_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Available)
	assert.Equal(t, 1, body.ConflictCount)
}

func TestAvailabilityFailsOpenOnStoreError(t *testing.T) {
	repo := newFakeRepo()
	router, _ := newTestRouter(repo)
	repo.failWith = errors.New("primary stepped down")

	w := get(router, "/check-availability?hotelId=7&checkIn=2026-01-20&checkOut=2026-01-25")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body struct {
		Available bool `json:"available"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Available)
}

func TestGetBookingNotFound(t *testing.T) {
	router, _ := newTestRouter(newFakeRepo())

	w := get(router, "/bookings/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBookingBadID(t *testing.T) {
	router, _ := newTestRouter(newFakeRepo())

	w := get(router, "/bookings/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBooking(t *testing.T) {
	router, svc := newTestRouter(newFakeRepo())
	b := seedPendingStay(t, svc)

	w := get(router, "/bookings/"+b.ID().String())
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, b.ID().String(), body.ID)
	assert.Equal(t, "PENDING", body.Status)
}
