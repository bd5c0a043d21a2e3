package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validContact() Contact {
	return Contact{FullName: "Lan Pham", Email: "lan@example.com", Phone: "+84901234567"}
}

func validHotel() HotelSnapshot {
	return HotelSnapshot{Name: "Saigon Riverside", Slug: "saigon-riverside", Address: "Q1, HCMC", PricePerNight: 1_200_000}
}

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	b, err := NewBooking(
		"user-42", 7,
		window(t, "2026-01-20", "2026-01-25"),
		Guests{Adults: 2, Children: 1},
		validContact(), validHotel(), "",
	)
	require.NoError(t, err)
	return b
}

func TestNewBooking(t *testing.T) {
	b := newTestBooking(t)

	assert.Equal(t, StatusPending, b.Status())
	assert.Equal(t, PaymentUnpaid, b.PaymentState().Status)
	assert.Equal(t, "VND", b.Currency())
	assert.Equal(t, 5, b.Nights())
	assert.Equal(t, int64(6_000_000), b.TotalAmount())
	assert.NotEqual(t, b.ID().String(), "")
	assert.Nil(t, b.ConfirmedAt())
}

func TestNewBookingValidation(t *testing.T) {
	stay := window(t, "2026-01-20", "2026-01-25")

	_, err := NewBooking("", 7, stay, Guests{Adults: 1}, validContact(), validHotel(), "VND")
	assert.Error(t, err)

	_, err = NewBooking("user-42", 0, stay, Guests{Adults: 1}, validContact(), validHotel(), "VND")
	assert.Error(t, err)

	_, err = NewBooking("user-42", 7, stay, Guests{Adults: 0}, validContact(), validHotel(), "VND")
	assert.Error(t, err)

	_, err = NewBooking("user-42", 7, stay, Guests{Adults: 1}, Contact{}, validHotel(), "VND")
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	b := newTestBooking(t)

	require.NoError(t, b.Confirm("sess_123"))
	assert.Equal(t, StatusConfirmed, b.Status())
	assert.Equal(t, PaymentPaid, b.PaymentState().Status)
	assert.Equal(t, "sess_123", b.PaymentState().SessionID)
	require.NotNil(t, b.ConfirmedAt())

	// A duplicate confirmation is rejected.
	assert.Error(t, b.Confirm("sess_456"))
	assert.Equal(t, "sess_123", b.PaymentState().SessionID)
}

func TestConfirmAfterCancelRejected(t *testing.T) {
	b := newTestBooking(t)
	require.NoError(t, b.Cancel("changed my mind"))

	err := b.Confirm("sess_late")
	require.Error(t, err)
	assert.Equal(t, StatusCancelled, b.Status())
	assert.Equal(t, PaymentUnpaid, b.PaymentState().Status)
}

func TestCancel(t *testing.T) {
	b := newTestBooking(t)

	require.NoError(t, b.Cancel("plans changed"))
	assert.Equal(t, StatusCancelled, b.Status())
	assert.Equal(t, "plans changed", b.CancelNote())
	require.NotNil(t, b.CancelledAt())

	// Cancelled is terminal.
	assert.Error(t, b.Cancel("again"))
}

func TestExpirePayment(t *testing.T) {
	b := newTestBooking(t)

	require.NoError(t, b.ExpirePayment())
	assert.Equal(t, StatusCancelled, b.Status())
	assert.Equal(t, PaymentExpired, b.PaymentState().Status)

	// Expiry against a confirmed booking is rejected.
	c := newTestBooking(t)
	require.NoError(t, c.Confirm("sess_ok"))
	assert.Error(t, c.ExpirePayment())
	assert.Equal(t, StatusConfirmed, c.Status())
}

func TestComplete(t *testing.T) {
	b := newTestBooking(t)

	// A stay cannot complete before payment.
	assert.Error(t, b.Complete())

	require.NoError(t, b.Confirm("sess_123"))
	require.NoError(t, b.Complete())
	assert.Equal(t, StatusCompleted, b.Status())
}
