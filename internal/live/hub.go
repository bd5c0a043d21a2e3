// Package live pushes booking updates to connected dashboard and guest
// sessions.
package live

import (
	"sync"

	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/events"
)

const subscriberBuffer = 16

// Update is one message pushed to subscribers.
type Update struct {
	Kind    string                       `json:"kind"`
	Booking events.BookingConfirmedEvent `json:"booking"`
}

// Subscription is a live feed attached to the hub. Close it with the
// cancel function returned at subscribe time.
type Subscription struct {
	C      <-chan Update
	cancel func()
}

// Cancel detaches the subscription from the hub.
func (s *Subscription) Cancel() { s.cancel() }

// Hub distributes booking updates to an admin feed and to per-booking
// subscriber groups. Sends never block; a subscriber that cannot keep up
// misses updates instead of stalling the publisher.
type Hub struct {
	mu        sync.RWMutex
	admin     map[chan Update]struct{}
	byBooking map[string]map[chan Update]struct{}
	logger    *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		admin:     make(map[chan Update]struct{}),
		byBooking: make(map[string]map[chan Update]struct{}),
		logger:    logger,
	}
}

// SubscribeAdmin attaches a feed receiving every update.
func (h *Hub) SubscribeAdmin() *Subscription {
	ch := make(chan Update, subscriberBuffer)
	h.mu.Lock()
	h.admin[ch] = struct{}{}
	h.mu.Unlock()

	return &Subscription{C: ch, cancel: func() {
		h.mu.Lock()
		delete(h.admin, ch)
		h.mu.Unlock()
	}}
}

// SubscribeBooking attaches a feed receiving updates for one booking.
func (h *Hub) SubscribeBooking(bookingID string) *Subscription {
	ch := make(chan Update, subscriberBuffer)
	h.mu.Lock()
	group, ok := h.byBooking[bookingID]
	if !ok {
		group = make(map[chan Update]struct{})
		h.byBooking[bookingID] = group
	}
	group[ch] = struct{}{}
	h.mu.Unlock()

	return &Subscription{C: ch, cancel: func() {
		h.mu.Lock()
		if group, ok := h.byBooking[bookingID]; ok {
			delete(group, ch)
			if len(group) == 0 {
				delete(h.byBooking, bookingID)
			}
		}
		h.mu.Unlock()
	}}
}

// Publish fans an update out to the admin feed and the booking's group.
func (h *Hub) Publish(u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.admin {
		h.send(ch, u)
	}
	for ch := range h.byBooking[u.Booking.BookingID.String()] {
		h.send(ch, u)
	}
}

func (h *Hub) send(ch chan Update, u Update) {
	select {
	case ch <- u:
	default:
		h.logger.Debug("live subscriber lagging, update dropped",
			zap.String("booking_id", u.Booking.BookingID.String()))
	}
}
