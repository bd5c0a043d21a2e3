package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stayloft/service-booking/internal/domain/shared"
	"github.com/stayloft/service-booking/internal/live"
)

// LiveHandler streams booking updates over server-sent events.
type LiveHandler struct {
	hub *live.Hub
}

// NewLiveHandler creates the live-stream handler.
func NewLiveHandler(hub *live.Hub) *LiveHandler {
	return &LiveHandler{hub: hub}
}

// RegisterRoutes mounts the live endpoints.
func (h *LiveHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/live/bookings/:id", h.StreamBooking)
	r.GET("/admin/live", h.StreamAdmin)
}

// StreamBooking streams updates for one booking until the client leaves.
func (h *LiveHandler) StreamBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.NewValidationError("booking id must be a UUID"))
		return
	}

	sub := h.hub.SubscribeBooking(id.String())
	defer sub.Cancel()
	stream(c, sub)
}

// StreamAdmin streams every booking update.
func (h *LiveHandler) StreamAdmin(c *gin.Context) {
	sub := h.hub.SubscribeAdmin()
	defer sub.Cancel()
	stream(c, sub)
}

func stream(c *gin.Context, sub *live.Subscription) {
	c.Stream(func(w io.Writer) bool {
		select {
		case u, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(u.Kind, u)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
