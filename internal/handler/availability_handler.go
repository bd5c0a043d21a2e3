package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/application"
	"github.com/stayloft/service-booking/internal/domain/shared"
)

const dateLayout = "2006-01-02"

// AvailabilityHandler answers the pre-booking availability probe.
type AvailabilityHandler struct {
	service *application.BookingService
	logger  *zap.Logger
}

// NewAvailabilityHandler creates the availability endpoint handler.
func NewAvailabilityHandler(service *application.BookingService, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the availability endpoint. The route and parameter
// names are part of the public contract consumed by the storefront.
func (h *AvailabilityHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/check-availability", h.Check)
}

type availabilityQuery struct {
	HotelID  int64  `form:"hotelId" binding:"required"`
	CheckIn  string `form:"checkIn" binding:"required"`
	CheckOut string `form:"checkOut" binding:"required"`
}

// Check reports whether a hotel can be booked for a window. Bad input gets
// a 400. When the check itself fails the response is 500 with
// available=true so downstream UIs stay open rather than showing every
// hotel as sold out; the booking write path re-verifies under the lock.
func (h *AvailabilityHandler) Check(c *gin.Context) {
	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, shared.NewValidationError("hotelId, checkIn and checkOut are required"))
		return
	}

	checkIn, err := time.Parse(dateLayout, q.CheckIn)
	if err != nil {
		respondError(c, shared.NewValidationError("checkIn must be formatted as YYYY-MM-DD"))
		return
	}
	checkOut, err := time.Parse(dateLayout, q.CheckOut)
	if err != nil {
		respondError(c, shared.NewValidationError("checkOut must be formatted as YYYY-MM-DD"))
		return
	}

	result, err := h.service.CheckAvailability(c.Request.Context(), q.HotelID, checkIn, checkOut)
	if err != nil {
		if shared.IsKind(err, shared.KindValidation) {
			respondError(c, err)
			return
		}
		h.logger.Error("availability check failed, answering open",
			zap.Int64("hotel_id", q.HotelID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"available": true,
			"message":   "availability could not be verified, assuming available",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}
