package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/application"
	"github.com/stayloft/service-booking/internal/domain/booking"
	"github.com/stayloft/service-booking/internal/domain/shared"
)

// BookingHandler exposes booking CRUD and guest queries.
type BookingHandler struct {
	service *application.BookingService
	logger  *zap.Logger
}

// NewBookingHandler creates the booking endpoint handler.
func NewBookingHandler(service *application.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the booking endpoints.
func (h *BookingHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/bookings", h.Create)
	r.GET("/bookings", h.List)
	r.GET("/bookings/:id", h.Get)
	r.POST("/bookings/:id/cancel", h.Cancel)
}

type createBookingRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	HotelID  int64  `json:"hotel_id" binding:"required"`
	CheckIn  string `json:"check_in" binding:"required"`
	CheckOut string `json:"check_out" binding:"required"`
	Adults   int    `json:"adults" binding:"required,min=1"`
	Children int    `json:"children" binding:"min=0"`
	Currency string `json:"currency"`
	Contact  struct {
		FullName string `json:"full_name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Phone    string `json:"phone"`
	} `json:"contact" binding:"required"`
	Hotel struct {
		Name          string `json:"name" binding:"required"`
		Slug          string `json:"slug"`
		Address       string `json:"address"`
		PricePerNight int64  `json:"price_per_night" binding:"required,min=1"`
	} `json:"hotel" binding:"required"`
}

type bookingResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	HotelID       int64      `json:"hotel_id"`
	HotelName     string     `json:"hotel_name"`
	CheckIn       time.Time  `json:"check_in"`
	CheckOut      time.Time  `json:"check_out"`
	Nights        int        `json:"nights"`
	Adults        int        `json:"adults"`
	Children      int        `json:"children"`
	TotalAmount   int64      `json:"total_amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CancelNote    string     `json:"cancel_note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) bookingResponse {
	return bookingResponse{
		ID:            b.ID().String(),
		UserID:        b.UserID(),
		HotelID:       b.HotelID(),
		HotelName:     b.Hotel().Name,
		CheckIn:       b.Stay().CheckIn,
		CheckOut:      b.Stay().CheckOut,
		Nights:        b.Nights(),
		Adults:        b.Guests().Adults,
		Children:      b.Guests().Children,
		TotalAmount:   b.TotalAmount(),
		Currency:      b.Currency(),
		Status:        string(b.Status()),
		PaymentStatus: string(b.PaymentState().Status),
		ConfirmedAt:   b.ConfirmedAt(),
		CancelledAt:   b.CancelledAt(),
		CancelNote:    b.CancelNote(),
		CreatedAt:     b.CreatedAt(),
	}
}

// Create admits a new booking.
func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, shared.NewValidationError(err.Error()))
		return
	}

	checkIn, err := time.Parse(dateLayout, req.CheckIn)
	if err != nil {
		respondError(c, shared.NewValidationError("check_in must be formatted as YYYY-MM-DD"))
		return
	}
	checkOut, err := time.Parse(dateLayout, req.CheckOut)
	if err != nil {
		respondError(c, shared.NewValidationError("check_out must be formatted as YYYY-MM-DD"))
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), application.CreateBookingInput{
		UserID:   req.UserID,
		HotelID:  req.HotelID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Guests:   booking.Guests{Adults: req.Adults, Children: req.Children},
		Currency: req.Currency,
		Contact: booking.Contact{
			FullName: req.Contact.FullName,
			Email:    req.Contact.Email,
			Phone:    req.Contact.Phone,
		},
		Hotel: booking.HotelSnapshot{
			Name:          req.Hotel.Name,
			Slug:          req.Hotel.Slug,
			Address:       req.Hotel.Address,
			PricePerNight: req.Hotel.PricePerNight,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(b))
}

// Get retrieves one booking.
func (h *BookingHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.NewValidationError("booking id must be a UUID"))
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

type listQuery struct {
	Page  int    `form:"page,default=1"`
	Limit int    `form:"limit,default=20"`
	Email string `form:"email"`
}

// List pages over bookings, optionally filtered by guest email.
func (h *BookingHandler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, shared.NewValidationError(err.Error()))
		return
	}

	var (
		bookings []*booking.Booking
		total    int64
		err      error
	)
	if q.Email != "" {
		bookings, total, err = h.service.FindByEmail(c.Request.Context(), q.Email, q.Page, q.Limit)
	} else {
		bookings, total, err = h.service.ListBookings(c.Request.Context(), q.Page, q.Limit)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingResponse(b))
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel cancels a pending booking.
func (h *BookingHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.NewValidationError("booking id must be a UUID"))
		return
	}

	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	b, err := h.service.CancelBooking(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}
