package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/service"
	"github.com/iliyamo/ticket-booking/internal/ticket"
)

// BookingHandler serves the reservation endpoints.
type BookingHandler struct {
	Booking *service.Booking
}

// NewBookingHandler panics on a nil service.
func NewBookingHandler(b *service.Booking) *BookingHandler {
	if b == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Booking: b}
}

type bookingRequest struct {
	ShowID uint64 `json:"show_id"`
	SeatID uint64 `json:"seat_id"`
}

type bookingResponse struct {
	ID        uint64 `json:"booking_id"`
	UserID    uint64 `json:"user_id"`
	ShowID    uint64 `json:"show_id"`
	SeatID    uint64 `json:"seat_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"booked_at"`
}

func toBookingResponse(r *model.Reservation) bookingResponse {
	return bookingResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		ShowID:    r.ShowID,
		SeatID:    r.SeatID,
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Create handles POST /v1/bookings.  It answers 201 with the confirmed
// booking, 409 when the seat is taken and 400 for a past show.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	var body bookingRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ShowID == 0 || body.SeatID == 0 {
		return badRequest(c, "show_id and seat_id are required")
	}
	r, err := h.Booking.CreateReservation(c.Request().Context(), uid, body.ShowID, body.SeatID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(r))
}

// List handles GET /v1/bookings and returns the caller's bookings.
func (h *BookingHandler) List(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	views, err := h.Booking.ListUserBookings(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": views})
}

// Availability handles GET /v1/bookings/availability/:showId/:seatId.
func (h *BookingHandler) Availability(c echo.Context) error {
	showID, ok := pathID(c, "showId")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	seatID, ok := pathID(c, "seatId")
	if !ok {
		return badRequest(c, "invalid seat id")
	}
	free, err := h.Booking.IsAvailable(c.Request().Context(), showID, seatID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"is_available": free})
}

// Cancel handles PUT /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	sum, err := h.Booking.CancelReservation(c.Request().Context(), uid, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// Ticket handles GET /v1/bookings/:id/ticket and streams a PDF.
func (h *BookingHandler) Ticket(c echo.Context) error {
	tk, ok, err := h.loadTicket(c)
	if !ok {
		return err
	}
	pdf, err := ticket.PDF(*tk)
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="ticket-`+strconv.FormatUint(tk.BookingID, 10)+`.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// TicketQR handles GET /v1/bookings/:id/ticket/qr and returns a PNG.  The
// optional size query parameter is clamped to 64..1024 pixels.
func (h *BookingHandler) TicketQR(c echo.Context) error {
	tk, ok, err := h.loadTicket(c)
	if !ok {
		return err
	}
	size := ticket.QRSize
	if s, err := strconv.Atoi(c.QueryParam("size")); err == nil {
		size = min(max(s, 64), 1024)
	}
	png, err := ticket.QRCode(*tk, size)
	if err != nil {
		return respondError(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// loadTicket loads the caller's ticket.  When ok is false the response has
// been written and err is what the handler must return.
func (h *BookingHandler) loadTicket(c echo.Context) (*ticket.Ticket, bool, error) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return nil, false, unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false, badRequest(c, "invalid booking id")
	}
	tk, err := h.Booking.Ticket(c.Request().Context(), uid, id)
	if err != nil {
		return nil, false, respondError(c, err)
	}
	return tk, true, nil
}

// ForceCancel handles POST /v1/shows/cancel-booking/:bookingId.  Admin only.
func (h *BookingHandler) ForceCancel(c echo.Context) error {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	if err := h.Booking.ForceCancel(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled"})
}

// ShowBookings handles GET /v1/admin/shows/:id/bookings.
func (h *BookingHandler) ShowBookings(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	views, err := h.Booking.ListShowBookings(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": views})
}
