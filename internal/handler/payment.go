package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/service"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 64 << 10

// PaymentHandler exposes order creation, client confirmation and the
// gateway webhook.
type PaymentHandler struct {
	Payments        *service.Payments
	SignatureHeader string
}

func NewPaymentHandler(p *service.Payments, signatureHeader string) *PaymentHandler {
	if p == nil {
		panic("nil payments passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: p, SignatureHeader: signatureHeader}
}

// PaymentResponse is a payment as returned by the API.  The stored
// signature is never echoed back.
type PaymentResponse struct {
	ID             uint64 `json:"id"`
	BookingID      uint64 `json:"booking_id,omitempty"`
	Method         string `json:"method"`
	AmountCents    int64  `json:"amount"`
	Currency       string `json:"currency"`
	OrderRef       string `json:"order_id"`
	TransactionRef string `json:"payment_id,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

func toPayment(p model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		BookingID:      p.ReservationID,
		Method:         p.Method,
		AmountCents:    p.AmountCents,
		Currency:       p.Currency,
		OrderRef:       p.OrderRef,
		TransactionRef: p.TransactionRef,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateOrder handles POST /v1/payments/create-order.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		BookingID uint64 `json:"booking_id"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.BookingID == 0 {
		return badRequest(c, "booking_id is required")
	}
	order, err := h.Payments.CreateOrder(c.Request().Context(), uid, body.BookingID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

// Verify handles POST /v1/payments/verify.
func (h *PaymentHandler) Verify(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	var in service.PaymentConfirmation
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	pm, err := h.Payments.ConfirmPayment(c.Request().Context(), uid, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "payment verified", "payment": toPayment(*pm)})
}

// Webhook handles POST /v1/payments/webhook.  It is authenticated by the
// gateway signature, not by a bearer token.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "invalid webhook payload")
	}
	sig := c.Request().Header.Get(h.SignatureHeader)
	if err := h.Payments.HandleWebhook(c.Request().Context(), payload, sig); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// List handles GET /v1/bookings/:id/payments.
func (h *PaymentHandler) List(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	pms, err := h.Payments.ListPayments(c.Request().Context(), uid, id)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]PaymentResponse, 0, len(pms))
	for _, p := range pms {
		out = append(out, toPayment(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
