// Package payment adapts external payment providers to the booking service.
// The service never inspects signatures itself; a Gateway verifies them with
// the provider's own rules.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/ticket-booking/internal/config"
)

var (
	// ErrInvalidSignature is returned when a confirmation or webhook fails
	// the provider's signature check.
	ErrInvalidSignature = errors.New("invalid payment signature")
	// ErrNotSucceeded is returned when the provider reports the payment as
	// not (yet) captured.
	ErrNotSucceeded = errors.New("payment not succeeded")
)

// Gateway is a payment provider.
type Gateway interface {
	// CreateOrder opens an order for req and returns the provider's opaque
	// reference to it.
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// VerifyConfirmation checks a client-reported payment.
	VerifyConfirmation(ctx context.Context, c Confirmation) error
	// ParseWebhook authenticates and decodes an asynchronous callback.  A nil
	// event with a nil error means the callback is valid but irrelevant.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
	// SignatureHeader names the HTTP header carrying webhook signatures.
	SignatureHeader() string
	// Name returns the gateway name stored as the payment method.
	Name() string
}

// OrderRequest describes the order to open.
type OrderRequest struct {
	ReservationID uint64
	UserID        uint64
	AmountCents   int64
	Currency      string
	Receipt       string
}

// Order is the provider's answer to CreateOrder.
type Order struct {
	Ref          string `json:"order_id"`
	AmountCents  int64  `json:"amount"`
	Currency     string `json:"currency"`
	Receipt      string `json:"receipt"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
}

// Confirmation is what the client reports after paying.
type Confirmation struct {
	OrderRef       string
	TransactionRef string
	Signature      string
}

// WebhookEvent is a decoded provider callback.
type WebhookEvent struct {
	Succeeded      bool
	OrderRef       string
	TransactionRef string
	UserID         uint64
	ReservationID  uint64
}

// Metadata keys attached to every order.
const (
	MetaUserID        = "user_id"
	MetaReservationID = "reservation_id"
	MetaReceipt       = "receipt"
)

// ReceiptFor returns the receipt string for a reservation.
func ReceiptFor(reservationID uint64) string {
	return fmt.Sprintf("order_%d", reservationID)
}

// New returns the gateway selected by cfg.Provider.
func New(cfg config.PaymentConfig) (Gateway, error) {
	switch cfg.Provider {
	case "stripe":
		return NewStripeGateway(StripeConfig{SecretKey: cfg.StripeSecretKey, WebhookSecret: cfg.StripeWebhookSecret})
	case "mock", "":
		return NewMockGateway(cfg.MockSecret), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.Provider)
	}
}
