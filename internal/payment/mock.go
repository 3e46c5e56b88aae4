package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MockGateway is an offline gateway for development and tests.  Orders are
// accepted immediately; confirmations are signed with HMAC-SHA256 over
// "<order_ref>|<transaction_ref>" the way hosted checkout providers do.
type MockGateway struct {
	secret []byte
}

// NewMockGateway returns a MockGateway keyed by secret.
func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{secret: []byte(secret)}
}

// CreateOrder returns a fresh order reference.
func (g *MockGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("mock: amount must be positive")
	}
	return &Order{
		Ref:         "order_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Status:      "created",
	}, nil
}

// Sign returns the signature a client must present for the pair.
func (g *MockGateway) Sign(orderRef, transactionRef string) string {
	return g.mac([]byte(orderRef + "|" + transactionRef))
}

// NewTransactionRef returns a reference shaped like a provider payment id.
func (g *MockGateway) NewTransactionRef() string {
	return "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// VerifyConfirmation checks the HMAC signature.
func (g *MockGateway) VerifyConfirmation(_ context.Context, c Confirmation) error {
	if c.OrderRef == "" || c.TransactionRef == "" || !g.valid([]byte(c.OrderRef+"|"+c.TransactionRef), c.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// mockWebhook is the JSON body the mock gateway posts.
type mockWebhook struct {
	Event          string `json:"event"`
	OrderRef       string `json:"order_ref"`
	TransactionRef string `json:"transaction_ref"`
	UserID         uint64 `json:"user_id"`
	ReservationID  uint64 `json:"reservation_id"`
}

// ParseWebhook checks the HMAC of the raw payload and decodes it.
func (g *MockGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if !g.valid(payload, signature) {
		return nil, ErrInvalidSignature
	}
	var body mockWebhook
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("mock: parse webhook: %w", err)
	}
	var succeeded bool
	switch body.Event {
	case "payment.captured":
		succeeded = true
	case "payment.failed":
	default:
		return nil, nil
	}
	return &WebhookEvent{
		Succeeded:      succeeded,
		OrderRef:       body.OrderRef,
		TransactionRef: body.TransactionRef,
		UserID:         body.UserID,
		ReservationID:  body.ReservationID,
	}, nil
}

// SignPayload returns the webhook signature for payload.
func (g *MockGateway) SignPayload(payload []byte) string { return g.mac(payload) }

// SignatureHeader returns "X-Mock-Signature".
func (g *MockGateway) SignatureHeader() string { return "X-Mock-Signature" }

// Name returns the gateway name.
func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) mac(msg []byte) string {
	m := hmac.New(sha256.New, g.secret)
	m.Write(msg)
	return hex.EncodeToString(m.Sum(nil))
}

func (g *MockGateway) valid(msg []byte, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	m := hmac.New(sha256.New, g.secret)
	m.Write(msg)
	return hmac.Equal(m.Sum(nil), want)
}
