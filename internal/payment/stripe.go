package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds configuration for the Stripe gateway.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// StripeGateway implements Gateway with PaymentIntents.  The order reference
// is the PaymentIntent id.
type StripeGateway struct {
	webhookSecret string
}

// NewStripeGateway creates a Stripe gateway.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	// Set Stripe API key globally
	stripe.Key = cfg.SecretKey
	return &StripeGateway{webhookSecret: cfg.WebhookSecret}, nil
}

// CreateOrder creates a PaymentIntent for the amount in minor units.
func (g *StripeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(req.Receipt),
		Metadata: map[string]string{
			MetaReceipt:       req.Receipt,
			MetaUserID:        strconv.FormatUint(req.UserID, 10),
			MetaReservationID: strconv.FormatUint(req.ReservationID, 10),
		},
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return &Order{
		Ref:          pi.ID,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Receipt:      req.Receipt,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

// VerifyConfirmation fetches the PaymentIntent and requires it to have
// succeeded.  Stripe confirmations carry no client signature; the transaction
// reference must name the intent or its latest charge.
func (g *StripeGateway) VerifyConfirmation(ctx context.Context, c Confirmation) error {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(c.OrderRef, params)
	if err != nil {
		return fmt.Errorf("stripe: get payment intent: %w", err)
	}
	if c.TransactionRef != "" && c.TransactionRef != pi.ID &&
		(pi.LatestCharge == nil || pi.LatestCharge.ID != c.TransactionRef) {
		return ErrInvalidSignature
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return ErrNotSucceeded
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes
// payment_intent.succeeded and payment_intent.payment_failed events.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var succeeded bool
	switch event.Type {
	case "payment_intent.succeeded":
		succeeded = true
	case "payment_intent.payment_failed":
	default:
		return nil, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("stripe: parse %s: %w", event.Type, err)
	}
	ev := &WebhookEvent{Succeeded: succeeded, OrderRef: pi.ID, TransactionRef: pi.ID}
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		ev.TransactionRef = pi.LatestCharge.ID
	}
	ev.UserID, _ = strconv.ParseUint(pi.Metadata[MetaUserID], 10, 64)
	ev.ReservationID, _ = strconv.ParseUint(pi.Metadata[MetaReservationID], 10, 64)
	return ev, nil
}

// SignatureHeader returns "Stripe-Signature".
func (g *StripeGateway) SignatureHeader() string { return "Stripe-Signature" }

// Name returns the gateway name.
func (g *StripeGateway) Name() string { return "stripe" }
