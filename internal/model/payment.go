package model

import "time"

// Payment status values.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
)

// Payment records one attempt to pay for a reservation through a gateway.
// ReservationID is zero once the reservation has been purged by an
// administrator; the payment row itself is kept.
//
// Fields:
//  ID             – primary key identifier.
//  ReservationID  – reservation being paid for (0 when detached).
//  UserID         – user who initiated the payment.
//  Method         – gateway name (stripe, mock).
//  AmountCents    – amount in minor currency units.
//  Currency       – ISO currency code, lower case.
//  OrderRef       – opaque order reference returned by the gateway.
//  TransactionRef – external payment id reported on confirmation.
//  Signature      – gateway signature, stored verbatim.
//  Status         – PENDING, COMPLETED or FAILED.
type Payment struct {
	ID             uint64    // payments.id
	ReservationID  uint64    // payments.reservation_id (nullable)
	UserID         uint64    // payments.user_id
	Method         string    // payments.method
	AmountCents    int64     // payments.amount_cents
	Currency       string    // payments.currency
	OrderRef       string    // payments.order_ref
	TransactionRef string    // payments.transaction_ref
	Signature      string    // payments.signature
	Status         string    // payments.status
	CreatedAt      time.Time // payments.created_at
	UpdatedAt      time.Time // payments.updated_at
}
