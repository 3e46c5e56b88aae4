package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/payment"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/telemetry"
)

const msgPaymentOwner = "payment does not belong to this user"

// Payments opens gateway orders for bookings and records their outcome.
// Signatures are checked by the gateway; this type only stores them and
// enforces that a payment, its booking and the caller belong together.
type Payments struct {
	store   repository.Store
	gateway payment.Gateway
	opts    Options
}

// NewPayments returns a Payments using gw.
func NewPayments(store repository.Store, gw payment.Gateway, opts Options) *Payments {
	if store == nil || gw == nil {
		panic("nil dependency passed to NewPayments")
	}
	return &Payments{store: store, gateway: gw, opts: opts.withDefaults()}
}

// PaymentConfirmation is what a client reports after paying.
type PaymentConfirmation struct {
	BookingID      uint64 `json:"booking_id"`
	OrderRef       string `json:"order_id"`
	TransactionRef string `json:"payment_id"`
	Signature      string `json:"signature"`
}

// CreateOrder opens a gateway order for a confirmed booking owned by userID
// and records it as a pending payment.
func (p *Payments) CreateOrder(ctx context.Context, userID, bookingID uint64) (_ *payment.Order, err error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.create_order",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("booking.id", int64(bookingID)),
		attribute.String("payment.gateway", p.gateway.Name()),
	)
	defer func() { telemetry.End(span, err) }()

	r, err := ownedReservation(ctx, p.store, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if r.Status != model.ReservationConfirmed {
		return nil, validation("booking is %s", r.Status)
	}
	paid, err := p.store.ListPaymentsByReservation(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	for _, pm := range paid {
		if pm.Status == model.PaymentCompleted {
			return nil, conflict("booking already paid")
		}
	}
	show, err := p.store.GetShow(ctx, r.ShowID)
	if err != nil {
		return nil, translate(err, "load show")
	}

	order, err := p.gateway.CreateOrder(ctx, payment.OrderRequest{
		ReservationID: r.ID,
		UserID:        userID,
		AmountCents:   show.PriceCents,
		Currency:      p.opts.Currency,
		Receipt:       payment.ReceiptFor(r.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("create %s order: %w", p.gateway.Name(), err)
	}

	pm := &model.Payment{
		ReservationID: r.ID,
		UserID:        userID,
		Method:        p.gateway.Name(),
		AmountCents:   order.AmountCents,
		Currency:      order.Currency,
		OrderRef:      order.Ref,
		Status:        model.PaymentPending,
	}
	if err := p.store.InsertPayment(ctx, pm); err != nil {
		return nil, translate(err, "insert payment")
	}
	return order, nil
}

// ConfirmPayment records a client-reported payment after the gateway has
// accepted it.  Confirming the same transaction twice is a no-op.
func (p *Payments) ConfirmPayment(ctx context.Context, userID uint64, in PaymentConfirmation) (_ *model.Payment, err error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.confirm",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("booking.id", int64(in.BookingID)),
		attribute.String("payment.order_ref", in.OrderRef),
	)
	defer func() { telemetry.End(span, err) }()

	if in.OrderRef == "" {
		return nil, validation("order_id is required")
	}
	pm, err := p.store.GetPaymentByOrderRef(ctx, in.OrderRef)
	if err != nil {
		return nil, translate(err, "load payment")
	}
	if pm.UserID != userID || (in.BookingID != 0 && pm.ReservationID != in.BookingID) {
		return nil, forbidden(msgPaymentOwner)
	}
	r, err := p.reservationOf(ctx, p.store, pm)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, forbidden(msgPaymentOwner)
	}
	if pm.Status == model.PaymentCompleted {
		if pm.TransactionRef == in.TransactionRef {
			return pm, nil
		}
		return nil, conflict("payment already completed")
	}

	err = p.gateway.VerifyConfirmation(ctx, payment.Confirmation{
		OrderRef:       in.OrderRef,
		TransactionRef: in.TransactionRef,
		Signature:      in.Signature,
	})
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		return nil, validation("invalid payment signature")
	case errors.Is(err, payment.ErrNotSucceeded):
		return nil, validation("payment not completed")
	case err != nil:
		return nil, fmt.Errorf("verify %s payment: %w", p.gateway.Name(), err)
	}

	done, changed, err := p.complete(ctx, pm.OrderRef, in.TransactionRef, in.Signature)
	if err != nil {
		return nil, err
	}
	if changed {
		p.announce(ctx, done, r)
	}
	return done, nil
}

// HandleWebhook applies a gateway callback.  Callbacks the gateway marks as
// irrelevant are accepted and ignored.
func (p *Payments) HandleWebhook(ctx context.Context, payload []byte, signature string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.webhook",
		attribute.String("payment.gateway", p.gateway.Name()),
	)
	defer func() { telemetry.End(span, err) }()

	ev, err := p.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return validation("invalid webhook signature")
		}
		return validation("invalid webhook payload")
	}
	if ev == nil {
		return nil
	}
	span.SetAttributes(attribute.String("payment.order_ref", ev.OrderRef))

	pm, err := p.store.GetPaymentByOrderRef(ctx, ev.OrderRef)
	if err != nil {
		return translate(err, "load payment")
	}
	if ev.UserID != pm.UserID || (ev.ReservationID != 0 && ev.ReservationID != pm.ReservationID) {
		return forbidden(msgPaymentOwner)
	}
	r, err := p.reservationOf(ctx, p.store, pm)
	if err != nil {
		return err
	}
	if r.UserID != pm.UserID {
		return forbidden(msgPaymentOwner)
	}

	if !ev.Succeeded {
		return p.store.WithTx(ctx, func(tx repository.Repository) error {
			cur, err := tx.GetPaymentByOrderRef(ctx, ev.OrderRef)
			if err != nil {
				return translate(err, "load payment")
			}
			if cur.Status != model.PaymentPending {
				return nil
			}
			cur.Status = model.PaymentFailed
			cur.TransactionRef = ev.TransactionRef
			cur.Signature = signature
			return translate(tx.UpdatePayment(ctx, cur), "update payment")
		})
	}

	done, changed, err := p.complete(ctx, ev.OrderRef, ev.TransactionRef, signature)
	if err != nil {
		return err
	}
	if changed {
		p.announce(ctx, done, r)
	}
	return nil
}

// ListPayments returns the payments of a booking owned by userID.
func (p *Payments) ListPayments(ctx context.Context, userID, bookingID uint64) ([]model.Payment, error) {
	if _, err := ownedReservation(ctx, p.store, userID, bookingID); err != nil {
		return nil, err
	}
	pms, err := p.store.ListPaymentsByReservation(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return pms, nil
}

// complete marks a payment COMPLETED and stores the reference and signature
// verbatim.  changed is false when it was already completed.
func (p *Payments) complete(ctx context.Context, orderRef, txRef, signature string) (pm *model.Payment, changed bool, err error) {
	err = p.store.WithTx(ctx, func(tx repository.Repository) error {
		cur, err := tx.GetPaymentByOrderRef(ctx, orderRef)
		if err != nil {
			return translate(err, "load payment")
		}
		if cur.Status == model.PaymentCompleted {
			pm = cur
			return nil
		}
		cur.Status = model.PaymentCompleted
		cur.TransactionRef = txRef
		cur.Signature = signature
		if err := tx.UpdatePayment(ctx, cur); err != nil {
			return translate(err, "update payment")
		}
		pm, changed = cur, true
		return nil
	})
	return pm, changed, err
}

// reservationOf loads the booking a payment was made for.  A payment whose
// booking has been purged belongs to no booking.
func (p *Payments) reservationOf(ctx context.Context, repo repository.Repository, pm *model.Payment) (*model.Reservation, error) {
	if pm.ReservationID == 0 {
		return nil, notFound(MsgBookingNotFound)
	}
	r, err := repo.GetReservation(ctx, pm.ReservationID)
	if err != nil {
		return nil, translate(err, "load reservation")
	}
	return r, nil
}

func (p *Payments) announce(ctx context.Context, pm *model.Payment, r *model.Reservation) {
	p.opts.Log.WithContext(ctx).Info("payment completed",
		zap.String("order_ref", pm.OrderRef),
		zap.Uint64("reservation_id", r.ID),
		zap.String("method", pm.Method),
	)
	publish(ctx, p.opts, queue.ReservationEvent{
		Type:          queue.PaymentCompleted,
		ReservationID: r.ID,
		UserID:        pm.UserID,
		ShowID:        r.ShowID,
		SeatID:        r.SeatID,
		Status:        pm.Status,
		PaymentRef:    pm.TransactionRef,
	})
}
