package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/payment"
	"github.com/iliyamo/ticket-booking/internal/queue"
)

type payEnv struct {
	*env
	gw       *payment.MockGateway
	payments *Payments
	res      *model.Reservation
}

func newPayEnv(t *testing.T) *payEnv {
	t.Helper()
	e := newEnv(t)
	gw := payment.NewMockGateway("test-secret")
	r, err := e.booking.CreateReservation(context.Background(), 7, e.fx.Show.ID, e.fx.SeatA.ID)
	require.NoError(t, err)
	return &payEnv{env: e, gw: gw, payments: NewPayments(e.store, gw, e.opts), res: r}
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	e := newPayEnv(t)

	order, err := e.payments.CreateOrder(ctx, 7, e.res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), order.AmountCents)
	assert.Equal(t, "inr", order.Currency)
	assert.Equal(t, payment.ReceiptFor(e.res.ID), order.Receipt)

	pm, err := e.store.GetPaymentByOrderRef(ctx, order.Ref)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, pm.Status)
	assert.Equal(t, uint64(7), pm.UserID)
	assert.Equal(t, "mock", pm.Method)
}

func TestCreateOrderRules(t *testing.T) {
	ctx := context.Background()
	e := newPayEnv(t)

	_, err := e.payments.CreateOrder(ctx, 8, e.res.ID)
	requireKind(t, err, ErrNotFound, MsgBookingNotFound)

	_, err = e.booking.CancelReservation(ctx, 7, e.res.ID)
	require.NoError(t, err)
	_, err = e.payments.CreateOrder(ctx, 7, e.res.ID)
	requireKind(t, err, ErrValidation, "booking is CANCELLED")
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()
	e := newPayEnv(t)
	order, err := e.payments.CreateOrder(ctx, 7, e.res.ID)
	require.NoError(t, err)

	txn := e.gw.NewTransactionRef()
	in := PaymentConfirmation{
		BookingID:      e.res.ID,
		OrderRef:       order.Ref,
		TransactionRef: txn,
		Signature:      e.gw.Sign(order.Ref, txn),
	}
	pm, err := e.payments.ConfirmPayment(ctx, 7, in)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, pm.Status)
	assert.Equal(t, txn, pm.TransactionRef)
	assert.Equal(t, in.Signature, pm.Signature)

	// repeat is a no-op
	again, err := e.payments.ConfirmPayment(ctx, 7, in)
	require.NoError(t, err)
	assert.Equal(t, pm.ID, again.ID)
	assert.Equal(t, []string{queue.ReservationConfirmed, queue.PaymentCompleted}, e.events.types())

	_, err = e.payments.CreateOrder(ctx, 7, e.res.ID)
	requireKind(t, err, ErrConflict, "booking already paid")

	list, err := e.payments.ListPayments(ctx, 7, e.res.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConfirmPaymentRejectsOtherUser(t *testing.T) {
	ctx := context.Background()
	e := newPayEnv(t)
	order, err := e.payments.CreateOrder(ctx, 7, e.res.ID)
	require.NoError(t, err)
	txn := e.gw.NewTransactionRef()
	in := PaymentConfirmation{OrderRef: order.Ref, TransactionRef: txn, Signature: e.gw.Sign(order.Ref, txn)}

	_, err = e.payments.ConfirmPayment(ctx, 8, in)
	requireKind(t, err, ErrForbidden, "")

	other, err := e.booking.CreateReservation(ctx, 7, e.fx.Show.ID, e.fx.SeatB.ID)
	require.NoError(t, err)
	in.BookingID = other.ID
	_, err = e.payments.ConfirmPayment(ctx, 7, in)
	requireKind(t, err, ErrForbidden, "")

	pm, err := e.store.GetPaymentByOrderRef(ctx, order.Ref)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, pm.Status)
}

func TestConfirmPaymentBadSignature(t *testing.T) {
	ctx := context.Background()
	e := newPayEnv(t)
	order, err := e.payments.CreateOrder(ctx, 7, e.res.ID)
	require.NoError(t, err)

	_, err = e.payments.ConfirmPayment(ctx, 7, PaymentConfirmation{
		OrderRef: order.Ref, TransactionRef: "pay_x", Signature: "00",
	})
	requireKind(t, err, ErrValidation, "invalid payment signature")

	_, err = e.payments.ConfirmPayment(ctx, 7, PaymentConfirmation{OrderRef: "order_missing"})
	requireKind(t, err, ErrNotFound, MsgPaymentNotFound)
}

func TestConfirmPaymentAfterPurge(t *testing.T) {
	ctx := context.Background()
	e := newPayEnv(t)
	order, err := e.payments.CreateOrder(ctx, 7, e.res.ID)
	require.NoError(t, err)
	require.NoError(t, e.booking.ForceCancel(ctx, e.res.ID))

	txn := e.gw.NewTransactionRef()
	_, err = e.payments.ConfirmPayment(ctx, 7, PaymentConfirmation{
		OrderRef: order.Ref, TransactionRef: txn, Signature: e.gw.Sign(order.Ref, txn),
	})
	requireKind(t, err, ErrNotFound, MsgBookingNotFound)
}

func webhookBody(t *testing.T, event, orderRef, txn string, userID, bookingID uint64) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"event":           event,
		"order_ref":       orderRef,
		"transaction_ref": txn,
		"user_id":         userID,
		"reservation_id":  bookingID,
	})
	require.NoError(t, err)
	return b
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	e := newPayEnv(t)
	order, err := e.payments.CreateOrder(ctx, 7, e.res.ID)
	require.NoError(t, err)

	body := webhookBody(t, "payment.captured", order.Ref, "pay_1", 7, e.res.ID)
	sig := e.gw.SignPayload(body)
	require.NoError(t, e.payments.HandleWebhook(ctx, body, sig))

	pm, err := e.store.GetPaymentByOrderRef(ctx, order.Ref)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, pm.Status)
	assert.Equal(t, "pay_1", pm.TransactionRef)
	assert.Equal(t, sig, pm.Signature)

	// a late failure does not undo a completed payment
	fail := webhookBody(t, "payment.failed", order.Ref, "pay_1", 7, e.res.ID)
	require.NoError(t, e.payments.HandleWebhook(ctx, fail, e.gw.SignPayload(fail)))
	pm, err = e.store.GetPaymentByOrderRef(ctx, order.Ref)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, pm.Status)
}

func TestHandleWebhookRejects(t *testing.T) {
	ctx := context.Background()
	e := newPayEnv(t)
	order, err := e.payments.CreateOrder(ctx, 7, e.res.ID)
	require.NoError(t, err)

	body := webhookBody(t, "payment.captured", order.Ref, "pay_1", 7, e.res.ID)
	requireKind(t, e.payments.HandleWebhook(ctx, body, "deadbeef"), ErrValidation, "invalid webhook signature")

	forged := webhookBody(t, "payment.captured", order.Ref, "pay_1", 8, e.res.ID)
	requireKind(t, e.payments.HandleWebhook(ctx, forged, e.gw.SignPayload(forged)), ErrForbidden, "")

	ignored := webhookBody(t, "order.paid", order.Ref, "", 7, e.res.ID)
	require.NoError(t, e.payments.HandleWebhook(ctx, ignored, e.gw.SignPayload(ignored)))

	failed := webhookBody(t, "payment.failed", order.Ref, "pay_2", 7, e.res.ID)
	require.NoError(t, e.payments.HandleWebhook(ctx, failed, e.gw.SignPayload(failed)))
	pm, err := e.store.GetPaymentByOrderRef(ctx, order.Ref)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, pm.Status)
}

func TestListPaymentsNotOwner(t *testing.T) {
	e := newPayEnv(t)
	_, err := e.payments.ListPayments(context.Background(), 8, e.res.ID)
	requireKind(t, err, ErrNotFound, MsgBookingNotFound)
}
