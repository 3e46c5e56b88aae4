package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// ---- Payments ----

const paymentColumns = `id, reservation_id, user_id, method, amount_cents, currency, order_ref,
                        transaction_ref, signature, status, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p          model.Payment
		id, userID int64
		resID      *int64
	)
	if err := row.Scan(&id, &resID, &userID, &p.Method, &p.AmountCents, &p.Currency, &p.OrderRef,
		&p.TransactionRef, &p.Signature, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID, p.UserID, p.ReservationID = uint64(id), uint64(userID), fromNullID(resID)
	return &p, nil
}

func (r *queries) InsertPayment(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (reservation_id, user_id, method, amount_cents, currency, order_ref,
                                     transaction_ref, signature, status)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               RETURNING ` + paymentColumns
	got, err := scanPayment(r.q.QueryRow(ctx, q, nullID(p.ReservationID), int64(p.UserID), p.Method, p.AmountCents,
		p.Currency, p.OrderRef, p.TransactionRef, p.Signature, p.Status))
	if err != nil {
		return mapErr(err, repository.ErrReservationNotFound)
	}
	*p = *got
	return nil
}

func (r *queries) GetPaymentByOrderRef(ctx context.Context, orderRef string) (*model.Payment, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_ref = $1`, orderRef))
	if err != nil {
		return nil, mapErr(err, repository.ErrPaymentNotFound)
	}
	return p, nil
}

func (r *queries) UpdatePayment(ctx context.Context, p *model.Payment) error {
	const q = `UPDATE payments SET status = $2, transaction_ref = $3, signature = $4, updated_at = now()
               WHERE id = $1 RETURNING ` + paymentColumns
	got, err := scanPayment(r.q.QueryRow(ctx, q, int64(p.ID), p.Status, p.TransactionRef, p.Signature))
	if err != nil {
		return mapErr(err, repository.ErrPaymentNotFound)
	}
	*p = *got
	return nil
}

func (r *queries) ListPaymentsByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE reservation_id = $1 ORDER BY id`, int64(reservationID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ---- Audit ----

func (r *queries) InsertAuditLog(ctx context.Context, a *model.AuditLog) error {
	const q = `INSERT INTO audit_logs (user_id, action, details, created_at)
               VALUES ($1, $2, $3, COALESCE($4, now()))
               RETURNING id, created_at`
	var (
		createdAt any
		id        int64
	)
	if !a.CreatedAt.IsZero() {
		createdAt = a.CreatedAt.UTC()
	}
	if err := r.q.QueryRow(ctx, q, nullID(a.UserID), a.Action, a.Details, createdAt).Scan(&id, &a.CreatedAt); err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

func (r *queries) ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, user_id, action, details, created_at FROM audit_logs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AuditLog, 0)
	for rows.Next() {
		var (
			a   model.AuditLog
			id  int64
			uid *int64
		)
		if err := rows.Scan(&id, &uid, &a.Action, &a.Details, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ID, a.UserID = uint64(id), fromNullID(uid)
		out = append(out, a)
	}
	return out, rows.Err()
}
