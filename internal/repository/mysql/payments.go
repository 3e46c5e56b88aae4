package mysql

import (
	"context"
	"database/sql"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// ---- Payments ----

const paymentColumns = `id, reservation_id, user_id, method, amount_cents, currency, order_ref,
                        transaction_ref, signature, status, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
	var (
		p     model.Payment
		resID sql.NullInt64
	)
	if err := row.Scan(&p.ID, &resID, &p.UserID, &p.Method, &p.AmountCents, &p.Currency, &p.OrderRef,
		&p.TransactionRef, &p.Signature, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ReservationID = fromNullID(resID)
	return &p, nil
}

func (r *queries) InsertPayment(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (reservation_id, user_id, method, amount_cents, currency, order_ref,
                                     transaction_ref, signature, status)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, q, nullID(p.ReservationID), p.UserID, p.Method, p.AmountCents, p.Currency,
		p.OrderRef, p.TransactionRef, p.Signature, p.Status)
	if err != nil {
		return mapErr(err, repository.ErrReservationNotFound)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return err
	}
	got, err := scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*p = *got
	return nil
}

func (r *queries) GetPaymentByOrderRef(ctx context.Context, orderRef string) (*model.Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_ref = ?`, orderRef))
	if err != nil {
		return nil, mapErr(err, repository.ErrPaymentNotFound)
	}
	return p, nil
}

func (r *queries) UpdatePayment(ctx context.Context, p *model.Payment) error {
	const q = `UPDATE payments SET status = ?, transaction_ref = ?, signature = ? WHERE id = ?`
	if _, err := r.q.ExecContext(ctx, q, p.Status, p.TransactionRef, p.Signature, p.ID); err != nil {
		return mapErr(err, nil)
	}
	got, err := scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, p.ID))
	if err != nil {
		return mapErr(err, repository.ErrPaymentNotFound)
	}
	*p = *got
	return nil
}

func (r *queries) ListPaymentsByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE reservation_id = ? ORDER BY id`, reservationID)
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
	var (
		res sql.Result
		err error
	)
	if a.CreatedAt.IsZero() {
		res, err = r.q.ExecContext(ctx, `INSERT INTO audit_logs (user_id, action, details) VALUES (?, ?, ?)`,
			nullID(a.UserID), a.Action, a.Details)
	} else {
		res, err = r.q.ExecContext(ctx, `INSERT INTO audit_logs (user_id, action, details, created_at) VALUES (?, ?, ?, ?)`,
			nullID(a.UserID), a.Action, a.Details, a.CreatedAt.UTC())
	}
	if err != nil {
		return err
	}
	if a.ID, err = lastInsertID(res); err != nil {
		return err
	}
	return r.q.QueryRowContext(ctx, `SELECT created_at FROM audit_logs WHERE id = ?`, a.ID).Scan(&a.CreatedAt)
}

func (r *queries) ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_id, action, COALESCE(details, ''), created_at FROM audit_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AuditLog, 0)
	for rows.Next() {
		var (
			a   model.AuditLog
			uid sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &uid, &a.Action, &a.Details, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID = fromNullID(uid)
		out = append(out, a)
	}
	return out, rows.Err()
}
