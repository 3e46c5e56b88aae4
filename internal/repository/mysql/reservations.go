package mysql

import (
	"context"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

const reservationColumns = `id, user_id, show_id, seat_id, status, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var r model.Reservation
	if err := row.Scan(&r.ID, &r.UserID, &r.ShowID, &r.SeatID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertReservation relies on uq_reservations_active: a second confirmed row
// for the same (show, seat) fails with 1062, which maps to ErrConflict.
func (r *queries) InsertReservation(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, show_id, seat_id, status) VALUES (?, ?, ?, ?)`
	result, err := r.q.ExecContext(ctx, q, res.UserID, res.ShowID, res.SeatID, res.Status)
	if err != nil {
		return mapErr(err, repository.ErrShowNotFound)
	}
	id, err := lastInsertID(result)
	if err != nil {
		return err
	}
	got, err := r.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	*res = *got
	return nil
}

func (r *queries) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(r.q.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr(err, repository.ErrReservationNotFound)
	}
	return res, nil
}

func (r *queries) SetReservationStatus(ctx context.Context, id uint64, status string) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE reservations SET status = ? WHERE id = ?`, status, id); err != nil {
		return mapErr(err, nil)
	}
	// Zero affected rows also means "already in that status"; read back to
	// tell it apart from a missing row.
	_, err := r.GetReservation(ctx, id)
	return err
}

func (r *queries) DeleteReservation(ctx context.Context, id uint64) error {
	// payments.reservation_id is ON DELETE SET NULL.
	res, err := r.q.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return mapErr(err, nil)
	}
	return affected(res, repository.ErrReservationNotFound)
}

func (r *queries) HasConfirmedReservation(ctx context.Context, showID, seatID uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM reservations WHERE show_id = ? AND seat_id = ? AND status = 'CONFIRMED')`
	var ok bool
	if err := r.q.QueryRowContext(ctx, q, showID, seatID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *queries) ConfirmedSeatIDs(ctx context.Context, showID uint64) ([]uint64, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT seat_id FROM reservations WHERE show_id = ? AND status = 'CONFIRMED' ORDER BY seat_id`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *queries) ListReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return r.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY id DESC`, userID)
}

func (r *queries) ListReservationsByShow(ctx context.Context, showID uint64) ([]model.Reservation, error) {
	return r.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE show_id = ? ORDER BY id`, showID)
}

func (r *queries) listReservations(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
