package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

const reservationColumns = `id, user_id, show_id, seat_id, status, created_at, updated_at`

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var (
		r                          model.Reservation
		id, userID, showID, seatID int64
	)
	if err := row.Scan(&id, &userID, &showID, &seatID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID, r.UserID, r.ShowID, r.SeatID = uint64(id), uint64(userID), uint64(showID), uint64(seatID)
	return &r, nil
}

// InsertReservation relies on uq_reservations_active: a second confirmed row
// for the same (show, seat) fails with 23505, which maps to ErrConflict.
func (r *queries) InsertReservation(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, show_id, seat_id, status) VALUES ($1, $2, $3, $4)
               RETURNING ` + reservationColumns
	got, err := scanReservation(r.q.QueryRow(ctx, q, int64(res.UserID), int64(res.ShowID), int64(res.SeatID), res.Status))
	if err != nil {
		return mapErr(err, repository.ErrShowNotFound)
	}
	*res = *got
	return nil
}

func (r *queries) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(r.q.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, int64(id)))
	if err != nil {
		return nil, mapErr(err, repository.ErrReservationNotFound)
	}
	return res, nil
}

func (r *queries) SetReservationStatus(ctx context.Context, id uint64, status string) error {
	tag, err := r.q.Exec(ctx, `UPDATE reservations SET status = $2, updated_at = now() WHERE id = $1`, int64(id), status)
	if err != nil {
		return mapErr(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrReservationNotFound
	}
	return nil
}

func (r *queries) DeleteReservation(ctx context.Context, id uint64) error {
	// payments.reservation_id is ON DELETE SET NULL.
	tag, err := r.q.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, int64(id))
	if err != nil {
		return mapErr(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrReservationNotFound
	}
	return nil
}

func (r *queries) HasConfirmedReservation(ctx context.Context, showID, seatID uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM reservations WHERE show_id = $1 AND seat_id = $2 AND status = 'CONFIRMED')`
	var ok bool
	if err := r.q.QueryRow(ctx, q, int64(showID), int64(seatID)).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *queries) ConfirmedSeatIDs(ctx context.Context, showID uint64) ([]uint64, error) {
	rows, err := r.q.Query(ctx,
		`SELECT seat_id FROM reservations WHERE show_id = $1 AND status = 'CONFIRMED' ORDER BY seat_id`, int64(showID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]uint64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, uint64(id))
	}
	return out, rows.Err()
}

func (r *queries) ListReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return r.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = $1 ORDER BY id DESC`, int64(userID))
}

func (r *queries) ListReservationsByShow(ctx context.Context, showID uint64) ([]model.Reservation, error) {
	return r.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE show_id = $1 ORDER BY id`, int64(showID))
}

func (r *queries) listReservations(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.q.Query(ctx, q, args...)
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
