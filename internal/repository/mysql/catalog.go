package mysql

import (
	"context"
	"strings"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// ---- Theaters ----

const theaterColumns = `id, name, location, total_seats, created_at, updated_at`

func scanTheater(row interface{ Scan(...any) error }) (*model.Theater, error) {
	var t model.Theater
	if err := row.Scan(&t.ID, &t.Name, &t.Location, &t.TotalSeats, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *queries) CreateTheater(ctx context.Context, t *model.Theater) error {
	const q = `INSERT INTO theaters (name, location, total_seats) VALUES (?, ?, ?)`
	res, err := r.q.ExecContext(ctx, q, t.Name, t.Location, t.TotalSeats)
	if err != nil {
		return mapErr(err, nil)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return err
	}
	got, err := r.GetTheater(ctx, id)
	if err != nil {
		return err
	}
	*t = *got
	return nil
}

func (r *queries) GetTheater(ctx context.Context, id uint64) (*model.Theater, error) {
	t, err := scanTheater(r.q.QueryRowContext(ctx, `SELECT `+theaterColumns+` FROM theaters WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr(err, repository.ErrTheaterNotFound)
	}
	return t, nil
}

func (r *queries) ListTheaters(ctx context.Context) ([]model.Theater, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+theaterColumns+` FROM theaters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Theater, 0)
	for rows.Next() {
		t, err := scanTheater(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *queries) UpdateTheater(ctx context.Context, t *model.Theater) error {
	const q = `UPDATE theaters SET name = ?, location = ?, total_seats = ? WHERE id = ?`
	if _, err := r.q.ExecContext(ctx, q, t.Name, t.Location, t.TotalSeats, t.ID); err != nil {
		return mapErr(err, nil)
	}
	// MySQL reports zero affected rows for an unchanged row, so existence is
	// checked by reading back.
	got, err := r.GetTheater(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = *got
	return nil
}

func (r *queries) DeleteTheater(ctx context.Context, id uint64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM theaters WHERE id = ?`, id)
	if err != nil {
		return mapErr(err, nil)
	}
	return affected(res, repository.ErrTheaterNotFound)
}

// ---- Shows ----

const showColumns = `id, theater_id, title, COALESCE(description, ''), starts_at, duration_minutes, price_cents, image_url, created_at, updated_at`

func scanShow(row interface{ Scan(...any) error }) (*model.Show, error) {
	var s model.Show
	if err := row.Scan(&s.ID, &s.TheaterID, &s.Title, &s.Description, &s.StartsAt,
		&s.DurationMinutes, &s.PriceCents, &s.ImageURL, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *queries) CreateShow(ctx context.Context, s *model.Show) error {
	const q = `INSERT INTO shows (theater_id, title, description, starts_at, duration_minutes, price_cents, image_url)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, q, s.TheaterID, s.Title, s.Description, s.StartsAt.UTC(),
		s.DurationMinutes, s.PriceCents, s.ImageURL)
	if err != nil {
		return mapErr(err, repository.ErrTheaterNotFound)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return err
	}
	got, err := r.GetShow(ctx, id)
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

func (r *queries) GetShow(ctx context.Context, id uint64) (*model.Show, error) {
	s, err := scanShow(r.q.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr(err, repository.ErrShowNotFound)
	}
	return s, nil
}

func (r *queries) ListShows(ctx context.Context, title string) ([]model.Show, error) {
	q := `SELECT ` + showColumns + ` FROM shows`
	var args []any
	if title = strings.TrimSpace(title); title != "" {
		q += ` WHERE LOWER(title) LIKE ?`
		args = append(args, "%"+escapeLike(strings.ToLower(title))+"%")
	}
	q += ` ORDER BY starts_at, id`
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Show, 0)
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *queries) UpdateShow(ctx context.Context, s *model.Show) error {
	const q = `UPDATE shows SET theater_id = ?, title = ?, description = ?, starts_at = ?,
                      duration_minutes = ?, price_cents = ?, image_url = ?
               WHERE id = ?`
	if _, err := r.q.ExecContext(ctx, q, s.TheaterID, s.Title, s.Description, s.StartsAt.UTC(),
		s.DurationMinutes, s.PriceCents, s.ImageURL, s.ID); err != nil {
		return mapErr(err, repository.ErrTheaterNotFound)
	}
	got, err := r.GetShow(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

func (r *queries) DeleteShow(ctx context.Context, id uint64) error {
	// Cancelled reservations go with the show (ON DELETE CASCADE); their
	// payments are detached by the payments foreign key.
	const q = `DELETE FROM shows
               WHERE id = ?
                 AND NOT EXISTS (SELECT 1 FROM reservations WHERE show_id = ? AND status = 'CONFIRMED')`
	res, err := r.q.ExecContext(ctx, q, id, id)
	if err != nil {
		return mapErr(err, nil)
	}
	if err := affected(res, repository.ErrConflict); err != nil {
		if _, gerr := r.GetShow(ctx, id); gerr != nil {
			return gerr
		}
		return err
	}
	return nil
}

// ---- Seats ----

const seatColumns = `id, theater_id, label, category, status, created_at, updated_at`

func scanSeat(row interface{ Scan(...any) error }) (*model.Seat, error) {
	var s model.Seat
	if err := row.Scan(&s.ID, &s.TheaterID, &s.Label, &s.Category, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *queries) CreateSeat(ctx context.Context, s *model.Seat) error {
	const q = `INSERT INTO seats (theater_id, label, category, status) VALUES (?, ?, ?, 'AVAILABLE')`
	res, err := r.q.ExecContext(ctx, q, s.TheaterID, s.Label, s.Category)
	if err != nil {
		return mapErr(err, repository.ErrTheaterNotFound)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return err
	}
	got, err := r.GetSeat(ctx, id)
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

func (r *queries) GetSeat(ctx context.Context, id uint64) (*model.Seat, error) {
	s, err := scanSeat(r.q.QueryRowContext(ctx, `SELECT `+seatColumns+` FROM seats WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr(err, repository.ErrSeatNotFound)
	}
	return s, nil
}

func (r *queries) ListSeats(ctx context.Context) ([]model.Seat, error) {
	return r.listSeats(ctx, `SELECT `+seatColumns+` FROM seats ORDER BY id`)
}

func (r *queries) ListSeatsByTheater(ctx context.Context, theaterID uint64) ([]model.Seat, error) {
	return r.listSeats(ctx, `SELECT `+seatColumns+` FROM seats WHERE theater_id = ? ORDER BY id`, theaterID)
}

func (r *queries) listSeats(ctx context.Context, q string, args ...any) ([]model.Seat, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *queries) UpdateSeat(ctx context.Context, s *model.Seat) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE seats SET label = ?, category = ? WHERE id = ?`,
		s.Label, s.Category, s.ID); err != nil {
		return mapErr(err, nil)
	}
	got, err := r.GetSeat(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

func (r *queries) DeleteSeat(ctx context.Context, id uint64) error {
	const q = `DELETE FROM seats
               WHERE id = ?
                 AND NOT EXISTS (SELECT 1 FROM reservations WHERE seat_id = ? AND status = 'CONFIRMED')`
	res, err := r.q.ExecContext(ctx, q, id, id)
	if err != nil {
		return mapErr(err, nil)
	}
	if err := affected(res, repository.ErrConflict); err != nil {
		if _, gerr := r.GetSeat(ctx, id); gerr != nil {
			return gerr
		}
		return err
	}
	return nil
}

func (r *queries) LockSeat(ctx context.Context, seatID uint64) error {
	var id uint64
	err := r.q.QueryRowContext(ctx, `SELECT id FROM seats WHERE id = ? FOR UPDATE`, seatID).Scan(&id)
	return mapErr(err, repository.ErrSeatNotFound)
}

func (r *queries) SyncSeatStatus(ctx context.Context, seatID uint64) (string, error) {
	const upd = `UPDATE seats
                 SET status = IF(EXISTS(SELECT 1 FROM reservations WHERE seat_id = ? AND status = 'CONFIRMED'),
                                 'BOOKED', 'AVAILABLE')
                 WHERE id = ?`
	if _, err := r.q.ExecContext(ctx, upd, seatID, seatID); err != nil {
		return "", err
	}
	var status string
	err := r.q.QueryRowContext(ctx, `SELECT status FROM seats WHERE id = ?`, seatID).Scan(&status)
	if err != nil {
		return "", mapErr(err, repository.ErrSeatNotFound)
	}
	return status, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
