package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// ---- Theaters ----

const theaterColumns = `id, name, location, total_seats, created_at, updated_at`

func scanTheater(row pgx.Row) (*model.Theater, error) {
	var (
		t          model.Theater
		id         int64
		totalSeats int32
	)
	if err := row.Scan(&id, &t.Name, &t.Location, &totalSeats, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ID, t.TotalSeats = uint64(id), uint32(totalSeats)
	return &t, nil
}

func (r *queries) CreateTheater(ctx context.Context, t *model.Theater) error {
	const q = `INSERT INTO theaters (name, location, total_seats) VALUES ($1, $2, $3) RETURNING ` + theaterColumns
	got, err := scanTheater(r.q.QueryRow(ctx, q, t.Name, t.Location, int32(t.TotalSeats)))
	if err != nil {
		return mapErr(err, nil)
	}
	*t = *got
	return nil
}

func (r *queries) GetTheater(ctx context.Context, id uint64) (*model.Theater, error) {
	t, err := scanTheater(r.q.QueryRow(ctx, `SELECT `+theaterColumns+` FROM theaters WHERE id = $1`, int64(id)))
	if err != nil {
		return nil, mapErr(err, repository.ErrTheaterNotFound)
	}
	return t, nil
}

func (r *queries) ListTheaters(ctx context.Context) ([]model.Theater, error) {
	rows, err := r.q.Query(ctx, `SELECT `+theaterColumns+` FROM theaters ORDER BY id`)
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
	const q = `UPDATE theaters SET name = $2, location = $3, total_seats = $4, updated_at = now()
               WHERE id = $1 RETURNING ` + theaterColumns
	got, err := scanTheater(r.q.QueryRow(ctx, q, int64(t.ID), t.Name, t.Location, int32(t.TotalSeats)))
	if err != nil {
		return mapErr(err, repository.ErrTheaterNotFound)
	}
	*t = *got
	return nil
}

func (r *queries) DeleteTheater(ctx context.Context, id uint64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM theaters WHERE id = $1`, int64(id))
	if err != nil {
		return mapErr(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrTheaterNotFound
	}
	return nil
}

// ---- Shows ----

const showColumns = `id, theater_id, title, description, starts_at, duration_minutes, price_cents, image_url, created_at, updated_at`

func scanShow(row pgx.Row) (*model.Show, error) {
	var (
		s             model.Show
		id, theaterID int64
		duration      int32
	)
	if err := row.Scan(&id, &theaterID, &s.Title, &s.Description, &s.StartsAt,
		&duration, &s.PriceCents, &s.ImageURL, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.ID, s.TheaterID, s.DurationMinutes = uint64(id), uint64(theaterID), uint32(duration)
	s.StartsAt = s.StartsAt.UTC()
	return &s, nil
}

func (r *queries) CreateShow(ctx context.Context, s *model.Show) error {
	const q = `INSERT INTO shows (theater_id, title, description, starts_at, duration_minutes, price_cents, image_url)
               VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING ` + showColumns
	got, err := scanShow(r.q.QueryRow(ctx, q, int64(s.TheaterID), s.Title, s.Description, s.StartsAt.UTC(),
		int32(s.DurationMinutes), s.PriceCents, s.ImageURL))
	if err != nil {
		return mapErr(err, repository.ErrTheaterNotFound)
	}
	*s = *got
	return nil
}

func (r *queries) GetShow(ctx context.Context, id uint64) (*model.Show, error) {
	s, err := scanShow(r.q.QueryRow(ctx, `SELECT `+showColumns+` FROM shows WHERE id = $1`, int64(id)))
	if err != nil {
		return nil, mapErr(err, repository.ErrShowNotFound)
	}
	return s, nil
}

func (r *queries) ListShows(ctx context.Context, title string) ([]model.Show, error) {
	q := `SELECT ` + showColumns + ` FROM shows`
	var args []any
	if title = strings.TrimSpace(title); title != "" {
		q += ` WHERE title ILIKE $1`
		args = append(args, "%"+escapeLike(title)+"%")
	}
	q += ` ORDER BY starts_at, id`
	rows, err := r.q.Query(ctx, q, args...)
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
	const q = `UPDATE shows SET theater_id = $2, title = $3, description = $4, starts_at = $5,
                      duration_minutes = $6, price_cents = $7, image_url = $8, updated_at = now()
               WHERE id = $1 RETURNING ` + showColumns
	got, err := scanShow(r.q.QueryRow(ctx, q, int64(s.ID), int64(s.TheaterID), s.Title, s.Description,
		s.StartsAt.UTC(), int32(s.DurationMinutes), s.PriceCents, s.ImageURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrShowNotFound
		}
		return mapErr(err, repository.ErrTheaterNotFound)
	}
	*s = *got
	return nil
}

func (r *queries) DeleteShow(ctx context.Context, id uint64) error {
	const q = `DELETE FROM shows
               WHERE id = $1
                 AND NOT EXISTS (SELECT 1 FROM reservations WHERE show_id = $1 AND status = 'CONFIRMED')`
	tag, err := r.q.Exec(ctx, q, int64(id))
	if err != nil {
		return mapErr(err, nil)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetShow(ctx, id); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}

// ---- Seats ----

const seatColumns = `id, theater_id, label, category, status, created_at, updated_at`

func scanSeat(row pgx.Row) (*model.Seat, error) {
	var (
		s             model.Seat
		id, theaterID int64
	)
	if err := row.Scan(&id, &theaterID, &s.Label, &s.Category, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.ID, s.TheaterID = uint64(id), uint64(theaterID)
	return &s, nil
}

func (r *queries) CreateSeat(ctx context.Context, s *model.Seat) error {
	const q = `INSERT INTO seats (theater_id, label, category, status) VALUES ($1, $2, $3, 'AVAILABLE')
               RETURNING ` + seatColumns
	got, err := scanSeat(r.q.QueryRow(ctx, q, int64(s.TheaterID), s.Label, s.Category))
	if err != nil {
		return mapErr(err, repository.ErrTheaterNotFound)
	}
	*s = *got
	return nil
}

func (r *queries) GetSeat(ctx context.Context, id uint64) (*model.Seat, error) {
	s, err := scanSeat(r.q.QueryRow(ctx, `SELECT `+seatColumns+` FROM seats WHERE id = $1`, int64(id)))
	if err != nil {
		return nil, mapErr(err, repository.ErrSeatNotFound)
	}
	return s, nil
}

func (r *queries) ListSeats(ctx context.Context) ([]model.Seat, error) {
	return r.listSeats(ctx, `SELECT `+seatColumns+` FROM seats ORDER BY id`)
}

func (r *queries) ListSeatsByTheater(ctx context.Context, theaterID uint64) ([]model.Seat, error) {
	return r.listSeats(ctx, `SELECT `+seatColumns+` FROM seats WHERE theater_id = $1 ORDER BY id`, int64(theaterID))
}

func (r *queries) listSeats(ctx context.Context, q string, args ...any) ([]model.Seat, error) {
	rows, err := r.q.Query(ctx, q, args...)
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
	const q = `UPDATE seats SET label = $2, category = $3, updated_at = now() WHERE id = $1 RETURNING ` + seatColumns
	got, err := scanSeat(r.q.QueryRow(ctx, q, int64(s.ID), s.Label, s.Category))
	if err != nil {
		return mapErr(err, repository.ErrSeatNotFound)
	}
	*s = *got
	return nil
}

func (r *queries) DeleteSeat(ctx context.Context, id uint64) error {
	const q = `DELETE FROM seats
               WHERE id = $1
                 AND NOT EXISTS (SELECT 1 FROM reservations WHERE seat_id = $1 AND status = 'CONFIRMED')`
	tag, err := r.q.Exec(ctx, q, int64(id))
	if err != nil {
		return mapErr(err, nil)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetSeat(ctx, id); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}

func (r *queries) LockSeat(ctx context.Context, seatID uint64) error {
	var id int64
	err := r.q.QueryRow(ctx, `SELECT id FROM seats WHERE id = $1 FOR UPDATE`, int64(seatID)).Scan(&id)
	return mapErr(err, repository.ErrSeatNotFound)
}

func (r *queries) SyncSeatStatus(ctx context.Context, seatID uint64) (string, error) {
	const q = `UPDATE seats
               SET status = CASE WHEN EXISTS (SELECT 1 FROM reservations WHERE seat_id = $1 AND status = 'CONFIRMED')
                                 THEN 'BOOKED' ELSE 'AVAILABLE' END,
                   updated_at = now()
               WHERE id = $1
               RETURNING status`
	var status string
	if err := r.q.QueryRow(ctx, q, int64(seatID)).Scan(&status); err != nil {
		return "", mapErr(err, repository.ErrSeatNotFound)
	}
	return status, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
