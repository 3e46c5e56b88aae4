package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// Catalog serves theaters, shows and seats and their administration.
type Catalog struct {
	store repository.Store
	opts  Options
	shows singleflight.Group
}

// NewCatalog returns a Catalog over store.
func NewCatalog(store repository.Store, opts Options) *Catalog {
	if store == nil {
		panic("nil store passed to NewCatalog")
	}
	return &Catalog{store: store, opts: opts.withDefaults()}
}

// TheaterInput is the writable part of a theater.
type TheaterInput struct {
	Name       string `json:"name"`
	Location   string `json:"location"`
	TotalSeats uint32 `json:"total_seats"`
}

// ShowInput is the writable part of a show.
type ShowInput struct {
	TheaterID       uint64    `json:"theater_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartsAt        time.Time `json:"-"`
	DurationMinutes uint32    `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
	ImageURL        string    `json:"image_url"`
}

// SeatInput is the writable part of a seat.  Status is not writable.
type SeatInput struct {
	TheaterID uint64 `json:"theater_id"`
	Label     string `json:"label"`
	Category  string `json:"category"`
}

// ---- Theaters ----

func (c *Catalog) ListTheaters(ctx context.Context) ([]model.Theater, error) {
	ts, err := c.store.ListTheaters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list theaters: %w", err)
	}
	return ts, nil
}

func (c *Catalog) GetTheater(ctx context.Context, id uint64) (*model.Theater, error) {
	t, err := c.store.GetTheater(ctx, id)
	if err != nil {
		return nil, translate(err, "load theater")
	}
	return t, nil
}

func (c *Catalog) CreateTheater(ctx context.Context, in TheaterInput) (*model.Theater, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t := &model.Theater{Name: strings.TrimSpace(in.Name), Location: strings.TrimSpace(in.Location), TotalSeats: in.TotalSeats}
	if err := c.store.CreateTheater(ctx, t); err != nil {
		return nil, translate(err, "create theater")
	}
	return t, nil
}

func (c *Catalog) UpdateTheater(ctx context.Context, id uint64, in TheaterInput) (*model.Theater, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t := &model.Theater{ID: id, Name: strings.TrimSpace(in.Name), Location: strings.TrimSpace(in.Location), TotalSeats: in.TotalSeats}
	if err := c.store.UpdateTheater(ctx, t); err != nil {
		return nil, translate(err, "update theater")
	}
	return t, nil
}

// DeleteTheater fails with a conflict while shows or seats reference it.
func (c *Catalog) DeleteTheater(ctx context.Context, id uint64) error {
	err := c.store.DeleteTheater(ctx, id)
	if errors.Is(err, repository.ErrConflict) {
		return conflict("theater still has shows or seats")
	}
	return translate(err, "delete theater")
}

func (in TheaterInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validation("name is required")
	}
	return nil
}

// ---- Shows ----

// ListShows returns shows ordered by start time, optionally filtered by a
// case-insensitive title substring.
func (c *Catalog) ListShows(ctx context.Context, title string) ([]model.Show, error) {
	shows, err := c.store.ListShows(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	return shows, nil
}

// GetShow loads a show.  Concurrent lookups of the same id share one store
// read.
func (c *Catalog) GetShow(ctx context.Context, id uint64) (*model.Show, error) {
	v, err, _ := c.shows.Do(strconv.FormatUint(id, 10), func() (any, error) {
		return c.store.GetShow(ctx, id)
	})
	if err != nil {
		return nil, translate(err, "load show")
	}
	s := *v.(*model.Show)
	return &s, nil
}

func (c *Catalog) CreateShow(ctx context.Context, in ShowInput) (*model.Show, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	s := in.show()
	if err := c.store.CreateShow(ctx, s); err != nil {
		return nil, translate(err, "create show")
	}
	return s, nil
}

func (c *Catalog) UpdateShow(ctx context.Context, id uint64, in ShowInput) (*model.Show, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	s := in.show()
	s.ID = id
	if err := c.store.UpdateShow(ctx, s); err != nil {
		return nil, translate(err, "update show")
	}
	c.shows.Forget(strconv.FormatUint(id, 10))
	return s, nil
}

// DeleteShow removes a show with no confirmed reservations.  Its cancelled
// reservations are removed with it.
func (c *Catalog) DeleteShow(ctx context.Context, id uint64) error {
	err := c.store.DeleteShow(ctx, id)
	if errors.Is(err, repository.ErrConflict) {
		return conflict("show has confirmed bookings")
	}
	c.shows.Forget(strconv.FormatUint(id, 10))
	return translate(err, "delete show")
}

func (in ShowInput) validate() error {
	switch {
	case in.TheaterID == 0:
		return validation("theater_id is required")
	case strings.TrimSpace(in.Title) == "":
		return validation("title is required")
	case in.StartsAt.IsZero():
		return validation("starts_at is required")
	case in.DurationMinutes == 0:
		return validation("duration_minutes must be positive")
	case in.PriceCents <= 0:
		return validation("price_cents must be positive")
	}
	return nil
}

func (in ShowInput) show() *model.Show {
	return &model.Show{
		TheaterID:       in.TheaterID,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		StartsAt:        in.StartsAt.UTC(),
		DurationMinutes: in.DurationMinutes,
		PriceCents:      in.PriceCents,
		ImageURL:        in.ImageURL,
	}
}

// ---- Seats ----

func (c *Catalog) ListSeats(ctx context.Context) ([]model.Seat, error) {
	seats, err := c.store.ListSeats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	return seats, nil
}

func (c *Catalog) GetSeat(ctx context.Context, id uint64) (*model.Seat, error) {
	s, err := c.store.GetSeat(ctx, id)
	if err != nil {
		return nil, translate(err, "load seat")
	}
	return s, nil
}

func (c *Catalog) SeatsByTheater(ctx context.Context, theaterID uint64) ([]model.Seat, error) {
	if _, err := c.store.GetTheater(ctx, theaterID); err != nil {
		return nil, translate(err, "load theater")
	}
	seats, err := c.store.ListSeatsByTheater(ctx, theaterID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	return seats, nil
}

// CreateSeat adds an AVAILABLE seat.  A theater with TotalSeats set accepts
// no more seats than that.
func (c *Catalog) CreateSeat(ctx context.Context, in SeatInput) (*model.Seat, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.TheaterID == 0 {
		return nil, validation("theater_id is required")
	}
	s := &model.Seat{TheaterID: in.TheaterID, Label: strings.TrimSpace(in.Label), Category: normalizeCategory(in.Category)}
	err := c.store.WithTx(ctx, func(tx repository.Repository) error {
		th, err := tx.GetTheater(ctx, in.TheaterID)
		if err != nil {
			return translate(err, "load theater")
		}
		if th.TotalSeats > 0 {
			seats, err := tx.ListSeatsByTheater(ctx, th.ID)
			if err != nil {
				return fmt.Errorf("list seats: %w", err)
			}
			if len(seats) >= int(th.TotalSeats) {
				return validation("theater already has %d seats", th.TotalSeats)
			}
		}
		if err := tx.CreateSeat(ctx, s); err != nil {
			return translate(err, "create seat")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateSeat changes a seat's label and category.
func (c *Catalog) UpdateSeat(ctx context.Context, id uint64, in SeatInput) (*model.Seat, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	s := &model.Seat{ID: id, Label: strings.TrimSpace(in.Label), Category: normalizeCategory(in.Category)}
	if err := c.store.UpdateSeat(ctx, s); err != nil {
		return nil, translate(err, "update seat")
	}
	return s, nil
}

func (c *Catalog) DeleteSeat(ctx context.Context, id uint64) error {
	err := c.store.DeleteSeat(ctx, id)
	if errors.Is(err, repository.ErrConflict) {
		return conflict("seat has confirmed bookings")
	}
	return translate(err, "delete seat")
}

func (in SeatInput) validate() error {
	if strings.TrimSpace(in.Label) == "" {
		return validation("label is required")
	}
	return nil
}

func normalizeCategory(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "STANDARD"
	}
	return s
}
