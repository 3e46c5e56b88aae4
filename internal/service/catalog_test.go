package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/model"
)

func TestCatalogShows(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := NewCatalog(e.store, e.opts)

	in := ShowInput{
		TheaterID:       e.fx.Theater.ID,
		Title:           "  Day Break ",
		StartsAt:        time.Now().Add(48 * time.Hour),
		DurationMinutes: 95,
		PriceCents:      18000,
	}
	s, err := c.CreateShow(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Day Break", s.Title)
	assert.Equal(t, time.UTC, s.StartsAt.Location())

	found, err := c.ListShows(ctx, "break")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, s.ID, found[0].ID)

	in.Title = "Day Break (IMAX)"
	updated, err := c.UpdateShow(ctx, s.ID, in)
	require.NoError(t, err)
	got, err := c.GetShow(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Title, got.Title)

	require.NoError(t, c.DeleteShow(ctx, s.ID))
	_, err = c.GetShow(ctx, s.ID)
	requireKind(t, err, ErrNotFound, MsgShowNotFound)
}

func TestCatalogShowValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := NewCatalog(e.store, e.opts)
	good := ShowInput{TheaterID: e.fx.Theater.ID, Title: "X", StartsAt: time.Now(), DurationMinutes: 90, PriceCents: 100}

	cases := map[string]func(*ShowInput){
		"theater_id is required":            func(in *ShowInput) { in.TheaterID = 0 },
		"title is required":                 func(in *ShowInput) { in.Title = " " },
		"starts_at is required":             func(in *ShowInput) { in.StartsAt = time.Time{} },
		"duration_minutes must be positive": func(in *ShowInput) { in.DurationMinutes = 0 },
		"price_cents must be positive":      func(in *ShowInput) { in.PriceCents = 0 },
	}
	for msg, mutate := range cases {
		t.Run(msg, func(t *testing.T) {
			in := good
			mutate(&in)
			_, err := c.CreateShow(ctx, in)
			requireKind(t, err, ErrValidation, msg)
		})
	}

	bad := good
	bad.TheaterID = 999
	_, err := c.CreateShow(ctx, bad)
	requireKind(t, err, ErrNotFound, MsgTheaterNotFound)
}

func TestCatalogDeleteGuards(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := NewCatalog(e.store, e.opts)
	_, err := e.booking.CreateReservation(ctx, 7, e.fx.Show.ID, e.fx.SeatA.ID)
	require.NoError(t, err)

	requireKind(t, c.DeleteShow(ctx, e.fx.Show.ID), ErrConflict, "show has confirmed bookings")
	requireKind(t, c.DeleteSeat(ctx, e.fx.SeatA.ID), ErrConflict, "seat has confirmed bookings")
	requireKind(t, c.DeleteTheater(ctx, e.fx.Theater.ID), ErrConflict, "theater still has shows or seats")

	require.NoError(t, c.DeleteSeat(ctx, e.fx.SeatB.ID))
	requireKind(t, c.DeleteSeat(ctx, e.fx.SeatB.ID), ErrNotFound, MsgSeatNotFound)
}

func TestCatalogSeats(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := NewCatalog(e.store, e.opts)

	s, err := c.CreateSeat(ctx, SeatInput{TheaterID: e.fx.Theater.ID, Label: "B1", Category: "recliner"})
	// the seeded theater holds exactly two seats
	requireKind(t, err, ErrValidation, "theater already has 2 seats")
	assert.Nil(t, s)

	th, err := c.CreateTheater(ctx, TheaterInput{Name: "Screen 3"})
	require.NoError(t, err)
	s, err = c.CreateSeat(ctx, SeatInput{TheaterID: th.ID, Label: "B1", Category: "recliner"})
	require.NoError(t, err)
	assert.Equal(t, "RECLINER", s.Category)
	assert.Equal(t, model.SeatAvailable, s.Status)
}

func TestUpdateSeatKeepsStatus(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := NewCatalog(e.store, e.opts)
	_, err := e.booking.CreateReservation(ctx, 7, e.fx.Show.ID, e.fx.SeatA.ID)
	require.NoError(t, err)

	s, err := c.UpdateSeat(ctx, e.fx.SeatA.ID, SeatInput{Label: "A1x", Category: ""})
	require.NoError(t, err)
	assert.Equal(t, "A1x", s.Label)
	assert.Equal(t, "STANDARD", s.Category)
	assert.Equal(t, model.SeatBooked, s.Status)

	_, err = c.UpdateSeat(ctx, 999, SeatInput{Label: "Q"})
	requireKind(t, err, ErrNotFound, MsgSeatNotFound)
	_, err = c.UpdateSeat(ctx, e.fx.SeatA.ID, SeatInput{})
	requireKind(t, err, ErrValidation, "label is required")
}

func TestSeatsByTheater(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := NewCatalog(e.store, e.opts)

	seats, err := c.SeatsByTheater(ctx, e.fx.Theater.ID)
	require.NoError(t, err)
	assert.Len(t, seats, 2)

	_, err = c.SeatsByTheater(ctx, 999)
	requireKind(t, err, ErrNotFound, MsgTheaterNotFound)
}

func TestGetShowConcurrent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := NewCatalog(e.store, e.opts)

	var wg sync.WaitGroup
	shows := make([]*model.Show, 10)
	errs := make([]error, 10)
	for i := range shows {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			shows[i], errs[i] = c.GetShow(ctx, e.fx.Show.ID)
		}(i)
	}
	wg.Wait()
	for i := range shows {
		require.NoError(t, errs[i])
		assert.Equal(t, e.fx.Show.ID, shows[i].ID)
	}
	// callers get independent copies
	shows[0].Title = "changed"
	assert.Equal(t, "Night Train", shows[1].Title)
}
