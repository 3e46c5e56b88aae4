package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/repository/repotest"
)

func TestStore(t *testing.T) {
	repotest.Run(t, func(*testing.T) repository.Store { return New() })
}

func TestWithClockStampsRows(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	st := New(WithClock(func() time.Time { return fixed }))

	th := &model.Theater{Name: "Screen 2"}
	require.NoError(t, st.CreateTheater(context.Background(), th))
	assert.Equal(t, time.UTC, th.CreatedAt.Location())
	assert.True(t, th.CreatedAt.Equal(fixed))
}

func TestWithTxCancelledContext(t *testing.T) {
	st := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := st.WithTx(ctx, func(repository.Repository) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestReturnedRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	st := New()
	f := repotest.Seed(t, st)

	seat, err := st.GetSeat(ctx, f.SeatA.ID)
	require.NoError(t, err)
	seat.Status = model.SeatBooked

	again, err := st.GetSeat(ctx, f.SeatA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, again.Status)
}
