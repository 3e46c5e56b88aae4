// Package repotest holds behaviour checks shared by every repository.Store
// backend.  Each backend's tests call Run with a constructor returning an
// empty store.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// Run executes the suite.  newStore must return an empty store each call.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Run("SingleConfirmedReservationPerSeat", func(t *testing.T) {
		testUniqueConfirmed(t, newStore(t))
	})
	t.Run("ConcurrentInsertsOneWinner", func(t *testing.T) {
		testConcurrentInsert(t, newStore(t))
	})
	t.Run("CancelledRowsDoNotBlock", func(t *testing.T) {
		testCancelledDoesNotBlock(t, newStore(t))
	})
	t.Run("SyncSeatStatus", func(t *testing.T) {
		testSyncSeatStatus(t, newStore(t))
	})
	t.Run("SeatLockOrdersStatusWriters", func(t *testing.T) {
		testSeatLockOrdersWriters(t, newStore(t))
	})
	t.Run("RollbackLeavesNoTrace", func(t *testing.T) {
		testRollback(t, newStore(t))
	})
	t.Run("DeleteReservationDetachesPayments", func(t *testing.T) {
		testDeleteDetachesPayments(t, newStore(t))
	})
	t.Run("DeleteGuards", func(t *testing.T) {
		testDeleteGuards(t, newStore(t))
	})
	t.Run("ListShowsFiltersByTitle", func(t *testing.T) {
		testListShows(t, newStore(t))
	})
	t.Run("NotFound", func(t *testing.T) {
		testNotFound(t, newStore(t))
	})
	t.Run("AuditLogsNewestFirst", func(t *testing.T) {
		testAuditLogs(t, newStore(t))
	})
}

// Fixture is a theater with two seats and one upcoming show.
type Fixture struct {
	Theater model.Theater
	Show    model.Show
	SeatA   model.Seat
	SeatB   model.Seat
}

// Seed creates a Fixture in st.
func Seed(t *testing.T, st repository.Store) Fixture {
	t.Helper()
	ctx := context.Background()
	var f Fixture
	f.Theater = model.Theater{Name: "Screen 1", Location: "Pune", TotalSeats: 2}
	require.NoError(t, st.CreateTheater(ctx, &f.Theater))
	f.Show = model.Show{
		TheaterID:       f.Theater.ID,
		Title:           "Night Train",
		StartsAt:        time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		DurationMinutes: 120,
		PriceCents:      25000,
	}
	require.NoError(t, st.CreateShow(ctx, &f.Show))
	f.SeatA = model.Seat{TheaterID: f.Theater.ID, Label: "A1", Category: "REGULAR"}
	require.NoError(t, st.CreateSeat(ctx, &f.SeatA))
	f.SeatB = model.Seat{TheaterID: f.Theater.ID, Label: "A2", Category: "PREMIUM"}
	require.NoError(t, st.CreateSeat(ctx, &f.SeatB))
	return f
}

func confirmed(userID, showID, seatID uint64) *model.Reservation {
	return &model.Reservation{UserID: userID, ShowID: showID, SeatID: seatID, Status: model.ReservationConfirmed}
}

func testUniqueConfirmed(t *testing.T, st repository.Store) {
	ctx := context.Background()
	f := Seed(t, st)

	first := confirmed(1, f.Show.ID, f.SeatA.ID)
	require.NoError(t, st.InsertReservation(ctx, first))
	assert.NotZero(t, first.ID)

	err := st.InsertReservation(ctx, confirmed(2, f.Show.ID, f.SeatA.ID))
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, st.InsertReservation(ctx, confirmed(2, f.Show.ID, f.SeatB.ID)))

	ok, err := st.HasConfirmedReservation(ctx, f.Show.ID, f.SeatA.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := st.ConfirmedSeatIDs(ctx, f.Show.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{f.SeatA.ID, f.SeatB.ID}, ids)
}

func testConcurrentInsert(t *testing.T, st repository.Store) {
	ctx := context.Background()
	f := Seed(t, st)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			err := st.WithTx(ctx, func(tx repository.Repository) error {
				if err := tx.InsertReservation(ctx, confirmed(user, f.Show.ID, f.SeatA.ID)); err != nil {
					return err
				}
				_, err := tx.SyncSeatStatus(ctx, f.SeatA.ID)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repository.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)

	seat, err := st.GetSeat(ctx, f.SeatA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatBooked, seat.Status)
}

func testCancelledDoesNotBlock(t *testing.T, st repository.Store) {
	ctx := context.Background()
	f := Seed(t, st)

	r := confirmed(1, f.Show.ID, f.SeatA.ID)
	require.NoError(t, st.InsertReservation(ctx, r))
	require.NoError(t, st.SetReservationStatus(ctx, r.ID, model.ReservationCancelled))

	again := confirmed(2, f.Show.ID, f.SeatA.ID)
	require.NoError(t, st.InsertReservation(ctx, again))

	// Reviving the cancelled row would duplicate the confirmed one.
	err := st.SetReservationStatus(ctx, r.ID, model.ReservationConfirmed)
	assert.ErrorIs(t, err, repository.ErrConflict)

	list, err := st.ListReservationsByShow(ctx, f.Show.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.ReservationCancelled, list[0].Status)
	assert.Equal(t, model.ReservationConfirmed, list[1].Status)

	mine, err := st.ListReservationsByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r.ID, mine[0].ID)
}

func testSyncSeatStatus(t *testing.T, st repository.Store) {
	ctx := context.Background()
	f := Seed(t, st)

	status, err := st.SyncSeatStatus(ctx, f.SeatA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, status)

	r := confirmed(1, f.Show.ID, f.SeatA.ID)
	require.NoError(t, st.InsertReservation(ctx, r))
	status, err = st.SyncSeatStatus(ctx, f.SeatA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatBooked, status)

	// Syncing twice is harmless.
	status, err = st.SyncSeatStatus(ctx, f.SeatA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatBooked, status)

	require.NoError(t, st.SetReservationStatus(ctx, r.ID, model.ReservationCancelled))
	status, err = st.SyncSeatStatus(ctx, f.SeatA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, status)

	_, err = st.SyncSeatStatus(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrSeatNotFound)
}

// testSeatLockOrdersWriters books a seat for a second show while the seat's
// booking for the first show is cancelled in an overlapping transaction.
// The cancel waits on the seat lock and must then see the new booking.
func testSeatLockOrdersWriters(t *testing.T, st repository.Store) {
	ctx := context.Background()
	f := Seed(t, st)

	second := model.Show{
		TheaterID:       f.Theater.ID,
		Title:           "Night Train (late)",
		StartsAt:        f.Show.StartsAt.Add(3 * time.Hour),
		DurationMinutes: 120,
		PriceCents:      25000,
	}
	require.NoError(t, st.CreateShow(ctx, &second))
	first := confirmed(1, f.Show.ID, f.SeatA.ID)
	require.NoError(t, st.InsertReservation(ctx, first))
	_, err := st.SyncSeatStatus(ctx, f.SeatA.ID)
	require.NoError(t, err)

	locked := make(chan struct{})
	release := make(chan struct{})
	bookErr := make(chan error, 1)
	go func() {
		bookErr <- st.WithTx(ctx, func(tx repository.Repository) error {
			if err := tx.LockSeat(ctx, f.SeatA.ID); err != nil {
				return err
			}
			if err := tx.InsertReservation(ctx, confirmed(2, second.ID, f.SeatA.ID)); err != nil {
				return err
			}
			if _, err := tx.SyncSeatStatus(ctx, f.SeatA.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()

	select {
	case <-locked:
	case err := <-bookErr:
		t.Fatalf("booking transaction ended early: %v", err)
	}

	var cancelStatus string
	cancelErr := make(chan error, 1)
	go func() {
		cancelErr <- st.WithTx(ctx, func(tx repository.Repository) error {
			if err := tx.LockSeat(ctx, f.SeatA.ID); err != nil {
				return err
			}
			if err := tx.SetReservationStatus(ctx, first.ID, model.ReservationCancelled); err != nil {
				return err
			}
			status, err := tx.SyncSeatStatus(ctx, f.SeatA.ID)
			cancelStatus = status
			return err
		})
	}()

	// Give the cancel time to block on the seat lock before the booking commits.
	time.Sleep(100 * time.Millisecond)
	close(release)
	require.NoError(t, <-bookErr)
	require.NoError(t, <-cancelErr)

	assert.Equal(t, model.SeatBooked, cancelStatus)
	seat, err := st.GetSeat(ctx, f.SeatA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatBooked, seat.Status)

	err = st.WithTx(ctx, func(tx repository.Repository) error {
		return tx.LockSeat(ctx, 9999)
	})
	assert.ErrorIs(t, err, repository.ErrSeatNotFound)
}

func testRollback(t *testing.T, st repository.Store) {
	ctx := context.Background()
	f := Seed(t, st)
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx repository.Repository) error {
		if err := tx.InsertReservation(ctx, confirmed(1, f.Show.ID, f.SeatA.ID)); err != nil {
			return err
		}
		if _, err := tx.SyncSeatStatus(ctx, f.SeatA.ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ok, err := st.HasConfirmedReservation(ctx, f.Show.ID, f.SeatA.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	seat, err := st.GetSeat(ctx, f.SeatA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, seat.Status)
}

func testDeleteDetachesPayments(t *testing.T, st repository.Store) {
	ctx := context.Background()
	f := Seed(t, st)

	r := confirmed(1, f.Show.ID, f.SeatA.ID)
	require.NoError(t, st.InsertReservation(ctx, r))
	p := &model.Payment{
		ReservationID: r.ID, UserID: 1, Method: "mock", AmountCents: 25000,
		Currency: "inr", OrderRef: "order_test_1", Status: model.PaymentPending,
	}
	require.NoError(t, st.InsertPayment(ctx, p))

	require.NoError(t, st.DeleteReservation(ctx, r.ID))
	_, err := st.GetReservation(ctx, r.ID)
	assert.ErrorIs(t, err, repository.ErrReservationNotFound)

	got, err := st.GetPaymentByOrderRef(ctx, "order_test_1")
	require.NoError(t, err)
	assert.Zero(t, got.ReservationID)

	assert.ErrorIs(t, st.DeleteReservation(ctx, r.ID), repository.ErrReservationNotFound)
}

func testDeleteGuards(t *testing.T, st repository.Store) {
	ctx := context.Background()
	f := Seed(t, st)

	r := confirmed(1, f.Show.ID, f.SeatA.ID)
	require.NoError(t, st.InsertReservation(ctx, r))

	assert.ErrorIs(t, st.DeleteShow(ctx, f.Show.ID), repository.ErrConflict)
	assert.ErrorIs(t, st.DeleteSeat(ctx, f.SeatA.ID), repository.ErrConflict)
	assert.ErrorIs(t, st.DeleteTheater(ctx, f.Theater.ID), repository.ErrConflict)

	require.NoError(t, st.SetReservationStatus(ctx, r.ID, model.ReservationCancelled))
	require.NoError(t, st.DeleteSeat(ctx, f.SeatA.ID))
	require.NoError(t, st.DeleteShow(ctx, f.Show.ID))
	require.NoError(t, st.DeleteSeat(ctx, f.SeatB.ID))
	require.NoError(t, st.DeleteTheater(ctx, f.Theater.ID))

	_, err := st.GetTheater(ctx, f.Theater.ID)
	assert.ErrorIs(t, err, repository.ErrTheaterNotFound)
}

func testListShows(t *testing.T, st repository.Store) {
	ctx := context.Background()
	f := Seed(t, st)

	early := model.Show{
		TheaterID: f.Theater.ID, Title: "Morning Light", StartsAt: f.Show.StartsAt.Add(-30 * time.Minute),
		DurationMinutes: 90, PriceCents: 15000,
	}
	require.NoError(t, st.CreateShow(ctx, &early))

	all, err := st.ListShows(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, early.ID, all[0].ID)

	filtered, err := st.ListShows(ctx, "night")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, f.Show.ID, filtered[0].ID)

	f.Show.Title = "Night Train (IMAX)"
	require.NoError(t, st.UpdateShow(ctx, &f.Show))
	got, err := st.GetShow(ctx, f.Show.ID)
	require.NoError(t, err)
	assert.Equal(t, "Night Train (IMAX)", got.Title)
	assert.True(t, got.StartsAt.Equal(f.Show.StartsAt))
}

func testNotFound(t *testing.T, st repository.Store) {
	ctx := context.Background()

	_, err := st.GetShow(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrShowNotFound)
	_, err = st.GetSeat(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrSeatNotFound)
	_, err = st.GetReservation(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrReservationNotFound)
	_, err = st.GetPaymentByOrderRef(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrPaymentNotFound)
	assert.ErrorIs(t, st.SetReservationStatus(ctx, 42, model.ReservationCancelled), repository.ErrReservationNotFound)
	assert.ErrorIs(t, st.UpdateSeat(ctx, &model.Seat{ID: 42, Label: "Z9"}), repository.ErrSeatNotFound)
}

func testAuditLogs(t *testing.T, st repository.Store) {
	ctx := context.Background()
	for _, action := range []string{"reservation.confirmed", "reservation.cancelled", "payment.completed"} {
		require.NoError(t, st.InsertAuditLog(ctx, &model.AuditLog{UserID: 7, Action: action, Details: "{}"}))
	}
	logs, err := st.ListAuditLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "payment.completed", logs[0].Action)
	assert.Equal(t, "reservation.cancelled", logs[1].Action)
}
