package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/logger"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/telemetry"
	"github.com/iliyamo/ticket-booking/internal/ticket"
)

// Options configures the booking rules shared by Booking and Payments.
type Options struct {
	// Zone is the canonical display zone show times are compared and
	// rendered in.  Defaults to UTC.
	Zone *time.Location
	// CancelCutoff forbids customer cancellation when the show starts
	// within this duration.  Zero disables the check.
	CancelCutoff time.Duration
	// Currency is the ISO code prices are charged in.  Defaults to inr.
	Currency string
	// Now is the clock.  Defaults to time.Now.
	Now    func() time.Time
	Events EventPublisher
	Log    *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Zone == nil {
		o.Zone = time.UTC
	}
	if o.Currency == "" {
		o.Currency = "inr"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Events == nil {
		o.Events = NopPublisher{}
	}
	if o.Log == nil {
		o.Log = logger.Get()
	}
	return o
}

// Booking coordinates reservations.  Every ledger change and the seat status
// it implies run in one store transaction; the unique index on confirmed
// reservations decides races.
type Booking struct {
	store repository.Store
	opts  Options
}

// NewBooking returns a Booking over store.
func NewBooking(store repository.Store, opts Options) *Booking {
	if store == nil {
		panic("nil store passed to NewBooking")
	}
	return &Booking{store: store, opts: opts.withDefaults()}
}

// CancelSummary is returned by CancelReservation.
type CancelSummary struct {
	BookingID  uint64 `json:"booking_id"`
	SeatID     uint64 `json:"seat_id"`
	SeatStatus string `json:"seat_status"`
}

// BookingView is a reservation joined with its show and seat for display.
type BookingView struct {
	ID           uint64 `json:"booking_id"`
	UserID       uint64 `json:"user_id"`
	ShowID       uint64 `json:"show_id"`
	ShowTitle    string `json:"show_title"`
	StartsAt     string `json:"starts_at"`
	SeatID       uint64 `json:"seat_id"`
	SeatLabel    string `json:"seat_label"`
	SeatCategory string `json:"seat_category"`
	Status       string `json:"status"`
	BookedAt     string `json:"booked_at"`
}

// SeatAvailability is a seat with its availability for one show.
type SeatAvailability struct {
	SeatID    uint64 `json:"seat_id"`
	Label     string `json:"label"`
	Category  string `json:"category"`
	Available bool   `json:"is_available"`
}

// CreateReservation books seatID on showID for userID.
func (b *Booking) CreateReservation(ctx context.Context, userID, showID, seatID uint64) (_ *model.Reservation, err error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.create",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("show.id", int64(showID)),
		attribute.Int64("seat.id", int64(seatID)),
	)
	defer func() { telemetry.End(span, err) }()

	var res *model.Reservation
	err = b.store.WithTx(ctx, func(tx repository.Repository) error {
		show, err := tx.GetShow(ctx, showID)
		if err != nil {
			return translate(err, "load show")
		}
		if !IsUpcoming(show.StartsAt, b.opts.Now(), b.opts.Zone) {
			return validation(MsgPastShow)
		}
		if err := tx.LockSeat(ctx, seatID); err != nil {
			return translate(err, "lock seat")
		}
		seat, err := tx.GetSeat(ctx, seatID)
		if err != nil {
			return translate(err, "load seat")
		}
		if seat.TheaterID != show.TheaterID {
			return validation(MsgSeatOtherTheater)
		}

		r := &model.Reservation{
			UserID: userID,
			ShowID: showID,
			SeatID: seatID,
			Status: model.ReservationConfirmed,
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict(MsgSeatBooked)
			}
			return translate(err, "insert reservation")
		}
		if _, err := tx.SyncSeatStatus(ctx, seatID); err != nil {
			return fmt.Errorf("sync seat status: %w", err)
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.publish(ctx, queue.ReservationEvent{
		Type:          queue.ReservationConfirmed,
		ReservationID: res.ID,
		UserID:        userID,
		ShowID:        showID,
		SeatID:        seatID,
		Status:        res.Status,
	})
	return res, nil
}

// IsAvailable reports whether no confirmed reservation holds seatID for
// showID.  The answer is advisory; CreateReservation decides on its own.
func (b *Booking) IsAvailable(ctx context.Context, showID, seatID uint64) (bool, error) {
	held, err := b.store.HasConfirmedReservation(ctx, showID, seatID)
	if err != nil {
		return false, fmt.Errorf("check availability: %w", err)
	}
	return !held, nil
}

// ShowSeats lists the seats of the show's theater with their availability
// for that show.
func (b *Booking) ShowSeats(ctx context.Context, showID uint64) ([]SeatAvailability, error) {
	show, err := b.store.GetShow(ctx, showID)
	if err != nil {
		return nil, translate(err, "load show")
	}
	seats, err := b.store.ListSeatsByTheater(ctx, show.TheaterID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	held, err := b.store.ConfirmedSeatIDs(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("list confirmed seats: %w", err)
	}
	taken := make(map[uint64]struct{}, len(held))
	for _, id := range held {
		taken[id] = struct{}{}
	}
	out := make([]SeatAvailability, 0, len(seats))
	for _, s := range seats {
		_, booked := taken[s.ID]
		out = append(out, SeatAvailability{SeatID: s.ID, Label: s.Label, Category: s.Category, Available: !booked})
	}
	return out, nil
}

// CancelReservation cancels a reservation owned by userID.  A reservation
// owned by someone else is reported as missing.  Cancelling twice returns
// the same summary without writing.
func (b *Booking) CancelReservation(ctx context.Context, userID, bookingID uint64) (_ *CancelSummary, err error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.cancel",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("booking.id", int64(bookingID)),
	)
	defer func() { telemetry.End(span, err) }()

	var (
		sum     *CancelSummary
		res     *model.Reservation
		changed bool
	)
	err = b.store.WithTx(ctx, func(tx repository.Repository) error {
		r, err := ownedReservation(ctx, tx, userID, bookingID)
		if err != nil {
			return err
		}
		if err := tx.LockSeat(ctx, r.SeatID); err != nil {
			return translate(err, "lock seat")
		}
		// Re-read under the seat lock; a concurrent cancel may have committed.
		if r, err = tx.GetReservation(ctx, r.ID); err != nil {
			return translate(err, "load reservation")
		}
		res = r

		if r.Status == model.ReservationCancelled {
			seat, err := tx.GetSeat(ctx, r.SeatID)
			if err != nil {
				return translate(err, "load seat")
			}
			sum = &CancelSummary{BookingID: r.ID, SeatID: r.SeatID, SeatStatus: seat.Status}
			return nil
		}

		if b.opts.CancelCutoff > 0 {
			show, err := tx.GetShow(ctx, r.ShowID)
			if err != nil {
				return translate(err, "load show")
			}
			if !IsUpcoming(show.StartsAt, b.opts.Now().Add(b.opts.CancelCutoff), b.opts.Zone) {
				return validation(MsgCancelClosed)
			}
		}

		if err := tx.SetReservationStatus(ctx, r.ID, model.ReservationCancelled); err != nil {
			return translate(err, "cancel reservation")
		}
		status, err := tx.SyncSeatStatus(ctx, r.SeatID)
		if err != nil {
			return fmt.Errorf("sync seat status: %w", err)
		}
		sum = &CancelSummary{BookingID: r.ID, SeatID: r.SeatID, SeatStatus: status}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		b.publish(ctx, queue.ReservationEvent{
			Type:          queue.ReservationCancelled,
			ReservationID: res.ID,
			UserID:        res.UserID,
			ShowID:        res.ShowID,
			SeatID:        res.SeatID,
			Status:        model.ReservationCancelled,
		})
	}
	return sum, nil
}

// ForceCancel deletes a reservation regardless of owner and frees its seat.
// Payments made for it are kept, detached from the reservation.  Callers
// must have checked that the principal is an administrator.
func (b *Booking) ForceCancel(ctx context.Context, bookingID uint64) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.force_cancel",
		attribute.Int64("booking.id", int64(bookingID)),
	)
	defer func() { telemetry.End(span, err) }()

	var res *model.Reservation
	err = b.store.WithTx(ctx, func(tx repository.Repository) error {
		r, err := tx.GetReservation(ctx, bookingID)
		if err != nil {
			return translate(err, "load reservation")
		}
		if err := tx.LockSeat(ctx, r.SeatID); err != nil {
			return translate(err, "lock seat")
		}
		if err := tx.DeleteReservation(ctx, r.ID); err != nil {
			return translate(err, "delete reservation")
		}
		if _, err := tx.SyncSeatStatus(ctx, r.SeatID); err != nil {
			return fmt.Errorf("sync seat status: %w", err)
		}
		res = r
		return nil
	})
	if err != nil {
		return err
	}

	b.publish(ctx, queue.ReservationEvent{
		Type:          queue.ReservationPurged,
		ReservationID: res.ID,
		UserID:        res.UserID,
		ShowID:        res.ShowID,
		SeatID:        res.SeatID,
		Status:        res.Status,
	})
	return nil
}

// ListUserBookings returns the caller's reservations, newest first.
func (b *Booking) ListUserBookings(ctx context.Context, userID uint64) ([]BookingView, error) {
	rs, err := b.store.ListReservationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return b.views(ctx, rs)
}

// ListShowBookings returns every reservation of a show for administrators.
func (b *Booking) ListShowBookings(ctx context.Context, showID uint64) ([]BookingView, error) {
	if _, err := b.store.GetShow(ctx, showID); err != nil {
		return nil, translate(err, "load show")
	}
	rs, err := b.store.ListReservationsByShow(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return b.views(ctx, rs)
}

// views joins reservations with their shows and seats.  Each show and seat
// is loaded once.
func (b *Booking) views(ctx context.Context, rs []model.Reservation) ([]BookingView, error) {
	shows := map[uint64]*model.Show{}
	seats := map[uint64]*model.Seat{}
	out := make([]BookingView, 0, len(rs))
	for _, r := range rs {
		show, ok := shows[r.ShowID]
		if !ok {
			s, err := b.store.GetShow(ctx, r.ShowID)
			if err != nil {
				return nil, fmt.Errorf("load show %d: %w", r.ShowID, err)
			}
			show, shows[r.ShowID] = s, s
		}
		seat, ok := seats[r.SeatID]
		if !ok {
			s, err := b.store.GetSeat(ctx, r.SeatID)
			if err != nil {
				return nil, fmt.Errorf("load seat %d: %w", r.SeatID, err)
			}
			seat, seats[r.SeatID] = s, s
		}
		out = append(out, BookingView{
			ID:           r.ID,
			UserID:       r.UserID,
			ShowID:       r.ShowID,
			ShowTitle:    show.Title,
			StartsAt:     DisplayTime(show.StartsAt, b.opts.Zone),
			SeatID:       r.SeatID,
			SeatLabel:    seat.Label,
			SeatCategory: seat.Category,
			Status:       r.Status,
			BookedAt:     DisplayTime(r.CreatedAt, b.opts.Zone),
		})
	}
	return out, nil
}

// Ticket returns the printable ticket of a confirmed booking owned by
// userID.
func (b *Booking) Ticket(ctx context.Context, userID, bookingID uint64) (_ *ticket.Ticket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.ticket",
		attribute.Int64("booking.id", int64(bookingID)),
	)
	defer func() { telemetry.End(span, err) }()

	r, err := ownedReservation(ctx, b.store, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if r.Status != model.ReservationConfirmed {
		return nil, validation("booking is %s", r.Status)
	}
	show, err := b.store.GetShow(ctx, r.ShowID)
	if err != nil {
		return nil, translate(err, "load show")
	}
	seat, err := b.store.GetSeat(ctx, r.SeatID)
	if err != nil {
		return nil, translate(err, "load seat")
	}
	th, err := b.store.GetTheater(ctx, show.TheaterID)
	if err != nil {
		return nil, translate(err, "load theater")
	}
	return &ticket.Ticket{
		BookingID:   r.ID,
		ShowID:      show.ID,
		SeatID:      seat.ID,
		ShowTitle:   show.Title,
		TheaterName: th.Name,
		Location:    th.Location,
		SeatLabel:   seat.Label,
		Category:    seat.Category,
		StartsAt:    show.StartsAt.In(b.opts.Zone),
		PriceCents:  show.PriceCents,
		Currency:    b.opts.Currency,
	}, nil
}

// ownedReservation loads a reservation and hides it from anyone but its
// owner.
func ownedReservation(ctx context.Context, repo repository.Repository, userID, bookingID uint64) (*model.Reservation, error) {
	r, err := repo.GetReservation(ctx, bookingID)
	if err != nil {
		return nil, translate(err, "load reservation")
	}
	if r.UserID != userID {
		return nil, notFound(MsgBookingNotFound)
	}
	return r, nil
}

func (b *Booking) publish(ctx context.Context, ev queue.ReservationEvent) {
	publish(ctx, b.opts, ev)
}

// publish sends ev after the change it describes has been committed.  A
// failure is only logged.
func publish(ctx context.Context, opts Options, ev queue.ReservationEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = opts.Now().UTC()
	}
	if err := opts.Events.Publish(ctx, ev); err != nil {
		opts.Log.WithContext(ctx).Warn("failed to publish event",
			zap.String("type", ev.Type),
			zap.Uint64("reservation_id", ev.ReservationID),
			zap.Error(err),
		)
	}
}

// translate maps repository sentinels onto the error taxonomy and wraps
// anything else with op.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrShowNotFound):
		return notFound(MsgShowNotFound)
	case errors.Is(err, repository.ErrSeatNotFound):
		return notFound(MsgSeatNotFound)
	case errors.Is(err, repository.ErrTheaterNotFound):
		return notFound(MsgTheaterNotFound)
	case errors.Is(err, repository.ErrReservationNotFound):
		return notFound(MsgBookingNotFound)
	case errors.Is(err, repository.ErrPaymentNotFound):
		return notFound(MsgPaymentNotFound)
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
