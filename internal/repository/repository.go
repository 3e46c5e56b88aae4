package repository

import (
	"context"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// TheaterRepository manages venues.
type TheaterRepository interface {
	CreateTheater(ctx context.Context, t *model.Theater) error
	GetTheater(ctx context.Context, id uint64) (*model.Theater, error)
	ListTheaters(ctx context.Context) ([]model.Theater, error)
	UpdateTheater(ctx context.Context, t *model.Theater) error
	// DeleteTheater returns ErrConflict while shows or seats reference it.
	DeleteTheater(ctx context.Context, id uint64) error
}

// ShowRepository is the show catalog.
type ShowRepository interface {
	CreateShow(ctx context.Context, s *model.Show) error
	GetShow(ctx context.Context, id uint64) (*model.Show, error)
	// ListShows returns shows ordered by start time.  A non-empty title
	// filters case-insensitively on a substring of the title.
	ListShows(ctx context.Context, title string) ([]model.Show, error)
	UpdateShow(ctx context.Context, s *model.Show) error
	// DeleteShow returns ErrConflict while confirmed reservations exist.
	DeleteShow(ctx context.Context, id uint64) error
}

// SeatRepository is the seat directory.
type SeatRepository interface {
	CreateSeat(ctx context.Context, s *model.Seat) error
	GetSeat(ctx context.Context, id uint64) (*model.Seat, error)
	ListSeats(ctx context.Context) ([]model.Seat, error)
	ListSeatsByTheater(ctx context.Context, theaterID uint64) ([]model.Seat, error)
	// UpdateSeat changes label and category only; status is never written
	// from outside the ledger.
	UpdateSeat(ctx context.Context, s *model.Seat) error
	// DeleteSeat returns ErrConflict while confirmed reservations exist.
	DeleteSeat(ctx context.Context, id uint64) error
	// LockSeat takes a row lock on the seat until the transaction ends.
	// Every ledger write for a seat is preceded by it, so writers of one
	// seat commit in order and SyncSeatStatus sees the previous writer's
	// reservations.  Returns ErrSeatNotFound when the seat does not exist.
	LockSeat(ctx context.Context, seatID uint64) error
	// SyncSeatStatus recomputes the cached status of a seat from the ledger
	// (BOOKED iff a confirmed reservation holds it) and returns the result.
	SyncSeatStatus(ctx context.Context, seatID uint64) (string, error)
}

// ReservationRepository is the reservation ledger.
type ReservationRepository interface {
	// InsertReservation stores r and fills its ID and timestamps.  It
	// returns ErrConflict when r is CONFIRMED and another confirmed
	// reservation already holds the same (show, seat).
	InsertReservation(ctx context.Context, r *model.Reservation) error
	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	SetReservationStatus(ctx context.Context, id uint64, status string) error
	// DeleteReservation removes the row and detaches its payments.
	DeleteReservation(ctx context.Context, id uint64) error
	HasConfirmedReservation(ctx context.Context, showID, seatID uint64) (bool, error)
	// ConfirmedSeatIDs returns the seats held by confirmed reservations of a show.
	ConfirmedSeatIDs(ctx context.Context, showID uint64) ([]uint64, error)
	// ListReservationsByUser returns newest first.
	ListReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListReservationsByShow(ctx context.Context, showID uint64) ([]model.Reservation, error)
}

// PaymentRepository stores payment attempts.
type PaymentRepository interface {
	InsertPayment(ctx context.Context, p *model.Payment) error
	GetPaymentByOrderRef(ctx context.Context, orderRef string) (*model.Payment, error)
	// UpdatePayment writes status, transaction ref and signature.
	UpdatePayment(ctx context.Context, p *model.Payment) error
	ListPaymentsByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error)
}

// AuditRepository stores audit log entries written by the event consumer.
type AuditRepository interface {
	InsertAuditLog(ctx context.Context, a *model.AuditLog) error
	// ListAuditLogs returns at most limit entries, newest first.
	ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error)
}

// Repository is the full set of data operations.  It is implemented both by
// a Store (each call stands alone) and by the transaction handle passed to
// WithTx (calls share one transaction).
type Repository interface {
	TheaterRepository
	ShowRepository
	SeatRepository
	ReservationRepository
	PaymentRepository
	AuditRepository
}

// Store is a storage backend.
type Store interface {
	Repository
	// WithTx runs fn inside one transaction.  The transaction commits when
	// fn returns nil and rolls back otherwise; fn's error is returned as is.
	WithTx(ctx context.Context, fn func(tx Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}
