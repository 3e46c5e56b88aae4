package model

import "time"

// Reservation status values.
const (
	ReservationConfirmed = "CONFIRMED"
	ReservationCancelled = "CANCELLED"
)

// Reservation binds one user to one seat for one show.  At most one
// CONFIRMED reservation may exist per (ShowID, SeatID); the storage layer
// enforces it with a unique index.
//
// Fields:
//  ID        – primary key identifier (the booking id).
//  UserID    – user who made the reservation.
//  ShowID    – show being reserved.
//  SeatID    – seat being reserved.
//  Status    – CONFIRMED or CANCELLED.
//  CreatedAt – booking timestamp.
//  UpdatedAt – last status change.
type Reservation struct {
	ID        uint64    // reservations.id
	UserID    uint64    // reservations.user_id
	ShowID    uint64    // reservations.show_id
	SeatID    uint64    // reservations.seat_id
	Status    string    // reservations.status
	CreatedAt time.Time // reservations.created_at
	UpdatedAt time.Time // reservations.updated_at
}
