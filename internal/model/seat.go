package model

import "time"

// Seat status values.  The status column is a cache of the reservation
// ledger and is only written in the same transaction as a ledger change.
const (
	SeatAvailable = "AVAILABLE"
	SeatBooked    = "BOOKED"
)

// Seat describes a physical seat in a theater.
//
// Fields:
//  ID        – primary key identifier.
//  TheaterID – theater to which this seat belongs.
//  Label     – printed seat number, e.g. "A12".
//  Category  – seat type (STANDARD, PREMIUM, RECLINER, ...).
//  Status    – AVAILABLE or BOOKED, derived from confirmed reservations.
type Seat struct {
	ID        uint64    // seats.id
	TheaterID uint64    // seats.theater_id
	Label     string    // seats.label
	Category  string    // seats.category
	Status    string    // seats.status
	CreatedAt time.Time // seats.created_at
	UpdatedAt time.Time // seats.updated_at
}
