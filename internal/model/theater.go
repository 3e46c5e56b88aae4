package model

import "time"

// Theater is a venue.  Seats belong to exactly one theater and every show
// is screened in one theater.
type Theater struct {
	ID         uint64    // theaters.id
	Name       string    // theaters.name
	Location   string    // theaters.location
	TotalSeats uint32    // theaters.total_seats
	CreatedAt  time.Time // theaters.created_at
	UpdatedAt  time.Time // theaters.updated_at
}
