// Package repository defines the persistence contract of the booking service
// and the sentinel errors shared by every backend.  Backends live in the
// mysql, postgres and memory sub-packages.
package repository

import "errors"

// Lookup failures.  Backends return these (possibly wrapped) so the service
// layer can tell a missing row from an infrastructure failure.
var (
	ErrTheaterNotFound     = errors.New("theater not found")
	ErrShowNotFound        = errors.New("show not found")
	ErrSeatNotFound        = errors.New("seat not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrPaymentNotFound     = errors.New("payment not found")
)

// ErrConflict is returned when a write violates a uniqueness rule or would
// orphan dependent rows: a second confirmed reservation for the same
// (show, seat), or deleting a show or seat that still has confirmed
// reservations.
var ErrConflict = errors.New("conflict")
