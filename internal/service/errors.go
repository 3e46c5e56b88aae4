// Package service implements the booking rules on top of a
// repository.Store: reservation creation and cancellation, the administrative
// override, the show catalog and payments.
package service

import (
	"errors"
	"fmt"
)

// Error kinds.  Every business failure returned by this package wraps one
// of them; anything else is an infrastructure failure.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// Error is a business failure with a client-facing message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func notFound(msg string) error { return &Error{Kind: ErrNotFound, Msg: msg} }

func validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

func conflict(msg string) error { return &Error{Kind: ErrConflict, Msg: msg} }

func forbidden(msg string) error { return &Error{Kind: ErrForbidden, Msg: msg} }

// Messages shared with the HTTP layer and tests.
const (
	MsgShowNotFound     = "show not found"
	MsgSeatNotFound     = "seat not found"
	MsgTheaterNotFound  = "theater not found"
	MsgBookingNotFound  = "booking not found"
	MsgPaymentNotFound  = "payment not found"
	MsgPastShow         = "cannot book past show"
	MsgSeatOtherTheater = "seat does not belong to this show's theater"
	MsgSeatBooked       = "seat already booked"
	MsgCancelClosed     = "cancellation window has closed"
)
