// Package queue carries reservation and payment events over RabbitMQ: a
// publisher used by the service layer and a consumer that turns every event
// into an audit log row.
package queue

import (
	"fmt"
	"time"
)

// Event types.
const (
	ReservationConfirmed = "reservation.confirmed"
	ReservationCancelled = "reservation.cancelled"
	ReservationPurged    = "reservation.purged"
	PaymentCompleted     = "payment.completed"
)

// DefaultQueue is the queue events are routed to when none is configured.
const DefaultQueue = "reservation.events"

// ReservationEvent is published after a reservation or payment change has
// been committed.  It carries enough for downstream consumers to log, notify
// or trigger analytics without querying the primary database.
type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID uint64    `json:"reservation_id"`
	UserID        uint64    `json:"user_id"`
	ShowID        uint64    `json:"show_id"`
	SeatID        uint64    `json:"seat_id"`
	Status        string    `json:"status"`
	PaymentRef    string    `json:"payment_ref,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Summary renders the event as a single human-friendly line.
func (e ReservationEvent) Summary() string {
	line := fmt.Sprintf("[%s] %s | reservation_id=%d | user_id=%d | show_id=%d | seat_id=%d | status=%s",
		e.OccurredAt.UTC().Format(time.RFC3339), e.Type, e.ReservationID, e.UserID, e.ShowID, e.SeatID, e.Status)
	if e.PaymentRef != "" {
		line += " | payment_ref=" + e.PaymentRef
	}
	return line
}
