package service

import (
	"context"

	"github.com/iliyamo/ticket-booking/internal/queue"
)

// EventPublisher delivers committed changes to other systems.  Delivery is
// best effort: a failure is logged and never undoes the change.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.ReservationEvent) error { return nil }
