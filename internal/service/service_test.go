package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/logger"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository/memory"
	"github.com/iliyamo/ticket-booking/internal/repository/repotest"
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, ev queue.ReservationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type env struct {
	store   *memory.Store
	fx      repotest.Fixture
	events  *recorder
	opts    Options
	booking *Booking
}

func newEnv(t *testing.T, mutate ...func(*Options)) *env {
	t.Helper()
	st := memory.New()
	e := &env{store: st, fx: repotest.Seed(t, st), events: &recorder{}}
	e.opts = Options{
		Zone:   time.FixedZone("IST", 5*3600+1800),
		Events: e.events,
		Log:    logger.Nop(),
	}
	for _, m := range mutate {
		m(&e.opts)
	}
	e.booking = NewBooking(st, e.opts)
	return e
}

// requireKind asserts err is a service error of kind with message msg.
func requireKind(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var se *Error
	require.True(t, errors.As(err, &se), "not a service error: %v", err)
	if msg != "" {
		require.Equal(t, msg, se.Msg)
	}
}
