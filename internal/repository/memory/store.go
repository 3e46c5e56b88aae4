// Package memory is an in-process repository.Store.  Transactions are
// serialised by one mutex and applied copy-on-write, so a failed transaction
// leaves no trace.  It backs the test suites and DB_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

type slot struct{ showID, seatID uint64 }

type state struct {
	theaters     map[uint64]model.Theater
	shows        map[uint64]model.Show
	seats        map[uint64]model.Seat
	reservations map[uint64]model.Reservation
	confirmed    map[slot]uint64 // unique index over confirmed reservations
	payments     map[uint64]model.Payment
	audit        []model.AuditLog
	lastID       map[string]uint64
}

func newState() *state {
	return &state{
		theaters:     map[uint64]model.Theater{},
		shows:        map[uint64]model.Show{},
		seats:        map[uint64]model.Seat{},
		reservations: map[uint64]model.Reservation{},
		confirmed:    map[slot]uint64{},
		payments:     map[uint64]model.Payment{},
		lastID:       map[string]uint64{},
	}
}

func (s *state) clone() *state {
	c := &state{
		theaters:     make(map[uint64]model.Theater, len(s.theaters)),
		shows:        make(map[uint64]model.Show, len(s.shows)),
		seats:        make(map[uint64]model.Seat, len(s.seats)),
		reservations: make(map[uint64]model.Reservation, len(s.reservations)),
		confirmed:    make(map[slot]uint64, len(s.confirmed)),
		payments:     make(map[uint64]model.Payment, len(s.payments)),
		audit:        append([]model.AuditLog(nil), s.audit...),
		lastID:       make(map[string]uint64, len(s.lastID)),
	}
	for k, v := range s.theaters {
		c.theaters[k] = v
	}
	for k, v := range s.shows {
		c.shows[k] = v
	}
	for k, v := range s.seats {
		c.seats[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.confirmed {
		c.confirmed[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.lastID {
		c.lastID[k] = v
	}
	return c
}

func (s *state) nextID(table string) uint64 {
	s.lastID[table]++
	return s.lastID[table]
}

// Store is an in-memory repository.Store.
type Store struct {
	*view
	mu sync.RWMutex
	st *state
}

var _ repository.Store = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.view.now = now }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{st: newState()}
	s.view = &view{st: s.st, mu: &s.mu, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTx runs fn against a private copy of the data and publishes the copy
// only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&view{st: work, now: s.view.now}); err != nil {
		return err
	}
	*s.st = *work
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// view implements repository.Repository over a state.  Outside a
// transaction mu guards every call; inside one mu is nil because WithTx
// already holds the lock.
type view struct {
	st  *state
	mu  *sync.RWMutex
	now func() time.Time
}

func (v *view) rlock() func() {
	if v.mu == nil {
		return func() {}
	}
	v.mu.RLock()
	return v.mu.RUnlock
}

func (v *view) lock() func() {
	if v.mu == nil {
		return func() {}
	}
	v.mu.Lock()
	return v.mu.Unlock
}

func (v *view) stamp() time.Time { return v.now().UTC() }

// ---- Theaters ----

func (v *view) CreateTheater(_ context.Context, t *model.Theater) error {
	defer v.lock()()
	t.ID = v.st.nextID("theaters")
	t.CreatedAt = v.stamp()
	t.UpdatedAt = t.CreatedAt
	v.st.theaters[t.ID] = *t
	return nil
}

func (v *view) GetTheater(_ context.Context, id uint64) (*model.Theater, error) {
	defer v.rlock()()
	t, ok := v.st.theaters[id]
	if !ok {
		return nil, repository.ErrTheaterNotFound
	}
	return &t, nil
}

func (v *view) ListTheaters(context.Context) ([]model.Theater, error) {
	defer v.rlock()()
	out := make([]model.Theater, 0, len(v.st.theaters))
	for _, t := range v.st.theaters {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *view) UpdateTheater(_ context.Context, t *model.Theater) error {
	defer v.lock()()
	cur, ok := v.st.theaters[t.ID]
	if !ok {
		return repository.ErrTheaterNotFound
	}
	cur.Name, cur.Location, cur.TotalSeats = t.Name, t.Location, t.TotalSeats
	cur.UpdatedAt = v.stamp()
	v.st.theaters[t.ID] = cur
	*t = cur
	return nil
}

func (v *view) DeleteTheater(_ context.Context, id uint64) error {
	defer v.lock()()
	if _, ok := v.st.theaters[id]; !ok {
		return repository.ErrTheaterNotFound
	}
	for _, s := range v.st.shows {
		if s.TheaterID == id {
			return repository.ErrConflict
		}
	}
	for _, s := range v.st.seats {
		if s.TheaterID == id {
			return repository.ErrConflict
		}
	}
	delete(v.st.theaters, id)
	return nil
}

// ---- Shows ----

func (v *view) CreateShow(_ context.Context, s *model.Show) error {
	defer v.lock()()
	if _, ok := v.st.theaters[s.TheaterID]; !ok {
		return repository.ErrTheaterNotFound
	}
	s.ID = v.st.nextID("shows")
	s.StartsAt = s.StartsAt.UTC()
	s.CreatedAt = v.stamp()
	s.UpdatedAt = s.CreatedAt
	v.st.shows[s.ID] = *s
	return nil
}

func (v *view) GetShow(_ context.Context, id uint64) (*model.Show, error) {
	defer v.rlock()()
	s, ok := v.st.shows[id]
	if !ok {
		return nil, repository.ErrShowNotFound
	}
	return &s, nil
}

func (v *view) ListShows(_ context.Context, title string) ([]model.Show, error) {
	defer v.rlock()()
	needle := strings.ToLower(strings.TrimSpace(title))
	out := make([]model.Show, 0, len(v.st.shows))
	for _, s := range v.st.shows {
		if needle != "" && !strings.Contains(strings.ToLower(s.Title), needle) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) UpdateShow(_ context.Context, s *model.Show) error {
	defer v.lock()()
	cur, ok := v.st.shows[s.ID]
	if !ok {
		return repository.ErrShowNotFound
	}
	if _, ok := v.st.theaters[s.TheaterID]; !ok {
		return repository.ErrTheaterNotFound
	}
	s.StartsAt = s.StartsAt.UTC()
	s.CreatedAt = cur.CreatedAt
	s.UpdatedAt = v.stamp()
	v.st.shows[s.ID] = *s
	return nil
}

func (v *view) DeleteShow(_ context.Context, id uint64) error {
	defer v.lock()()
	if _, ok := v.st.shows[id]; !ok {
		return repository.ErrShowNotFound
	}
	for k := range v.st.confirmed {
		if k.showID == id {
			return repository.ErrConflict
		}
	}
	for rid, r := range v.st.reservations {
		if r.ShowID == id {
			v.st.dropReservation(rid)
		}
	}
	delete(v.st.shows, id)
	return nil
}

// ---- Seats ----

func (v *view) CreateSeat(_ context.Context, s *model.Seat) error {
	defer v.lock()()
	if _, ok := v.st.theaters[s.TheaterID]; !ok {
		return repository.ErrTheaterNotFound
	}
	s.ID = v.st.nextID("seats")
	s.Status = model.SeatAvailable
	s.CreatedAt = v.stamp()
	s.UpdatedAt = s.CreatedAt
	v.st.seats[s.ID] = *s
	return nil
}

func (v *view) GetSeat(_ context.Context, id uint64) (*model.Seat, error) {
	defer v.rlock()()
	s, ok := v.st.seats[id]
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	return &s, nil
}

func (v *view) ListSeats(context.Context) ([]model.Seat, error) {
	defer v.rlock()()
	return v.st.filterSeats(func(model.Seat) bool { return true }), nil
}

func (v *view) ListSeatsByTheater(_ context.Context, theaterID uint64) ([]model.Seat, error) {
	defer v.rlock()()
	return v.st.filterSeats(func(s model.Seat) bool { return s.TheaterID == theaterID }), nil
}

func (s *state) filterSeats(keep func(model.Seat) bool) []model.Seat {
	out := make([]model.Seat, 0)
	for _, seat := range s.seats {
		if keep(seat) {
			out = append(out, seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *view) UpdateSeat(_ context.Context, s *model.Seat) error {
	defer v.lock()()
	cur, ok := v.st.seats[s.ID]
	if !ok {
		return repository.ErrSeatNotFound
	}
	cur.Label, cur.Category = s.Label, s.Category
	cur.UpdatedAt = v.stamp()
	v.st.seats[s.ID] = cur
	*s = cur
	return nil
}

func (v *view) DeleteSeat(_ context.Context, id uint64) error {
	defer v.lock()()
	if _, ok := v.st.seats[id]; !ok {
		return repository.ErrSeatNotFound
	}
	for k := range v.st.confirmed {
		if k.seatID == id {
			return repository.ErrConflict
		}
	}
	for rid, r := range v.st.reservations {
		if r.SeatID == id {
			v.st.dropReservation(rid)
		}
	}
	delete(v.st.seats, id)
	return nil
}

// LockSeat only checks the seat exists: transactions already run one at a
// time under the store mutex.
func (v *view) LockSeat(_ context.Context, seatID uint64) error {
	defer v.rlock()()
	if _, ok := v.st.seats[seatID]; !ok {
		return repository.ErrSeatNotFound
	}
	return nil
}

func (v *view) SyncSeatStatus(_ context.Context, seatID uint64) (string, error) {
	defer v.lock()()
	seat, ok := v.st.seats[seatID]
	if !ok {
		return "", repository.ErrSeatNotFound
	}
	status := model.SeatAvailable
	for k := range v.st.confirmed {
		if k.seatID == seatID {
			status = model.SeatBooked
			break
		}
	}
	if seat.Status != status {
		seat.Status = status
		seat.UpdatedAt = v.stamp()
		v.st.seats[seatID] = seat
	}
	return status, nil
}

// ---- Reservations ----

func (v *view) InsertReservation(_ context.Context, r *model.Reservation) error {
	defer v.lock()()
	if _, ok := v.st.shows[r.ShowID]; !ok {
		return repository.ErrShowNotFound
	}
	if _, ok := v.st.seats[r.SeatID]; !ok {
		return repository.ErrSeatNotFound
	}
	key := slot{r.ShowID, r.SeatID}
	if r.Status == model.ReservationConfirmed {
		if _, taken := v.st.confirmed[key]; taken {
			return repository.ErrConflict
		}
	}
	r.ID = v.st.nextID("reservations")
	r.CreatedAt = v.stamp()
	r.UpdatedAt = r.CreatedAt
	v.st.reservations[r.ID] = *r
	if r.Status == model.ReservationConfirmed {
		v.st.confirmed[key] = r.ID
	}
	return nil
}

func (v *view) GetReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	defer v.rlock()()
	r, ok := v.st.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return &r, nil
}

func (v *view) SetReservationStatus(_ context.Context, id uint64, status string) error {
	defer v.lock()()
	r, ok := v.st.reservations[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	key := slot{r.ShowID, r.SeatID}
	if status == model.ReservationConfirmed && r.Status != model.ReservationConfirmed {
		if _, taken := v.st.confirmed[key]; taken {
			return repository.ErrConflict
		}
		v.st.confirmed[key] = id
	}
	if status != model.ReservationConfirmed && v.st.confirmed[key] == id {
		delete(v.st.confirmed, key)
	}
	r.Status = status
	r.UpdatedAt = v.stamp()
	v.st.reservations[id] = r
	return nil
}

func (v *view) DeleteReservation(_ context.Context, id uint64) error {
	defer v.lock()()
	if _, ok := v.st.reservations[id]; !ok {
		return repository.ErrReservationNotFound
	}
	v.st.dropReservation(id)
	return nil
}

// dropReservation deletes a reservation, releases its index entry and
// detaches its payments.
func (s *state) dropReservation(id uint64) {
	r := s.reservations[id]
	key := slot{r.ShowID, r.SeatID}
	if s.confirmed[key] == id {
		delete(s.confirmed, key)
	}
	delete(s.reservations, id)
	for pid, p := range s.payments {
		if p.ReservationID == id {
			p.ReservationID = 0
			s.payments[pid] = p
		}
	}
}

func (v *view) HasConfirmedReservation(_ context.Context, showID, seatID uint64) (bool, error) {
	defer v.rlock()()
	_, ok := v.st.confirmed[slot{showID, seatID}]
	return ok, nil
}

func (v *view) ConfirmedSeatIDs(_ context.Context, showID uint64) ([]uint64, error) {
	defer v.rlock()()
	out := make([]uint64, 0)
	for k := range v.st.confirmed {
		if k.showID == showID {
			out = append(out, k.seatID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (v *view) ListReservationsByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	defer v.rlock()()
	out := v.st.filterReservations(func(r model.Reservation) bool { return r.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (v *view) ListReservationsByShow(_ context.Context, showID uint64) ([]model.Reservation, error) {
	defer v.rlock()()
	out := v.st.filterReservations(func(r model.Reservation) bool { return r.ShowID == showID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) filterReservations(keep func(model.Reservation) bool) []model.Reservation {
	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// ---- Payments ----

func (v *view) InsertPayment(_ context.Context, p *model.Payment) error {
	defer v.lock()()
	for _, cur := range v.st.payments {
		if cur.OrderRef == p.OrderRef {
			return repository.ErrConflict
		}
	}
	p.ID = v.st.nextID("payments")
	p.CreatedAt = v.stamp()
	p.UpdatedAt = p.CreatedAt
	v.st.payments[p.ID] = *p
	return nil
}

func (v *view) GetPaymentByOrderRef(_ context.Context, orderRef string) (*model.Payment, error) {
	defer v.rlock()()
	for _, p := range v.st.payments {
		if p.OrderRef == orderRef {
			return &p, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (v *view) UpdatePayment(_ context.Context, p *model.Payment) error {
	defer v.lock()()
	cur, ok := v.st.payments[p.ID]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	cur.Status, cur.TransactionRef, cur.Signature = p.Status, p.TransactionRef, p.Signature
	cur.UpdatedAt = v.stamp()
	v.st.payments[p.ID] = cur
	*p = cur
	return nil
}

func (v *view) ListPaymentsByReservation(_ context.Context, reservationID uint64) ([]model.Payment, error) {
	defer v.rlock()()
	out := make([]model.Payment, 0)
	for _, p := range v.st.payments {
		if p.ReservationID == reservationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- Audit ----

func (v *view) InsertAuditLog(_ context.Context, a *model.AuditLog) error {
	defer v.lock()()
	a.ID = v.st.nextID("audit_logs")
	if a.CreatedAt.IsZero() {
		a.CreatedAt = v.stamp()
	}
	v.st.audit = append(v.st.audit, *a)
	return nil
}

func (v *view) ListAuditLogs(_ context.Context, limit int) ([]model.AuditLog, error) {
	defer v.rlock()()
	out := make([]model.AuditLog, 0, limit)
	for i := len(v.st.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, v.st.audit[i])
	}
	return out, nil
}
