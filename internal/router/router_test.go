package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/handler"
	"github.com/iliyamo/ticket-booking/internal/logger"
	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/payment"
	"github.com/iliyamo/ticket-booking/internal/repository/memory"
	"github.com/iliyamo/ticket-booking/internal/repository/repotest"
	"github.com/iliyamo/ticket-booking/internal/router"
	"github.com/iliyamo/ticket-booking/internal/service"
	"github.com/iliyamo/ticket-booking/internal/utils"
)

const secret = "router-test-secret"

var ist = time.FixedZone("IST", 5*3600+1800)

type server struct {
	e  *echo.Echo
	st *memory.Store
	fx repotest.Fixture
	gw *payment.MockGateway
}

func newServer(t *testing.T, mutate ...func(*router.Options)) *server {
	t.Helper()
	st := memory.New()
	s := &server{st: st, fx: repotest.Seed(t, st), gw: payment.NewMockGateway("mock-secret")}

	opts := service.Options{Zone: ist, Log: logger.Nop()}
	booking := service.NewBooking(st, opts)
	catalog := service.NewCatalog(st, opts)
	payments := service.NewPayments(st, s.gw, opts)

	handlers := router.Handlers{
		Booking: handler.NewBookingHandler(booking),
		Catalog: handler.NewCatalogHandler(catalog, booking, ist),
		Payment: handler.NewPaymentHandler(payments, s.gw.SignatureHeader()),
		Admin:   handler.NewAdminHandler(service.NewAudit(st)),
		Ready: &handler.ReadyHandler{Checks: map[string]handler.Pinger{
			"store": st,
		}},
	}
	ro := router.Options{JWTSecret: secret, Log: logger.Nop()}
	for _, m := range mutate {
		m(&ro)
	}
	s.e = router.New(handlers, ro)
	return s
}

// responseCache is an in-process stand-in for the Redis cache: it replays
// the first 200 body seen for a URL.
type responseCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

type bodyRecorder struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (rc *responseCache) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().URL.String()
		rc.mu.Lock()
		body, ok := rc.entries[key]
		rc.mu.Unlock()
		if ok {
			c.Response().Header().Set("X-Cache", "HIT")
			return c.JSONBlob(http.StatusOK, body)
		}
		rec := &bodyRecorder{ResponseWriter: c.Response().Writer}
		c.Response().Writer = rec
		if err := next(c); err != nil {
			return err
		}
		if c.Response().Status == http.StatusOK {
			rc.mu.Lock()
			rc.entries[key] = rec.buf.Bytes()
			rc.mu.Unlock()
		}
		return nil
	}
}

func bearer(t *testing.T, uid uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func (s *server) do(t *testing.T, method, path string, body any, tok string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		bs, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *server) book(t *testing.T, tok string, seatID uint64) *httptest.ResponseRecorder {
	return s.do(t, http.MethodPost, "/v1/bookings", map[string]uint64{"show_id": s.fx.Show.ID, "seat_id": seatID}, tok)
}

func TestProbes(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestReadyReportsFailedCheck(t *testing.T) {
	h := &handler.ReadyHandler{Checks: map[string]handler.Pinger{
		"broker": handler.PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}}
	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, h.Ready(e.NewContext(httptest.NewRequest(http.MethodGet, "/readyz", nil), rec)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"ready":false,"checks":{"broker":"connection refused"}}`, rec.Body.String())
}

func TestBookingRequiresToken(t *testing.T) {
	s := newServer(t)
	rec := s.book(t, "", s.fx.SeatA.ID)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingLifecycle(t *testing.T) {
	s := newServer(t)
	u1, u2 := bearer(t, 1, middleware.RoleCustomer), bearer(t, 2, middleware.RoleCustomer)
	availability := fmt.Sprintf("/v1/bookings/availability/%d/%d", s.fx.Show.ID, s.fx.SeatA.ID)

	rec := s.book(t, u1, s.fx.SeatA.ID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, model.ReservationConfirmed, created["status"])
	id := uint64(created["booking_id"].(float64))

	rec = s.book(t, u2, s.fx.SeatA.ID)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"seat already booked"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, availability, nil, u2)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"is_available":false}`, rec.Body.String())

	cancelPath := fmt.Sprintf("/v1/bookings/%d/cancel", id)
	rec = s.do(t, http.MethodPut, cancelPath, nil, u2)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, cancelPath, nil, u1)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, fmt.Sprintf(`{"booking_id":%d,"seat_id":%d,"seat_status":"AVAILABLE"}`, id, s.fx.SeatA.ID), rec.Body.String())

	rec = s.do(t, http.MethodGet, availability, nil, u2)
	assert.JSONEq(t, `{"is_available":true}`, rec.Body.String())

	rec = s.book(t, u2, s.fx.SeatA.ID)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/bookings", nil, u1)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, model.ReservationCancelled, items[0].(map[string]any)["status"])
}

func TestConcurrentBookingsOverHTTP(t *testing.T) {
	s := newServer(t)
	const n = 10
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = bearer(t, uint64(i+1), middleware.RoleCustomer)
	}
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = s.book(t, tokens[i], s.fx.SeatB.ID).Code
		}(i)
	}
	wg.Wait()

	var created, conflicts int
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

func TestBookingValidation(t *testing.T) {
	s := newServer(t)
	tok := bearer(t, 1, middleware.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/v1/bookings", `{"show_id":`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/bookings", map[string]uint64{"show_id": s.fx.Show.ID}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	past := model.Show{TheaterID: s.fx.Theater.ID, Title: "Yesterday", StartsAt: time.Now().Add(-time.Hour), DurationMinutes: 90, PriceCents: 100}
	require.NoError(t, s.st.CreateShow(context.Background(), &past))
	rec = s.do(t, http.MethodPost, "/v1/bookings", map[string]uint64{"show_id": past.ID, "seat_id": s.fx.SeatA.ID}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"cannot book past show"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/bookings/availability/abc/1", nil, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTicketDownloads(t *testing.T) {
	s := newServer(t)
	tok := bearer(t, 1, middleware.RoleCustomer)
	rec := s.book(t, tok, s.fx.SeatA.ID)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := uint64(decode(t, rec)["booking_id"].(float64))

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/bookings/%d/ticket", id), nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/bookings/%d/ticket/qr?size=10", id), nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/bookings/%d/ticket", id), nil, bearer(t, 2, middleware.RoleCustomer))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicCatalog(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/v1/shows?title=night", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.True(t, strings.HasSuffix(items[0].(map[string]any)["starts_at"].(string), "+05:30"))

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d", s.fx.Show.ID+100), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d/seats", s.fx.Show.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 2)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/seats/theater/%d", s.fx.Theater.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 2)

	rec = s.do(t, http.MethodGet, "/v1/theaters", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t)
	admin := bearer(t, 99, middleware.RoleAdmin)
	customer := bearer(t, 1, middleware.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/v1/theaters", map[string]any{"name": "Screen 2"}, customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/theaters", map[string]any{"name": "Screen 2", "location": "Mumbai", "total_seats": 10}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	theaterID := uint64(decode(t, rec)["id"].(float64))

	start := time.Now().In(ist).Add(48 * time.Hour).Format("2006-01-02T15:04")
	rec = s.do(t, http.MethodPost, "/v1/shows", map[string]any{
		"theater_id": theaterID, "title": "Monsoon", "starts_at": start, "duration_minutes": 110, "price_cents": 30000,
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, start+":00+05:30", decode(t, rec)["starts_at"])

	rec = s.do(t, http.MethodPost, "/v1/shows", map[string]any{
		"theater_id": theaterID, "title": "Monsoon", "starts_at": "tomorrow", "duration_minutes": 110, "price_cents": 30000,
	}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/seats", map[string]any{"theater_id": theaterID, "label": "B1", "status": "BOOKED"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	seat := decode(t, rec)
	assert.Equal(t, model.SeatAvailable, seat["status"])
	assert.Equal(t, "STANDARD", seat["category"])

	require.Equal(t, http.StatusCreated, s.book(t, customer, s.fx.SeatA.ID).Code)
	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/v1/shows/%d", s.fx.Show.ID), nil, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/admin/shows/%d/bookings", s.fx.Show.ID), nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	bookingID := uint64(items[0].(map[string]any)["booking_id"].(float64))

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/v1/shows/cancel-booking/%d", bookingID), nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"booking cancelled"}`, rec.Body.String())

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/v1/shows/%d", s.fx.Show.ID), nil, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuditLogs(t *testing.T) {
	s := newServer(t)
	admin := bearer(t, 99, middleware.RoleAdmin)
	for _, action := range []string{"reservation.confirmed", "reservation.cancelled"} {
		require.NoError(t, s.st.InsertAuditLog(context.Background(), &model.AuditLog{UserID: 1, Action: action, Details: "{}"}))
	}

	rec := s.do(t, http.MethodGet, "/v1/admin/audit-logs?limit=1", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "reservation.cancelled", items[0].(map[string]any)["action"])

	rec = s.do(t, http.MethodGet, "/v1/admin/audit-logs?limit=x", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentFlow(t *testing.T) {
	s := newServer(t)
	tok := bearer(t, 1, middleware.RoleCustomer)
	rec := s.book(t, tok, s.fx.SeatA.ID)
	require.Equal(t, http.StatusCreated, rec.Code)
	bookingID := uint64(decode(t, rec)["booking_id"].(float64))

	rec = s.do(t, http.MethodPost, "/v1/payments/create-order", map[string]uint64{"booking_id": bookingID}, bearer(t, 2, middleware.RoleCustomer))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/payments/create-order", map[string]uint64{"booking_id": bookingID}, tok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode(t, rec)
	assert.EqualValues(t, s.fx.Show.PriceCents, order["amount"])
	orderRef := order["order_id"].(string)

	txn := s.gw.NewTransactionRef()
	rec = s.do(t, http.MethodPost, "/v1/payments/verify", map[string]any{
		"booking_id": bookingID, "order_id": orderRef, "payment_id": txn, "signature": "00",
	}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid payment signature"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/v1/payments/verify", map[string]any{
		"booking_id": bookingID, "order_id": orderRef, "payment_id": txn, "signature": s.gw.Sign(orderRef, txn),
	}, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pm := decode(t, rec)["payment"].(map[string]any)
	assert.Equal(t, model.PaymentCompleted, pm["status"])
	assert.NotContains(t, pm, "signature")

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/bookings/%d/payments", bookingID), nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)
}

func TestPaymentWebhook(t *testing.T) {
	s := newServer(t)
	tok := bearer(t, 1, middleware.RoleCustomer)
	rec := s.book(t, tok, s.fx.SeatA.ID)
	require.Equal(t, http.StatusCreated, rec.Code)
	bookingID := uint64(decode(t, rec)["booking_id"].(float64))
	rec = s.do(t, http.MethodPost, "/v1/payments/create-order", map[string]uint64{"booking_id": bookingID}, tok)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderRef := decode(t, rec)["order_id"].(string)

	payload, err := json.Marshal(map[string]any{
		"event": "payment.captured", "order_ref": orderRef, "transaction_ref": s.gw.NewTransactionRef(),
		"user_id": 1, "reservation_id": bookingID,
	})
	require.NoError(t, err)

	send := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", bytes.NewReader(payload))
		req.Header.Set(s.gw.SignatureHeader(), sig)
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		return rec
	}

	rec = send("deadbeef")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid webhook signature"}`, rec.Body.String())

	rec = send(s.gw.SignPayload(payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := s.st.GetPaymentByOrderRef(context.Background(), orderRef)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, got.Status)
}

func TestSeatStatusIsNeverServedFromCache(t *testing.T) {
	rc := &responseCache{entries: map[string][]byte{}}
	s := newServer(t, func(o *router.Options) { o.ResponseCache = rc.middleware })
	tok := bearer(t, 1, middleware.RoleCustomer)

	showPath := fmt.Sprintf("/v1/shows/%d", s.fx.Show.ID)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, showPath, nil, "").Code)
	rec := s.do(t, http.MethodGet, showPath, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	seatPath := fmt.Sprintf("/v1/seats/%d", s.fx.SeatA.ID)
	theaterPath := fmt.Sprintf("/v1/seats/theater/%d", s.fx.Theater.ID)
	statusOf := func(t *testing.T) (single, listed, byTheater any) {
		t.Helper()
		rec := s.do(t, http.MethodGet, seatPath, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
		single = decode(t, rec)["status"]

		find := func(path string) any {
			rec := s.do(t, http.MethodGet, path, nil, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, rec.Header().Get("X-Cache"))
			for _, it := range decode(t, rec)["items"].([]any) {
				seat := it.(map[string]any)
				if uint64(seat["id"].(float64)) == s.fx.SeatA.ID {
					return seat["status"]
				}
			}
			t.Fatalf("seat %d missing from %s", s.fx.SeatA.ID, path)
			return nil
		}
		return single, find("/v1/seats"), find(theaterPath)
	}

	a, b, c := statusOf(t)
	assert.Equal(t, []any{model.SeatAvailable, model.SeatAvailable, model.SeatAvailable}, []any{a, b, c})

	rec = s.book(t, tok, s.fx.SeatA.ID)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := uint64(decode(t, rec)["booking_id"].(float64))
	a, b, c = statusOf(t)
	assert.Equal(t, []any{model.SeatBooked, model.SeatBooked, model.SeatBooked}, []any{a, b, c})

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, fmt.Sprintf("/v1/bookings/%d/cancel", id), nil, tok).Code)
	a, b, c = statusOf(t)
	assert.Equal(t, []any{model.SeatAvailable, model.SeatAvailable, model.SeatAvailable}, []any{a, b, c})
}
