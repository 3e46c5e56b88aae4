package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/service"
)

// CatalogHandler serves theaters, shows and seats.  Show times are rendered
// in Zone.
type CatalogHandler struct {
	Catalog *service.Catalog
	Booking *service.Booking
	Zone    *time.Location
}

// NewCatalogHandler panics on a nil service.
func NewCatalogHandler(cat *service.Catalog, b *service.Booking, zone *time.Location) *CatalogHandler {
	if cat == nil || b == nil {
		panic("nil service passed to NewCatalogHandler")
	}
	if zone == nil {
		zone = time.UTC
	}
	return &CatalogHandler{Catalog: cat, Booking: b, Zone: zone}
}

// TheaterResponse is a theater as returned by the API.
type TheaterResponse struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	TotalSeats uint32 `json:"total_seats"`
}

// ShowResponse is a show as returned by the API.
type ShowResponse struct {
	ID              uint64 `json:"id"`
	TheaterID       uint64 `json:"theater_id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	StartsAt        string `json:"starts_at"`
	DurationMinutes uint32 `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	ImageURL        string `json:"image_url,omitempty"`
}

// SeatResponse is a seat as returned by the API.
type SeatResponse struct {
	ID        uint64 `json:"id"`
	TheaterID uint64 `json:"theater_id"`
	Label     string `json:"label"`
	Category  string `json:"category"`
	Status    string `json:"status"`
}

func toTheater(t model.Theater) TheaterResponse {
	return TheaterResponse{ID: t.ID, Name: t.Name, Location: t.Location, TotalSeats: t.TotalSeats}
}

func (h *CatalogHandler) toShow(s model.Show) ShowResponse {
	return ShowResponse{
		ID:              s.ID,
		TheaterID:       s.TheaterID,
		Title:           s.Title,
		Description:     s.Description,
		StartsAt:        service.DisplayTime(s.StartsAt, h.Zone),
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.PriceCents,
		ImageURL:        s.ImageURL,
	}
}

func toSeat(s model.Seat) SeatResponse {
	return SeatResponse{ID: s.ID, TheaterID: s.TheaterID, Label: s.Label, Category: s.Category, Status: s.Status}
}

// ---- Shows ----

// ListShows handles GET /v1/shows?title=.
func (h *CatalogHandler) ListShows(c echo.Context) error {
	shows, err := h.Catalog.ListShows(c.Request().Context(), c.QueryParam("title"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]ShowResponse, 0, len(shows))
	for _, s := range shows {
		out = append(out, h.toShow(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetShow handles GET /v1/shows/:id.
func (h *CatalogHandler) GetShow(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	s, err := h.Catalog.GetShow(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.toShow(*s))
}

// ShowSeats handles GET /v1/shows/:id/seats with per-show availability.
func (h *CatalogHandler) ShowSeats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	seats, err := h.Booking.ShowSeats(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": id, "items": seats})
}

type showRequest struct {
	TheaterID       uint64 `json:"theater_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	StartsAt        string `json:"starts_at"`
	DurationMinutes uint32 `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	ImageURL        string `json:"image_url"`
}

// bindShow decodes a show body.  When ok is false the response has been
// written and err is what the handler must return.
func (h *CatalogHandler) bindShow(c echo.Context) (service.ShowInput, bool, error) {
	var body showRequest
	if err := c.Bind(&body); err != nil {
		return service.ShowInput{}, false, badRequest(c, "invalid request body")
	}
	in := service.ShowInput{
		TheaterID:       body.TheaterID,
		Title:           body.Title,
		Description:     body.Description,
		DurationMinutes: body.DurationMinutes,
		PriceCents:      body.PriceCents,
		ImageURL:        body.ImageURL,
	}
	if strings.TrimSpace(body.StartsAt) != "" {
		at, err := service.ParseShowTime(strings.TrimSpace(body.StartsAt), h.Zone)
		if err != nil {
			return service.ShowInput{}, false, respondError(c, err)
		}
		in.StartsAt = at
	}
	return in, true, nil
}

// CreateShow handles POST /v1/shows.  Admin only.
func (h *CatalogHandler) CreateShow(c echo.Context) error {
	in, ok, err := h.bindShow(c)
	if !ok {
		return err
	}
	s, err := h.Catalog.CreateShow(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, h.toShow(*s))
}

// UpdateShow handles PUT /v1/shows/:id.  Admin only.
func (h *CatalogHandler) UpdateShow(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	in, ok, err := h.bindShow(c)
	if !ok {
		return err
	}
	s, err := h.Catalog.UpdateShow(c.Request().Context(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.toShow(*s))
}

// DeleteShow handles DELETE /v1/shows/:id.  Admin only.
func (h *CatalogHandler) DeleteShow(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	if err := h.Catalog.DeleteShow(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- Theaters ----

// ListTheaters handles GET /v1/theaters.
func (h *CatalogHandler) ListTheaters(c echo.Context) error {
	ts, err := h.Catalog.ListTheaters(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]TheaterResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTheater(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetTheater handles GET /v1/theaters/:id.
func (h *CatalogHandler) GetTheater(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid theater id")
	}
	t, err := h.Catalog.GetTheater(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toTheater(*t))
}

// CreateTheater handles POST /v1/theaters.  Admin only.
func (h *CatalogHandler) CreateTheater(c echo.Context) error {
	var in service.TheaterInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	t, err := h.Catalog.CreateTheater(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toTheater(*t))
}

// UpdateTheater handles PUT /v1/theaters/:id.  Admin only.
func (h *CatalogHandler) UpdateTheater(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid theater id")
	}
	var in service.TheaterInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	t, err := h.Catalog.UpdateTheater(c.Request().Context(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toTheater(*t))
}

// DeleteTheater handles DELETE /v1/theaters/:id.  Admin only.
func (h *CatalogHandler) DeleteTheater(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid theater id")
	}
	if err := h.Catalog.DeleteTheater(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- Seats ----

// ListSeats handles GET /v1/seats.
func (h *CatalogHandler) ListSeats(c echo.Context) error {
	seats, err := h.Catalog.ListSeats(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": seatList(seats)})
}

// GetSeat handles GET /v1/seats/:id.
func (h *CatalogHandler) GetSeat(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid seat id")
	}
	s, err := h.Catalog.GetSeat(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toSeat(*s))
}

// SeatsByTheater handles GET /v1/seats/theater/:theaterId.
func (h *CatalogHandler) SeatsByTheater(c echo.Context) error {
	id, ok := pathID(c, "theaterId")
	if !ok {
		return badRequest(c, "invalid theater id")
	}
	seats, err := h.Catalog.SeatsByTheater(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": seatList(seats)})
}

// CreateSeat handles POST /v1/seats.  Admin only.  Any status in the body
// is ignored.
func (h *CatalogHandler) CreateSeat(c echo.Context) error {
	var in service.SeatInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	s, err := h.Catalog.CreateSeat(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toSeat(*s))
}

// UpdateSeat handles PUT /v1/seats/:id.  Admin only.
func (h *CatalogHandler) UpdateSeat(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid seat id")
	}
	var in service.SeatInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	s, err := h.Catalog.UpdateSeat(c.Request().Context(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toSeat(*s))
}

// DeleteSeat handles DELETE /v1/seats/:id.  Admin only.
func (h *CatalogHandler) DeleteSeat(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid seat id")
	}
	if err := h.Catalog.DeleteSeat(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func seatList(seats []model.Seat) []SeatResponse {
	out := make([]SeatResponse, 0, len(seats))
	for _, s := range seats {
		out = append(out, toSeat(s))
	}
	return out
}
