// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/handler"
	"github.com/iliyamo/ticket-booking/internal/logger"
	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/telemetry"
)

// Handlers groups the endpoint implementations.
type Handlers struct {
	Booking *handler.BookingHandler
	Catalog *handler.CatalogHandler
	Payment *handler.PaymentHandler
	Admin   *handler.AdminHandler
	Ready   *handler.ReadyHandler
}

// Options configures the middleware around the handlers.  A nil Redis
// client turns caching and rate limiting into pass-throughs.
type Options struct {
	JWTSecret string
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       *logger.Logger

	// ResponseCache replaces the Redis response cache when set.
	ResponseCache echo.MiddlewareFunc
}

// New returns an Echo instance with every route registered.
func New(h Handlers, opts Options) *echo.Echo {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(
		middleware.RequestID(),
		middleware.AccessLog(log),
		echomw.Recover(),
		telemetry.Middleware(),
	)

	RegisterRoutes(e, h.Ready)
	cache := opts.ResponseCache
	if cache == nil {
		cache = middleware.NewRedisCache(opts.Cache, opts.Redis)
	}
	RegisterPublic(e, h.Catalog, h.Payment, cache)
	RegisterCustomer(e, h.Booking, h.Payment, opts.JWTSecret,
		middleware.NewTokenBucket(opts.RateLimit, opts.Redis))
	RegisterAdmin(e, h.Catalog, h.Booking, h.Admin, opts.JWTSecret,
		middleware.PurgeCache(opts.Cache, opts.Redis))
	return e
}

// RegisterRoutes registers the liveness and readiness probes.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready.Ready)
	}
}

// RegisterPublic registers the unauthenticated catalog reads and the payment
// webhook.  Show and theater reads go through cache.  Seat reads carry the
// booking status, which changes with every booking, so they are never cached.
func RegisterPublic(e *echo.Echo, c *handler.CatalogHandler, p *handler.PaymentHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/shows", c.ListShows, cache)
	e.GET("/v1/shows/:id", c.GetShow, cache)
	e.GET("/v1/shows/:id/seats", c.ShowSeats)

	e.GET("/v1/theaters", c.ListTheaters, cache)
	e.GET("/v1/theaters/:id", c.GetTheater, cache)

	e.GET("/v1/seats", c.ListSeats)
	e.GET("/v1/seats/:id", c.GetSeat)
	e.GET("/v1/seats/theater/:theaterId", c.SeatsByTheater)

	// Authenticated by the gateway signature header.
	e.POST("/v1/payments/webhook", p.Webhook)
}

// RegisterCustomer registers the booking and payment endpoints.  They
// require a valid JWT with the CUSTOMER or ADMIN role and are rate limited
// per caller.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, p *handler.PaymentHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	auth := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin),
		limit,
	}

	g := e.Group("/v1/bookings", auth...)
	g.POST("", b.Create)
	g.GET("", b.List)
	g.GET("/availability/:showId/:seatId", b.Availability)
	g.PUT("/:id/cancel", b.Cancel)
	g.GET("/:id/ticket", b.Ticket)
	g.GET("/:id/ticket/qr", b.TicketQR)
	g.GET("/:id/payments", p.List)

	e.POST("/v1/payments/create-order", p.CreateOrder, auth...)
	e.POST("/v1/payments/verify", p.Verify, auth...)
}

// RegisterAdmin registers catalog administration, forced cancellation and
// the audit trail.  Every route requires the ADMIN role; successful writes
// purge the response cache.
func RegisterAdmin(e *echo.Echo, c *handler.CatalogHandler, b *handler.BookingHandler, a *handler.AdminHandler, jwtSecret string, purge echo.MiddlewareFunc) {
	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
		purge,
	}

	e.POST("/v1/theaters", c.CreateTheater, admin...)
	e.PUT("/v1/theaters/:id", c.UpdateTheater, admin...)
	e.DELETE("/v1/theaters/:id", c.DeleteTheater, admin...)

	e.POST("/v1/shows", c.CreateShow, admin...)
	e.PUT("/v1/shows/:id", c.UpdateShow, admin...)
	e.DELETE("/v1/shows/:id", c.DeleteShow, admin...)
	e.POST("/v1/shows/cancel-booking/:bookingId", b.ForceCancel, admin...)

	e.POST("/v1/seats", c.CreateSeat, admin...)
	e.PUT("/v1/seats/:id", c.UpdateSeat, admin...)
	e.DELETE("/v1/seats/:id", c.DeleteSeat, admin...)

	g := e.Group("/v1/admin", admin...)
	g.GET("/shows/:id/bookings", b.ShowBookings)
	g.GET("/audit-logs", a.AuditLogs)
}
