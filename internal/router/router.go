// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/parking-slot-reservation/internal/config"
	"github.com/iliyamo/parking-slot-reservation/internal/handler"
	"github.com/iliyamo/parking-slot-reservation/internal/logging"
	"github.com/iliyamo/parking-slot-reservation/internal/middleware"
	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

// Handlers are the endpoint groups served by the API.
type Handlers struct {
	Auth     *handler.AuthHandler
	Bookings *handler.BookingHandler
	Public   *handler.PublicHandler
	Admin    *handler.AdminHandler
	DB       handler.Pinger
}

// Options carry the middleware settings.  A nil Redis client makes the
// rate limiter fall back to in-process buckets and disables the cache.
type Options struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
	Logger    *logging.Logger
}

// New builds an echo instance with the common middleware and every route
// registered.
func New(h Handlers, opt Options) *echo.Echo {
	if opt.Logger == nil {
		opt.Logger = logging.Discard()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(opt.Logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))

	limiter := middleware.NewTokenBucket(opt.RateLimit, opt.Redis)

	RegisterRoutes(e, h.DB)
	RegisterAuth(e, h.Auth, opt.JWTSecret, limiter)
	RegisterPublic(e, h.Public, limiter, middleware.NewRedisCache(opt.Cache, opt.Redis))
	RegisterBookings(e, h.Bookings, opt.JWTSecret, limiter)
	RegisterAdmin(e, h.Admin, opt.JWTSecret)
	return e
}

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// protected /v1/me.  Logout does not require JWT so that a refresh token
// alone can end a session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin))
}

// RegisterPublic registers the guest browse endpoints.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1", mw...)
	g.GET("/floors", p.Floors)
	g.GET("/floors/:id/slots", p.FloorSlots)
	g.GET("/slots/:id/availability", p.SlotAvailability)
}

// RegisterBookings registers the endpoints of signed-in users.
// Ownership is checked in the handlers.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/bookings",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
		limiter,
	)
	g.POST("", b.Create)
	g.GET("/history", b.History)
	g.GET("/:id", b.Get)
	g.PUT("/:id", b.Update)
	g.PUT("/:id/cancel", b.Cancel)
	g.GET("/:id/receipt", b.Receipt)
}

// RegisterAdmin registers the ADMIN-only endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/stats", a.Stats)

	// ---- Users ----
	g.GET("/users", a.Users)
	g.PUT("/users/:id/role", a.SetUserRole)
	g.DELETE("/users/:id", a.DeleteUser)

	// ---- Bookings ----
	g.GET("/bookings", a.ListBookings)
	g.PUT("/bookings/:id/cancel", a.CancelBooking)
	g.DELETE("/bookings/:id", a.DeleteBooking)

	// ---- Floors ----
	g.GET("/floors", a.Floors)
	g.POST("/floors", a.CreateFloor)
	g.PUT("/floors/:id", a.UpdateFloor)
	g.DELETE("/floors/:id", a.DeleteFloor)
	g.GET("/floors/:id/slots", a.FloorSlots)

	// ---- Slots ----
	g.POST("/slots", a.CreateSlot)
	g.PUT("/slots/:id", a.UpdateSlot)
	g.DELETE("/slots/:id", a.DeleteSlot)
}
