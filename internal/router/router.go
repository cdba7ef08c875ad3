package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/train-seat-reservation/internal/config"
	"github.com/iliyamo/train-seat-reservation/internal/handler"
	"github.com/iliyamo/train-seat-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance.  Currently it exposes only a health
// check, used by load balancers and monitoring to verify the service
// is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Register and
// login live under /v1/auth and need no token; /v1/me requires a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterTrains registers the train catalog surface.  Creation is
// guarded by the admin API key; the availability views are public so
// guests can browse trains before registering.
func RegisterTrains(e *echo.Echo, t *handler.TrainHandler, adminAPIKey string) {
	e.POST("/v1/trains", t.Create, middleware.AdminAPIKey(adminAPIKey))
	e.POST("/v1/availability", t.Availability)
	e.GET("/v1/trains/:id/seats", t.Seats)
}

// RegisterBookings registers the JWT-protected booking surface.  The
// booking mutation endpoints additionally run through the Redis rate
// limiter to blunt stampedes on popular trains.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.POST("/bookings", b.Create, middleware.RateLimit(rlCfg, rdb))
	g.DELETE("/bookings/:id", b.Cancel, middleware.RateLimit(rlCfg, rdb))
	g.GET("/bookings/:id", b.Get)
	g.GET("/my-bookings", b.ListMine)
}
