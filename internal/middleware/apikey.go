package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminAPIKey returns a middleware that guards administrative routes
// with a static X-API-Key header.  The train catalog surface uses it
// instead of JWT auth: trains are provisioned by an operations
// workflow, not by end users.  Comparison is constant time.
func AdminAPIKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get("X-API-Key")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid API key"})
			}
			return next(c)
		}
	}
}
