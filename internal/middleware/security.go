package middleware

import (
	"github.com/labstack/echo/v4"
)

// ResponseHardening returns an Echo middleware that marks every response as
// non-sniffable and non-cacheable. The proxy relays per-caller upstream data
// and must never be served from a shared cache.
func ResponseHardening() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderXContentTypeOptions, "nosniff")
			h.Set(echo.HeaderCacheControl, "no-store")
			return next(c)
		}
	}
}
