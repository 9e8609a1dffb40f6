package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"syncapp-erp-proxy/internal/codec"
	"syncapp-erp-proxy/internal/model"
	"syncapp-erp-proxy/internal/policy"
)

const (
	corsAllowMethods = "GET,POST,PUT,DELETE,OPTIONS"
	corsAllowHeaders = "content-type, authorization"
	corsMaxAge       = "86400"
)

// OriginPolicy enforces the browser origin allowlist and answers CORS
// preflights. It runs before routing so that a rejected origin never reaches
// a handler:
//   - OPTIONS: 403 with an empty body if the origin is rejected, else 204.
//   - other methods: 403 JSON envelope if the origin is rejected.
//
// With an allowlist the allowed origin is echoed back with Vary: Origin;
// without one every origin gets "*".
func OriginPolicy(origins *policy.Origins) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			allowed := origins.Allowed(origin)

			setCORSHeaders(c.Response().Header(), origins, origin, allowed)

			if c.Request().Method == http.MethodOptions {
				if !allowed {
					return c.NoContent(http.StatusForbidden)
				}
				return c.NoContent(http.StatusNoContent)
			}

			if !allowed {
				return codec.JSON(c, http.StatusForbidden, model.Failure(model.MsgOriginNotAllowed))
			}
			return next(c)
		}
	}
}

func setCORSHeaders(h http.Header, origins *policy.Origins, origin string, allowed bool) {
	if origins.Enabled() {
		h.Add(echo.HeaderVary, echo.HeaderOrigin)
		if allowed && origin != "" {
			h.Set(echo.HeaderAccessControlAllowOrigin, origin)
		}
	} else {
		h.Set(echo.HeaderAccessControlAllowOrigin, "*")
	}
	h.Set(echo.HeaderAccessControlAllowMethods, corsAllowMethods)
	h.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)
	h.Set(echo.HeaderAccessControlMaxAge, corsMaxAge)
}
