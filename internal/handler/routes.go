package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"syncapp-erp-proxy/internal/config"
	"syncapp-erp-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Anything
// unmatched falls through to ErrorHandler as 404; only /proxy answers 405.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler, m *metrics.Metrics) {
	e.POST("/proxy", proxy.Handle, echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))

	if cfg.Server.Health() {
		e.Any("/health", getOnly(health.Health))
	}

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}

// getOnly answers every method but GET with the not-found envelope instead
// of echo's 405.
func getOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method != http.MethodGet {
			return echo.ErrNotFound
		}
		return next(c)
	}
}
