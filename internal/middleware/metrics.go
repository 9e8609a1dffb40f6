package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"syncapp-erp-proxy/internal/metrics"
)

// RequestMetrics returns an Echo middleware that records Prometheus metrics
// for each inbound request, preflights and rejected origins included.
//
// Errors from the chain are rendered here through c.Error, so the recorded
// status is the committed one and outer middleware sees a nil error.
func RequestMetrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			observeRequest(m, c, time.Since(start))
			return nil
		}
	}
}

func observeRequest(m *metrics.Metrics, c echo.Context, elapsed time.Duration) {
	method := metrics.NormalizeMethod(c.Request().Method)
	status := strconv.Itoa(c.Response().Status)
	path := metrics.NormalizePath(c.Request().URL.Path)

	m.RequestsTotal.WithLabelValues(method, status, path).Inc()
	m.RequestDuration.WithLabelValues(method, status, path).Observe(elapsed.Seconds())
}
