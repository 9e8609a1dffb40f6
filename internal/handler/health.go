package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"syncapp-erp-proxy/internal/codec"
	"syncapp-erp-proxy/internal/model"
	"syncapp-erp-proxy/internal/policy"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves GET /health.
type HealthHandler struct {
	origins *policy.Origins
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(origins *policy.Origins, v Version) *HealthHandler {
	return &HealthHandler{origins: origins, version: v}
}

// Health reports liveness and the origin policy in effect.
func (h *HealthHandler) Health(c echo.Context) error {
	return codec.JSON(c, http.StatusOK, model.HealthResponse{
		OK:                     true,
		Service:                model.ServiceName,
		Version:                string(h.version),
		OriginAllowlistEnabled: h.origins.Enabled(),
		AllowedOrigins:         h.origins.List(),
	})
}
