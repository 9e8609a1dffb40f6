package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"syncapp-erp-proxy/internal/codec"
	"syncapp-erp-proxy/internal/model"
	"syncapp-erp-proxy/internal/service"
)

// ProxyHandler serves POST /proxy.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle reads the JSON payload, forwards it and always answers with a JSON
// envelope. Transport failures come back as 200 with ok:false; only policy
// (400), size (413) and decode/internal (500) failures change the status.
//
// The body cap is enforced by the BodyLimit middleware registered on the
// route; its 413 surfaces here as a read error and is rendered by ErrorHandler.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	buf, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}

	var payload model.ProxyRequest
	if len(buf) > 0 {
		if err := codec.Unmarshal(buf, &payload); err != nil {
			h.logger.Info("malformed payload", "err", err)
			return codec.JSON(c, http.StatusInternalServerError, model.Failure(err.Error()))
		}
	}

	result, err := h.service.Forward(req.Context(), &payload)
	if err != nil {
		return codec.JSON(c, http.StatusBadRequest, model.Failure(err.Error()))
	}

	return codec.JSON(c, http.StatusOK, result)
}
