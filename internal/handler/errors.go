package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"syncapp-erp-proxy/internal/codec"
	"syncapp-erp-proxy/internal/model"
)

// ErrorHandler replaces echo's default error handler so that every error,
// including unknown routes and recovered panics, is answered with a JSON envelope.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}

		var body any
		switch code {
		case http.StatusNotFound:
			body = model.NotFound()
		case http.StatusMethodNotAllowed:
			body = model.MethodNotAllowed()
		case http.StatusRequestEntityTooLarge:
			// The rest of the upload is never read; drop the connection.
			c.Response().Header().Set(echo.HeaderConnection, "close")
			body = model.Failure(model.MsgBodyTooLarge)
		default:
			body = model.Failure(msg)
		}

		if code >= http.StatusInternalServerError {
			logger.Error("request failed",
				"err", err,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = codec.JSON(c, code, body)
		}
		if werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}
