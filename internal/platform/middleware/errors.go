package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/adt/internal/platform/adterr"
)

type errorBody struct {
	Error string `json:"error"`
}

// ErrorHandler maps domain errors onto HTTP responses. Validation,
// not-found and conflict errors carry their message to the client;
// anything else is logged and returned as a generic 500 so internals
// never leak into responses.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := adterr.Status(err)
		msg := adterr.Message(err)

		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(he.Code)
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, errorBody{Error: msg})
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("writing error response")
		}
	}
}
