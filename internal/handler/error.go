package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/serveis-extraordinaris/backend/internal/apperr"
)

// errorCode maps each taxonomy kind to the stable machine-readable code
// serialized in error responses.
func errorCode(k apperr.Kind) string {
	switch k {
	case apperr.KindBadRequest:
		return "BAD_REQUEST"
	case apperr.KindUnauthorized:
		return "UNAUTHORIZED"
	case apperr.KindForbidden:
		return "FORBIDDEN"
	case apperr.KindNotFound:
		return "NOT_FOUND"
	case apperr.KindConflict:
		return "CONFLICT"
	case apperr.KindValidation:
		return "VALIDATION_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// HTTPErrorHandler is the single place errors become HTTP statuses.
// Handlers and middleware return typed errors; taxonomy kinds map uniformly
// to statuses, echo's own routing errors keep their code, and anything else
// surfaces as a logged 500 with a generic message.
func HTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, map[string]any{
				"error":   http.StatusText(he.Code),
				"message": fmt.Sprint(he.Message),
			})
			return
		}

		var ae *apperr.Error
		if !errors.As(err, &ae) {
			ae = apperr.Internal(err)
		}
		if ae.Kind == apperr.KindInternal {
			log.Error().Err(ae).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		body := map[string]any{
			"error":   errorCode(ae.Kind),
			"message": ae.Message,
		}
		if len(ae.Fields) > 0 {
			body["details"] = ae.Fields
		}
		_ = c.JSON(apperr.Status(ae), body)
	}
}
