package apperr

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Response is the JSON error body.
type Response struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Status maps err onto an HTTP status code and a client-safe message.
func Status(err error) (int, string, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return he.Code, msg, ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error(), ve.Field
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials", ""
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required", ""
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, err.Error(), ""
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, err.Error(), ""
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, err.Error(), ""
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, err.Error(), ""
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "Too many login attempts, please try again later", ""
	case errors.Is(err, ErrAnalysisFailed):
		return http.StatusBadGateway, err.Error(), ""
	}
	return http.StatusInternalServerError, "internal server error", ""
}

// HTTPErrorHandler replaces echo's default handler. Internal errors are
// logged with the request id and never echoed to the client.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg, field := Status(err)
		rid, _ := c.Get("request_id").(string)

		if code >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", code).
				Msg("request failed")
		}

		var rl *RateLimitError
		if errors.As(err, &rl) {
			c.Response().Header().Set("Retry-After", strconv.Itoa(rl.Seconds()))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, Response{Error: msg, Field: field, RequestID: rid})
		}
		if werr != nil {
			logger.Error().Err(werr).Str("request_id", rid).Msg("write error response")
		}
	}
}
