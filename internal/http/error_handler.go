package http

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "project-service/pkg/errors"
	"project-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	jsonKeyError     = "error"
	jsonKeyRequestID = "request_id"
	unknownRequestID = "unknown"

	msgInternalServerError = "internal server error"
	msgServiceUnavailable  = "service temporarily unavailable"
)

type errorMapping struct {
	sentinel error
	code     int
	message  string
}

// errorMappings is checked in order; the first sentinel matched by errors.Is
// decides the status.
var errorMappings = []errorMapping{
	{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, "invalid username or password"},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "authentication required"},
	{apperrors.ErrForbidden, http.StatusForbidden, "access denied"},
	{apperrors.ErrNotFound, http.StatusNotFound, "resource not found"},
	{apperrors.ErrValidation, http.StatusBadRequest, "validation error"},
	{apperrors.ErrBadRequest, http.StatusBadRequest, "bad request"},
	{apperrors.ErrConflict, http.StatusConflict, "resource already exists"},
	{apperrors.ErrTooManyRequests, http.StatusTooManyRequests, "rate limit exceeded"},
	{apperrors.ErrUnavailable, http.StatusServiceUnavailable, msgServiceUnavailable},
}

// NewHTTPErrorHandler maps errors returned by handlers and middleware to
// JSON responses. Client errors carry the AppError message; server errors are
// logged in full and answered with a generic message.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, message := classify(err)

		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = unknownRequestID
		}

		if code == http.StatusUnauthorized && errors.Is(err, apperrors.ErrUnauthorized) {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}

		ev := log.Warn()
		if code >= http.StatusInternalServerError {
			ev = log.Error()
			if code == http.StatusServiceUnavailable {
				message = msgServiceUnavailable
			} else {
				message = msgInternalServerError
			}
		}
		ev.Str(jsonKeyRequestID, requestID).
			Int("status", code).
			Str("route", c.Request().Method+" "+c.Path()).
			Str("error", logger.SanitizeError(err)).
			Msg("request failed")

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{
				jsonKeyError:     message,
				jsonKeyRequestID: requestID,
			})
		}
		if err != nil {
			log.Error().Err(err).Str(jsonKeyRequestID, requestID).Msg("failed to write error response")
		}
	}
}

func classify(err error) (int, string) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		switch m := httpErr.Message.(type) {
		case nil:
		case string:
			if m != "" {
				message = m
			}
		default:
			message = fmt.Sprintf("%v", m)
		}
		return httpErr.Code, message
	}

	code, message := http.StatusInternalServerError, msgInternalServerError
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			code, message = m.code, m.message
			break
		}
	}

	var appErr *apperrors.AppError
	if code < http.StatusInternalServerError && errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	return code, message
}
