package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"project-service/internal/auth"
	apperrors "project-service/pkg/errors"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"unauthenticated", apperrors.Unauthorized("authentication required"), http.StatusUnauthorized, "authentication required"},
		{"invalid credentials", apperrors.InvalidCredentials(), http.StatusUnauthorized, "invalid username or password"},
		{"forbidden", apperrors.Forbidden("access denied"), http.StatusForbidden, "access denied"},
		{"not found", apperrors.NotFound("identity not found"), http.StatusNotFound, "identity not found"},
		{"validation", apperrors.Validation("username cannot be empty"), http.StatusBadRequest, "username cannot be empty"},
		{"conflict", apperrors.Conflict("username already exists"), http.StatusConflict, "username already exists"},
		{"too many", apperrors.TooManyRequests("rate limit exceeded"), http.StatusTooManyRequests, "rate limit exceeded"},
		{"store unavailable", apperrors.Unavailable("identity lookup failed", errors.New("dial tcp 10.0.0.5:5432")), http.StatusServiceUnavailable, msgServiceUnavailable},
		{"auth sentinel", auth.ErrStoreUnavailable, http.StatusServiceUnavailable, msgServiceUnavailable},
		{"internal", apperrors.InternalServer("failed to issue token", errors.New("hmac broke")), http.StatusInternalServerError, msgInternalServerError},
		{"plain error", errors.New("pq: password authentication failed"), http.StatusInternalServerError, msgInternalServerError},
		{"echo error", echo.NewHTTPError(http.StatusUnsupportedMediaType, "content type must be application/json"), http.StatusUnsupportedMediaType, "content type must be application/json"},
		{"echo not found", echo.ErrNotFound, http.StatusNotFound, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/me", nil), rec)
			c.Response().Header().Set(echo.HeaderXRequestID, "req-7")

			NewHTTPErrorHandler(zerolog.New(&logs))(tt.err, c)

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body["error"])
			assert.Equal(t, "req-7", body["request_id"])
			assert.Contains(t, logs.String(), "req-7")

			if tt.code >= http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "10.0.0.5")
				assert.NotContains(t, rec.Body.String(), "hmac")
			}
		})
	}
}

func TestHTTPErrorHandlerChallenge(t *testing.T) {
	e := echo.New()
	handle := NewHTTPErrorHandler(zerolog.Nop())

	rec := httptest.NewRecorder()
	handle(auth.ErrUnauthenticated, e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = httptest.NewRecorder()
	handle(apperrors.InvalidCredentials(), e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/login", nil), rec))
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, unknownRequestID, body["request_id"])
}
