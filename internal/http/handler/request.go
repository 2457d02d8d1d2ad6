package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "project-service/pkg/errors"

	"github.com/labstack/echo/v4"
)

const maxStrictBodyBytes int64 = 1 << 20 // Keep parser bound aligned with global body limit.

func bindStrictJSON(c echo.Context, dst interface{}) error {
	if !strings.HasPrefix(strings.ToLower(c.Request().Header.Get(echo.HeaderContentType)), contentTypeJSON) {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, msgContentTypeJSONRequired)
	}

	body := io.LimitReader(c.Request().Body, maxStrictBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return apperrors.BadRequest(msgInvalidRequestBody)
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return apperrors.BadRequest(msgInvalidRequestBody)
	}

	return nil
}

// queryInt reads a non-negative integer query parameter, returning def when
// it is absent.
func queryInt(c echo.Context, name string, def int) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateIdentityRequest is a partial update; absent fields are left alone.
type UpdateIdentityRequest struct {
	Enabled *bool   `json:"enabled"`
	Role    *string `json:"role"`
}
