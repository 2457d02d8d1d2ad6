package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const healthCheckTimeout = 2 * time.Second

type HealthHandler struct {
	store Pinger
	log   zerolog.Logger
}

func NewHealthHandler(store Pinger, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{store: store, log: log}
}

// Check reports 200 while the identity store answers and 503 otherwise.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("identity store health check failed")
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: statusUnavailable})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: statusOK})
}
