package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.healthz)
}

func (h *HealthHandler) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		return usecase.NewHTTPError(http.StatusServiceUnavailable, usecase.CodeRetryLater, "database unavailable").WithCause(err)
	}
	return respond(c, http.StatusOK, map[string]string{"status": "ok"})
}
