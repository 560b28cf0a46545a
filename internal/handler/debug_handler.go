package handler

import (
	"net/http"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

// DebugHandler はデバッグビルドでだけ登録する。
type DebugHandler struct {
	uc *usecase.DebugUsecase
}

func NewDebugHandler(uc *usecase.DebugUsecase) *DebugHandler {
	return &DebugHandler{uc: uc}
}

func (h *DebugHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/debug/payments/traditional/:sessionId/complete", h.forceComplete)
}

func (h *DebugHandler) forceComplete(c echo.Context) error {
	out, err := h.uc.ForceCompleteTraditional(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, out)
}
