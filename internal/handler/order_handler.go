package handler

import (
	"net/http"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/middleware"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

// g は /orders（認証済み）。create だけレート制限を追加で通す。
func (h *OrderHandler) RegisterRoutes(g *echo.Group, createMW ...echo.MiddlewareFunc) {
	g.POST("", h.create, createMW...)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.POST("/:id/cancel", h.cancel)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	var req usecase.CreateOrderInput
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body", "")
	}

	out, err := h.uc.CreateOrder(c.Request().Context(), userID, req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return err
	}

	out, err := h.uc.ListOrders(c.Request().Context(), userID, page, limit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	out, err := h.uc.GetOrder(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	out, err := h.uc.CancelOrder(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, out)
}
