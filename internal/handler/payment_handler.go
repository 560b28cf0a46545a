package handler

import (
	"net/http"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/middleware"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

// g は /orders（認証済み）
func (h *PaymentHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/:id/payments/crypto", h.createCrypto)
	g.GET("/:id/payments/crypto/:sessionId", h.status(model.PaymentKindCrypto))
	g.POST("/:id/payments/traditional", h.createTraditional)
	g.GET("/:id/payments/traditional/:sessionId", h.status(model.PaymentKindTraditional))
}

func (h *PaymentHandler) createCrypto(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	out, err := h.uc.CreateCryptoInvoice(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, out)
}

func (h *PaymentHandler) createTraditional(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	out, err := h.uc.CreateTraditionalSession(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, out)
}

// 状態の参照。期限切れならこの時点で expired になる。
func (h *PaymentHandler) status(kind model.PaymentKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := middleware.UserID(c)
		if !ok {
			return echo.ErrUnauthorized
		}
		out, err := h.uc.GetSessionStatus(c.Request().Context(), userID, c.Param("id"), c.Param("sessionId"), kind)
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, out)
	}
}
