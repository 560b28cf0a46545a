package handler

import (
	"io"
	"net/http"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/payment"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 署名対象の本文の上限
const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

// 認証なし（署名のみ）
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	g := e.Group("/webhooks", mw...)
	g.POST("/crypto", h.ingest(model.PaymentKindCrypto))
	g.POST("/traditional", h.ingest(model.PaymentKindTraditional))
}

func (h *WebhookHandler) ingest(kind model.PaymentKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		// 署名は生のバイト列に対して検証するので Bind は使わない
		raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
		if err != nil {
			return usecase.NewHTTPError(http.StatusBadRequest, usecase.CodeMalformedPayload, "cannot read body").WithCause(err)
		}
		if len(raw) > maxWebhookBody {
			return usecase.NewHTTPError(http.StatusRequestEntityTooLarge, usecase.CodeMalformedPayload, "payload too large")
		}

		res, err := h.uc.Ingest(c.Request().Context(), kind, raw, c.Request().Header.Get(payment.SignatureHeader))
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, res)
	}
}
