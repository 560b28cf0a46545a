package server

import (
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/handler"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/middleware"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"github.com/labstack/echo/v4"
)

// Handlers はルーティングに必要な部品。Debug が nil ならデバッグ用ルートは登録しない。
type Handlers struct {
	JWTSecret string
	Users     repository.UserRepository

	// ユーザーごとの注文作成制限・IPごとの webhook 制限（nil なら制限なし）
	OrderLimiter   *middleware.KeyedRateLimiter
	WebhookLimiter *middleware.KeyedRateLimiter
	AuthLimiter    *middleware.KeyedRateLimiter

	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Order   *handler.OrderHandler
	Payment *handler.PaymentHandler
	Webhook *handler.WebhookHandler
	Admin   *handler.AdminOrderHandler
	Debug   *handler.DebugHandler
}

func RegisterRoutes(e *echo.Echo, h Handlers) {
	h.Health.RegisterRoutes(e)
	h.Auth.RegisterRoutes(e, limitBy(h.AuthLimiter, middleware.RateLimitByIP)...)
	h.Webhook.RegisterRoutes(e, limitBy(h.WebhookLimiter, middleware.RateLimitByIP)...)

	authed := []echo.MiddlewareFunc{middleware.AuthJWT(h.JWTSecret)}
	if h.Users != nil {
		authed = append(authed, middleware.ActiveUserGuard(h.Users))
	}

	orders := e.Group("/orders", authed...)
	h.Order.RegisterRoutes(orders, limitBy(h.OrderLimiter, middleware.RateLimitByUser)...)
	h.Payment.RegisterRoutes(orders)

	admin := e.Group("/admin", append(authed, middleware.AdminRoleGuard())...)
	h.Admin.RegisterRoutes(admin)

	if h.Debug != nil {
		h.Debug.RegisterRoutes(e)
	}
}

func limitBy(l *middleware.KeyedRateLimiter, mw func(*middleware.KeyedRateLimiter) echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if l == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw(l)}
}
