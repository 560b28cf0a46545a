package repository

import (
	"context"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
)

type PaymentSessionRepository interface {
	Create(ctx context.Context, s model.PaymentSession) error
	FindByID(ctx context.Context, id string) (model.PaymentSession, error)
	FindByReference(ctx context.Context, reference string) (model.PaymentSession, error)
	// webhook用：参照番号で行ロック付き取得
	FindByReferenceForUpdate(ctx context.Context, reference string) (model.PaymentSession, error)
	// 注文の終端でないセッション（あれば1件）
	FindLiveByOrderID(ctx context.Context, orderID string) (model.PaymentSession, bool, error)
	ListByOrderID(ctx context.Context, orderID string) ([]model.PaymentSession, error)
	// 期限切れ候補（pending かつ expires_at <= now）を古い順に
	ListStale(ctx context.Context, now time.Time, limit int) ([]model.PaymentSession, error)
	Update(ctx context.Context, s model.PaymentSession) error
}

type WebhookEventRepository interface {
	// マーカーを挿入する。有効な既存マーカーがあれば false（重複）。
	// 期限切れの既存マーカーは上書きして true。
	InsertMarker(ctx context.Context, ev model.WebhookEvent, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
