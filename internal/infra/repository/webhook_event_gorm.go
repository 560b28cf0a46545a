package repository

import (
	"context"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 処理済み webhook イベントのマーカー。
// 処理と同じトランザクションで入れるので、ロールバックすればマーカーも消える。
type WebhookEventGormRepository struct {
	db *gorm.DB
}

func NewWebhookEventGormRepository(db *gorm.DB) *WebhookEventGormRepository {
	return &WebhookEventGormRepository{db: db}
}

func (r *WebhookEventGormRepository) InsertMarker(ctx context.Context, ev model.WebhookEvent, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ev)
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// 既にある。期限切れなら上書きして新規扱い
	res = r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("provider = ? AND event_id = ? AND expires_at <= ?", ev.Provider, ev.EventID, now).
		Updates(map[string]any{
			"event_type":   ev.EventType,
			"reference":    ev.Reference,
			"processed_at": ev.ProcessedAt,
			"expires_at":   ev.ExpiresAt,
		})
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *WebhookEventGormRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.WebhookEvent{})
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return res.RowsAffected, nil
}
