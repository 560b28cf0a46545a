package model

import "time"

const WebhookMarkerTTL = 24 * time.Hour

// 処理済みwebhookイベントのマーカー（重複排除用）。ExpiresAtを過ぎたら新規扱い。
// イベントIDはプロバイダごとの採番なので、キーは (provider, event_id)。
type WebhookEvent struct {
	Provider    string    `gorm:"type:varchar(40);primaryKey" json:"provider"`
	EventID     string    `gorm:"type:varchar(191);primaryKey" json:"event_id"`
	EventType   string    `gorm:"type:varchar(64);not null" json:"event_type"`
	Reference   string    `gorm:"type:varchar(64);index" json:"reference"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
	ExpiresAt   time.Time `gorm:"not null;index" json:"expires_at"`
}

// WebhookEventKey は (provider, event_id) を1つの文字列にしたもの。
func WebhookEventKey(provider, eventID string) string {
	return provider + ":" + eventID
}
