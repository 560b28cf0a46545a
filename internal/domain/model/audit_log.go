package model

import "time"

type AuditAction string

const (
	//注文ステータスの遷移
	AuditActionOrderTransition AuditAction = "ORDER_STATUS_TRANSITION"
	//決済セッションのステータス変更
	AuditActionSessionTransition AuditAction = "PAYMENT_SESSION_TRANSITION"
	//決済セッション作成
	AuditActionSessionCreated AuditAction = "PAYMENT_SESSION_CREATED"
	//在庫の引当/戻し
	AuditActionStockReserved AuditAction = "STOCK_RESERVED"
	AuditActionStockRestored AuditAction = "STOCK_RESTORED"
)

type AuditResourceType string

const (
	AuditResourceOrder          AuditResourceType = "order"
	AuditResourcePaymentSession AuditResourceType = "payment_session"
	AuditResourceProduct        AuditResourceType = "product"
)

// 監査ログ。「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//customer:<id> / admin:<id> / webhook:<provider> / system:sweeper
	Actor string `gorm:"type:varchar(80);not null;index" json:"actor"`

	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   string            `gorm:"type:varchar(64);not null;index" json:"resource_id"`

	//webhook起因のときのイベントID
	EventID string `gorm:"type:varchar(191);index" json:"event_id,omitempty"`

	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
