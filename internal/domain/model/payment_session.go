package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentKind string

const (
	PaymentKindCrypto      PaymentKind = "crypto"
	PaymentKindTraditional PaymentKind = "traditional"
)

type PaymentSessionStatus string

const (
	SessionStatusPending   PaymentSessionStatus = "pending"
	SessionStatusPartial   PaymentSessionStatus = "partial"
	SessionStatusConfirmed PaymentSessionStatus = "confirmed"
	SessionStatusCompleted PaymentSessionStatus = "completed"
	SessionStatusExpired   PaymentSessionStatus = "expired"
	SessionStatusFailed    PaymentSessionStatus = "failed"
)

const (
	CryptoInvoiceTTL            = 30 * time.Minute
	TraditionalSessionTTL       = 15 * time.Minute
	RequiredCryptoConfirmations = 6
)

// 種別ごとに取りうるステータス
var sessionStatusesByKind = map[PaymentKind][]PaymentSessionStatus{
	PaymentKindCrypto: {
		SessionStatusPending, SessionStatusPartial, SessionStatusConfirmed,
		SessionStatusExpired, SessionStatusFailed,
	},
	PaymentKindTraditional: {
		SessionStatusPending, SessionStatusCompleted, SessionStatusExpired, SessionStatusFailed,
	},
}

// LiveSessionStatuses は終端でないステータス（注文ごとに最大1件）。
var LiveSessionStatuses = []PaymentSessionStatus{SessionStatusPending, SessionStatusPartial}

func (k PaymentKind) Valid() bool {
	_, ok := sessionStatusesByKind[k]
	return ok
}

// TTL は種別ごとの固定の有効期限。
func (k PaymentKind) TTL() time.Duration {
	if k == PaymentKindCrypto {
		return CryptoInvoiceTTL
	}
	return TraditionalSessionTTL
}

// SuccessStatus は種別ごとの入金成功ステータス。
func (k PaymentKind) SuccessStatus() PaymentSessionStatus {
	if k == PaymentKindCrypto {
		return SessionStatusConfirmed
	}
	return SessionStatusCompleted
}

func (k PaymentKind) Allows(s PaymentSessionStatus) bool {
	for _, v := range sessionStatusesByKind[k] {
		if v == s {
			return true
		}
	}
	return false
}

func (s PaymentSessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusConfirmed, SessionStatusCompleted, SessionStatusExpired, SessionStatusFailed:
		return true
	}
	return false
}

func (s PaymentSessionStatus) IsSuccess() bool {
	return s == SessionStatusConfirmed || s == SessionStatusCompleted
}

// 1回の決済試行（暗号資産の請求書 or 従来型ゲートウェイの取引）。
// 変更するのは webhook 処理と失効処理だけ。削除はしない。
type PaymentSession struct {
	ID        string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID   string      `gorm:"type:varchar(36);not null;index" json:"order_id"`
	Kind      PaymentKind `gorm:"type:varchar(20);not null" json:"kind"`
	Provider  string      `gorm:"type:varchar(40);not null" json:"provider"`
	Reference string      `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference"`

	Amount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency string          `gorm:"type:varchar(10);not null" json:"currency"`

	Status PaymentSessionStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//crypto
	PayAddress            string `gorm:"type:varchar(128)" json:"pay_address,omitempty"`
	Confirmations         int    `gorm:"not null;default:0" json:"confirmations"`
	RequiredConfirmations int    `gorm:"not null;default:0" json:"required_confirmations"`
	TxID                  string `gorm:"type:varchar(128)" json:"txid,omitempty"`

	//支払いページ（crypto）/リダイレクト先（traditional）
	PaymentURL string `gorm:"type:varchar(512)" json:"payment_url,omitempty"`

	ReceivedAmount decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"received_amount"`
	FailureReason  string              `gorm:"type:varchar(64)" json:"failure_reason,omitempty"`

	ExpiresAt   time.Time  `gorm:"not null;index" json:"expires_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (s PaymentSession) IsLive() bool {
	return !s.Status.IsTerminal()
}

// IsStale は作成時刻+固定TTLを過ぎた pending のセッション。
// partial は入金途中なので失効させず、プロバイダの invoice.expired を待つ。
func (s PaymentSession) IsStale(now time.Time) bool {
	if s.Status != SessionStatusPending {
		return false
	}
	return !now.Before(s.CreatedAt.Add(s.Kind.TTL()))
}

// SecondsUntilExpiry は残り秒数（過ぎていたら0）。
func (s PaymentSession) SecondsUntilExpiry(now time.Time) int64 {
	d := s.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}
