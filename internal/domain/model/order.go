package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/money"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusToShip         OrderStatus = "to_ship"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

const orderNumberPrefix = "ORD"

var (
	// 未知のステータス
	ErrInvalidStatus = errors.New("invalid order status")
	// 遷移表にない遷移
	ErrIllegalTransition = errors.New("illegal order status transition")
)

// 許可された遷移だけを列挙する。ここにない組み合わせはすべて拒否。
// processing -> pending_payment は決済セッションの失効/失敗による差し戻し。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusToShip, OrderStatusCancelled, OrderStatusPendingPayment},
	OrderStatusToShip:         {OrderStatusShipped},
	OrderStatusShipped:        {OrderStatusDelivered},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
}

// ParseOrderStatus は文字列を既知のステータスに変換する。
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.TrimSpace(strings.ToLower(s)))
	if _, ok := orderTransitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, n := range orderTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID          string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      *string `gorm:"type:varchar(36);index" json:"user_id"`
	OrderNumber string  `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`

	Subtotal decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Tax      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	Shipping decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping"`
	Total    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`

	Status OrderStatus `gorm:"type:varchar(32);not null;index" json:"status"`

	//注文時点の住所（以後変更しない）
	ShippingAddress datatypes.JSONType[AddressSnapshot] `json:"shipping_address"`
	BillingAddress  datatypes.JSONType[AddressSnapshot] `json:"billing_address"`

	Notes string `gorm:"type:text" json:"notes"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// NewOrder は明細から金額を計算した pending_payment の注文を組み立てる。
func NewOrder(userID string, shipping, billing AddressSnapshot, notes string, items []OrderItem, shippingFee decimal.Decimal, now time.Time) Order {
	o := Order{
		Status:          OrderStatusPendingPayment,
		ShippingAddress: datatypes.NewJSONType(shipping),
		BillingAddress:  datatypes.NewJSONType(billing),
		Notes:           notes,
		Shipping:        shippingFee,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if userID != "" {
		o.UserID = &userID
	}
	o.EnsureIdentity()
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	o.RecalculateTotals()
	return o
}

// EnsureIdentity はIDと注文番号が未設定なら採番する。
func (o *Order) EnsureIdentity() {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.OrderNumber == "" {
		o.OrderNumber = NewOrderNumber()
	}
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	o.EnsureIdentity()
	return nil
}

// NewOrderNumber は連番ではない注文番号を返す（件数を推測させない）。
// ULIDの時刻部分は使わず、乱数部分(80bit)だけを使う。
func NewOrderNumber() string {
	r := ulid.Make().String()[10:]
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, r[:8], r[8:])
}

// RecalculateTotals は明細から小計・税・合計を再計算する。
// 金額フィールドを作成後に変えてよいのはここだけ。
func (o *Order) RecalculateTotals() {
	lines := make([]money.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, money.Line{UnitPrice: it.UnitPriceSnapshot, Quantity: it.Quantity})
	}
	t := money.Calculate(lines, o.Shipping)
	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.Shipping = t.Shipping
	o.Total = t.Total
}

// TransitionTo は遷移表に従ってステータスを変更する。
// 同じステータスへの遷移は何もしない（changed=false）。
func (o *Order) TransitionTo(next OrderStatus, now time.Time) (changed bool, err error) {
	if !next.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	if o.Status == next {
		return false, nil
	}
	if !o.Status.CanTransitionTo(next) {
		return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, next)
	}

	o.Status = next
	o.UpdatedAt = now
	if next == OrderStatusCancelled && o.CancelledAt == nil {
		o.CancelledAt = &now
	}
	return true, nil
}

// MarkAsPaidUnconfirmed は決済セッション作成時の楽観的な前進。
func (o *Order) MarkAsPaidUnconfirmed(now time.Time) (bool, error) {
	return o.TransitionTo(OrderStatusProcessing, now)
}

// MarkAsPaidConfirmed は入金確定時。ステータスは unconfirmed と同じ processing。
func (o *Order) MarkAsPaidConfirmed(now time.Time) (bool, error) {
	changed, err := o.TransitionTo(OrderStatusProcessing, now)
	if err != nil {
		return false, err
	}
	if o.PaidAt == nil {
		o.PaidAt = &now
	}
	return changed, nil
}

// ResetToPendingPayment は決済セッションの失効/失敗で再決済できる状態に戻す。
func (o *Order) ResetToPendingPayment(now time.Time) (bool, error) {
	return o.TransitionTo(OrderStatusPendingPayment, now)
}

func (o *Order) Cancel(now time.Time) (bool, error) {
	if !o.CanBeCancelled() {
		return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, OrderStatusCancelled)
	}
	return o.TransitionTo(OrderStatusCancelled, now)
}

func (o Order) IsPaid() bool {
	switch o.Status {
	case OrderStatusProcessing, OrderStatusToShip, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

func (o Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPendingPayment || o.Status == OrderStatusProcessing
}

func (o Order) IsCompleted() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}

// IsOwnedBy は呼び出し元が注文の持ち主か。ゲスト注文は誰の物でもない。
func (o Order) IsOwnedBy(userID string) bool {
	return o.UserID != nil && userID != "" && *o.UserID == userID
}
