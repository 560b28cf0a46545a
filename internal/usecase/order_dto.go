package usecase

import (
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"

	"github.com/shopspring/decimal"
)

type CreateOrderItemInput struct {
	ProductID int64          `json:"product_id"`
	Quantity  int64          `json:"quantity"`
	Variant   map[string]any `json:"variant,omitempty"`
}

type CreateOrderInput struct {
	Items           []CreateOrderItemInput `json:"items"`
	ShippingAddress model.AddressSnapshot  `json:"shipping_address"`
	// 省略時は配送先と同じ
	BillingAddress *model.AddressSnapshot `json:"billing_address,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
}

type OrderItemOutput struct {
	ID         int64          `json:"id"`
	ProductID  int64          `json:"product_id"`
	Name       string         `json:"name"`
	SKU        string         `json:"sku"`
	UnitPrice  string         `json:"unit_price"`
	Quantity   int64          `json:"quantity"`
	TotalPrice string         `json:"total_price"`
	Variant    map[string]any `json:"variant,omitempty"`
}

type OrderOutput struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"order_number"`
	UserID          *string                `json:"user_id"`
	Status          string                 `json:"status"`
	IsPaid          bool                   `json:"is_paid"`
	CanBeCancelled  bool                   `json:"can_be_cancelled"`
	IsCompleted     bool                   `json:"is_completed"`
	Subtotal        string                 `json:"subtotal"`
	Tax             string                 `json:"tax"`
	Shipping        string                 `json:"shipping"`
	Total           string                 `json:"total"`
	ShippingAddress model.AddressSnapshot  `json:"shipping_address"`
	BillingAddress  model.AddressSnapshot  `json:"billing_address"`
	Notes           string                 `json:"notes,omitempty"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	CancelledAt     *time.Time             `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Items           []OrderItemOutput      `json:"items"`
	PaymentSessions []PaymentSessionOutput `json:"payment_sessions,omitempty"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int64         `json:"total"`
}

// 金額は常に小数2桁の文字列で返す
func money2(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:         it.ID,
			ProductID:  it.ProductID,
			Name:       it.ProductNameSnapshot,
			SKU:        it.SKUSnapshot,
			UnitPrice:  money2(it.UnitPriceSnapshot),
			Quantity:   it.Quantity,
			TotalPrice: money2(it.TotalPrice),
			Variant:    map[string]any(it.VariantSnapshot),
		})
	}

	return OrderOutput{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          string(o.Status),
		IsPaid:          o.IsPaid(),
		CanBeCancelled:  o.CanBeCancelled(),
		IsCompleted:     o.IsCompleted(),
		Subtotal:        money2(o.Subtotal),
		Tax:             money2(o.Tax),
		Shipping:        money2(o.Shipping),
		Total:           money2(o.Total),
		ShippingAddress: o.ShippingAddress.Data(),
		BillingAddress:  o.BillingAddress.Data(),
		Notes:           o.Notes,
		PaidAt:          o.PaidAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           outItems,
	}
}
