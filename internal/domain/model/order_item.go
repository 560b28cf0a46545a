package model

import (
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/money"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 注文明細。商品情報は注文時点のスナップショットで、後のカタログ変更の影響を受けない。
type OrderItem struct {
	ID                  int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             string            `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID           int64             `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string            `gorm:"type:varchar(255);not null" json:"product_name"`
	SKUSnapshot         string            `gorm:"type:varchar(64);not null" json:"sku"`
	UnitPriceSnapshot   decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity            int64             `gorm:"not null" json:"quantity"`
	TotalPrice          decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total_price"`
	VariantSnapshot     datatypes.JSONMap `json:"variant,omitempty"`
	CreatedAt           time.Time         `gorm:"not null" json:"created_at"`
}

func NewOrderItem(p Product, qty int64, variant map[string]any, now time.Time) OrderItem {
	it := OrderItem{
		ProductID:           p.ID,
		ProductNameSnapshot: p.Name,
		SKUSnapshot:         p.SKU,
		UnitPriceSnapshot:   p.Price,
		Quantity:            qty,
		TotalPrice:          money.LineTotal(p.Price, qty),
		CreatedAt:           now,
	}
	if len(variant) > 0 {
		it.VariantSnapshot = datatypes.JSONMap(variant)
	}
	return it
}
