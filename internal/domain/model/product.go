package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// カタログ側の商品。ここで書き換えるのは stock_qty だけ。
type Product struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	SKU            string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"sku"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	StockQty       int64           `gorm:"not null;default:0" json:"stock_qty"`
	TrackInventory bool            `gorm:"not null" json:"track_inventory"`
	IsActive       bool            `gorm:"not null;default:false" json:"is_active"`
	CreatedAt      time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

// HasStockFor は在庫管理しない商品なら常にtrue。
func (p Product) HasStockFor(qty int64) bool {
	if !p.TrackInventory {
		return true
	}
	return p.StockQty-qty >= 0
}
