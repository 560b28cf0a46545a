package repository

import (
	"context"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
)

type InventoryRepository interface {
	// 商品行を id 昇順で FOR UPDATE ロックして返す（デッドロック回避のため順序固定）
	LockProducts(ctx context.Context, productIDs []int64) ([]model.Product, error)

	// 在庫が足りるときだけ減算（在庫管理しない商品には呼ばない）
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセルなど）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error
}
