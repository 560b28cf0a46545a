package usecase

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
)

// reserveStock は注文明細ぶんの在庫を確保して明細スナップショットを返す。
// 商品行は id 昇順でロックし、1つでも足りなければエラー（呼び出し側のTxごと巻き戻る）。
func (b *base) reserveStock(ctx context.Context, r repo.TxRepos, actor string, lines []CreateOrderItemInput) ([]model.OrderItem, error) {
	// 同じ商品が複数行あっても在庫チェックは合計数量で行う
	totals := map[int64]int64{}
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := totals[l.ProductID]; !ok {
			ids = append(ids, l.ProductID)
		}
		totals[l.ProductID] += l.Quantity
	}

	locked, err := r.Inventory().LockProducts(ctx, ids)
	if err != nil {
		return nil, dbError(err)
	}
	products := make(map[int64]model.Product, len(locked))
	for _, p := range locked {
		products[p.ID] = p
	}

	// 存在しない・非公開の商品は入力エラー
	fields := map[string]string{}
	for i, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || !p.IsActive {
			fields[fmt.Sprintf("items[%d].product_id", i)] = "product is not available"
		}
	}
	if len(fields) > 0 {
		return nil, validationError(fields)
	}

	now := b.clock()
	// ロック順と同じ id 昇順で減算する
	for _, p := range locked {
		if !p.TrackInventory {
			continue
		}
		qty := totals[p.ID]
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, qty)
		if err != nil {
			return nil, dbError(err)
		}
		if !ok {
			e := NewHTTPError(http.StatusConflict, CodeInsufficientStock, "insufficient stock")
			e.Errors = map[string]string{
				fmt.Sprintf("product_%d", p.ID): fmt.Sprintf("requested %d, available %d", qty, p.StockQty),
			}
			return nil, e
		}
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        actor,
			Action:       model.AuditActionStockReserved,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   fmt.Sprint(p.ID),
			BeforeJSON:   toJSON(map[string]any{"stock_qty": p.StockQty}),
			AfterJSON:    toJSON(map[string]any{"stock_qty": p.StockQty - qty}),
			CreatedAt:    now,
		}); err != nil {
			return nil, dbError(err)
		}
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, model.NewOrderItem(products[l.ProductID], l.Quantity, l.Variant, now))
	}
	return items, nil
}

// restoreStock はキャンセル時に在庫管理対象の商品の在庫を戻す。
func (b *base) restoreStock(ctx context.Context, r repo.TxRepos, actor string, items []model.OrderItem) error {
	totals := map[int64]int64{}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := totals[it.ProductID]; !ok {
			ids = append(ids, it.ProductID)
		}
		totals[it.ProductID] += it.Quantity
	}

	locked, err := r.Inventory().LockProducts(ctx, ids)
	if err != nil {
		return dbError(err)
	}

	now := b.clock()
	for _, p := range locked {
		if !p.TrackInventory {
			continue
		}
		qty := totals[p.ID]
		if err := r.Inventory().IncreaseStock(ctx, p.ID, qty); err != nil {
			return dbError(err)
		}
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        actor,
			Action:       model.AuditActionStockRestored,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   fmt.Sprint(p.ID),
			BeforeJSON:   toJSON(map[string]any{"stock_qty": p.StockQty}),
			AfterJSON:    toJSON(map[string]any{"stock_qty": p.StockQty + qty}),
			CreatedAt:    now,
		}); err != nil {
			return dbError(err)
		}
	}
	return nil
}
