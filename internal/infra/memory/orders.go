package memory

import (
	"context"
	"sort"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
)

type orderRepo struct {
	st *state
}

func (r *orderRepo) withItems(o model.Order) model.Order {
	o.Items = append([]model.OrderItem(nil), r.st.orderItems[o.ID]...)
	return o
}

func (r *orderRepo) FindByID(_ context.Context, orderID string) (model.Order, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return r.withItems(o), nil
}

// 直列実行なのでロックは不要
func (r *orderRepo) FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *orderRepo) ListByUserID(_ context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	var list []model.Order
	for _, o := range r.st.orders {
		if o.IsOwnedBy(userID) {
			list = append(list, o)
		}
	}
	sortNewestFirst(list)
	from, to := paginate(len(list), page, limit)
	return append([]model.Order{}, list[from:to]...), int64(len(list)), nil
}

func (r *orderRepo) Create(_ context.Context, order model.Order) error {
	if _, ok := r.st.orders[order.ID]; ok {
		return repo.ErrConflict
	}
	for _, o := range r.st.orders {
		if o.OrderNumber == order.OrderNumber {
			return repo.ErrConflict
		}
	}
	order.Items = nil
	r.st.orders[order.ID] = order
	return nil
}

func (r *orderRepo) UpdateStatus(_ context.Context, order model.Order, from model.OrderStatus) error {
	cur, ok := r.st.orders[order.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if cur.Status != from {
		return repo.ErrConflict
	}
	cur.Status = order.Status
	cur.PaidAt = order.PaidAt
	cur.CancelledAt = order.CancelledAt
	cur.UpdatedAt = order.UpdatedAt
	r.st.orders[order.ID] = cur
	return nil
}

func (r *orderRepo) ListAdmin(_ context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	var list []model.Order
	for _, o := range r.st.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && !o.IsOwnedBy(*f.UserID) {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		list = append(list, o)
	}
	sortNewestFirst(list)
	from, to := paginate(len(list), f.Page, f.Limit)
	return append([]model.Order{}, list[from:to]...), int64(len(list)), nil
}

func sortNewestFirst(list []model.Order) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

type orderItemRepo struct {
	st *state
}

func (r *orderItemRepo) CreateBulk(_ context.Context, orderID string, items []model.OrderItem) error {
	for _, it := range items {
		r.st.nextItemID++
		it.ID = r.st.nextItemID
		it.OrderID = orderID
		r.st.orderItems[orderID] = append(r.st.orderItems[orderID], it)
	}
	return nil
}

func (r *orderItemRepo) ListByOrderID(_ context.Context, orderID string) ([]model.OrderItem, error) {
	return append([]model.OrderItem{}, r.st.orderItems[orderID]...), nil
}
