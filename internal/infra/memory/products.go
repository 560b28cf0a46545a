package memory

import (
	"context"
	"sort"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
)

type productRepo struct {
	st *state
}

func (r *productRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *productRepo) Create(_ context.Context, p model.Product) (model.Product, error) {
	for _, existing := range r.st.products {
		if existing.SKU == p.SKU {
			return model.Product{}, repo.ErrConflict
		}
	}
	if p.ID == 0 {
		r.st.nextProductID++
		p.ID = r.st.nextProductID
	} else if p.ID > r.st.nextProductID {
		r.st.nextProductID = p.ID
	}
	if _, ok := r.st.products[p.ID]; ok {
		return model.Product{}, repo.ErrConflict
	}
	r.st.products[p.ID] = p
	return p, nil
}

type inventoryRepo struct {
	st *state
}

func (r *inventoryRepo) LockProducts(_ context.Context, productIDs []int64) ([]model.Product, error) {
	out := make([]model.Product, 0, len(productIDs))
	seen := map[int64]bool{}
	for _, id := range productIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := r.st.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *inventoryRepo) DecreaseStockIfEnough(_ context.Context, productID int64, qty int64) (bool, error) {
	p, ok := r.st.products[productID]
	if !ok || p.StockQty < qty {
		return false, nil
	}
	p.StockQty -= qty
	r.st.products[productID] = p
	return true, nil
}

func (r *inventoryRepo) IncreaseStock(_ context.Context, productID int64, qty int64) error {
	p, ok := r.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.StockQty += qty
	r.st.products[productID] = p
	return nil
}
