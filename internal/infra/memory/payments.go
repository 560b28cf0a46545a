package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
)

type sessionRepo struct {
	st *state
}

// 生きているセッションは注文ごとに1件まで（postgres の部分ユニークインデックスと同じ）
func (r *sessionRepo) Create(_ context.Context, s model.PaymentSession) error {
	if _, ok := r.st.sessions[s.ID]; ok {
		return repo.ErrConflict
	}
	for _, existing := range r.st.sessions {
		if existing.Reference == s.Reference {
			return repo.ErrConflict
		}
		if s.IsLive() && existing.OrderID == s.OrderID && existing.IsLive() {
			return repo.ErrConflict
		}
	}
	r.st.sessions[s.ID] = s
	return nil
}

func (r *sessionRepo) FindByID(_ context.Context, id string) (model.PaymentSession, error) {
	s, ok := r.st.sessions[id]
	if !ok {
		return model.PaymentSession{}, repo.ErrNotFound
	}
	return s, nil
}

func (r *sessionRepo) FindByReferenceForUpdate(ctx context.Context, reference string) (model.PaymentSession, error) {
	return r.FindByReference(ctx, reference)
}

func (r *sessionRepo) FindByReference(_ context.Context, reference string) (model.PaymentSession, error) {
	for _, s := range r.st.sessions {
		if s.Reference == reference {
			return s, nil
		}
	}
	return model.PaymentSession{}, repo.ErrNotFound
}

func (r *sessionRepo) FindLiveByOrderID(ctx context.Context, orderID string) (model.PaymentSession, bool, error) {
	list, _ := r.ListByOrderID(ctx, orderID)
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].IsLive() {
			return list[i], true, nil
		}
	}
	return model.PaymentSession{}, false, nil
}

func (r *sessionRepo) ListByOrderID(_ context.Context, orderID string) ([]model.PaymentSession, error) {
	list := []model.PaymentSession{}
	for _, s := range r.st.sessions {
		if s.OrderID == orderID {
			list = append(list, s)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *sessionRepo) ListStale(_ context.Context, now time.Time, limit int) ([]model.PaymentSession, error) {
	if limit <= 0 {
		limit = 100
	}
	list := []model.PaymentSession{}
	for _, s := range r.st.sessions {
		if s.Status == model.SessionStatusPending && !s.ExpiresAt.After(now) {
			list = append(list, s)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ExpiresAt.Before(list[j].ExpiresAt) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *sessionRepo) Update(_ context.Context, s model.PaymentSession) error {
	cur, ok := r.st.sessions[s.ID]
	if !ok {
		return repo.ErrNotFound
	}
	s.CreatedAt = cur.CreatedAt
	r.st.sessions[s.ID] = s
	return nil
}

type webhookEventRepo struct {
	st *state
}

func (r *webhookEventRepo) InsertMarker(_ context.Context, ev model.WebhookEvent, now time.Time) (bool, error) {
	key := model.WebhookEventKey(ev.Provider, ev.EventID)
	if cur, ok := r.st.webhookEvents[key]; ok && cur.ExpiresAt.After(now) {
		return false, nil
	}
	r.st.webhookEvents[key] = ev
	return true, nil
}

func (r *webhookEventRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, ev := range r.st.webhookEvents {
		if !ev.ExpiresAt.After(now) {
			delete(r.st.webhookEvents, id)
			n++
		}
	}
	return n, nil
}
