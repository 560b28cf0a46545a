package memory

import (
	"context"
	"sort"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
)

type auditLogRepo struct {
	st *state
}

func (r *auditLogRepo) Create(_ context.Context, log model.AuditLog) error {
	r.st.nextAuditID++
	log.ID = r.st.nextAuditID
	r.st.auditLogs = append(r.st.auditLogs, log)
	return nil
}

func (r *auditLogRepo) List(_ context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	var list []model.AuditLog
	for _, l := range r.st.auditLogs {
		if f.Actor != nil && l.Actor != *f.Actor {
			continue
		}
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		if f.EventID != nil && l.EventID != *f.EventID {
			continue
		}
		if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		list = append(list, l)
	}
	//新しい順
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(list) {
		offset = len(list)
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return append([]model.AuditLog{}, list[offset:end]...), nil
}

// UserRepository はトランザクション外で使うので都度ロックを取る。
type UserRepository struct {
	store *Store
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Create(ctx context.Context, user model.User) error {
	if err := r.store.acquire(ctx); err != nil {
		return err
	}
	defer r.store.release()

	if _, ok := r.store.data.users[user.ID]; ok {
		return repo.ErrConflict
	}
	for _, u := range r.store.data.users {
		if u.Email == user.Email {
			return repo.ErrConflict
		}
	}
	r.store.data.users[user.ID] = user
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (model.User, error) {
	if err := r.store.acquire(ctx); err != nil {
		return model.User{}, err
	}
	defer r.store.release()

	u, ok := r.store.data.users[userID]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	if err := r.store.acquire(ctx); err != nil {
		return model.User{}, err
	}
	defer r.store.release()

	for _, u := range r.store.data.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (r *UserRepository) Update(ctx context.Context, user model.User) error {
	if err := r.store.acquire(ctx); err != nil {
		return err
	}
	defer r.store.release()

	if _, ok := r.store.data.users[user.ID]; !ok {
		return repo.ErrNotFound
	}
	r.store.data.users[user.ID] = user
	return nil
}
