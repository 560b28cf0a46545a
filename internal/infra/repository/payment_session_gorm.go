package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentSessionGormRepository struct {
	db *gorm.DB
}

func NewPaymentSessionGormRepository(db *gorm.DB) *PaymentSessionGormRepository {
	return &PaymentSessionGormRepository{db: db}
}

// 同じ注文に生きているセッションがあると部分ユニークインデックスで ErrConflict
func (r *PaymentSessionGormRepository) Create(ctx context.Context, s model.PaymentSession) error {
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *PaymentSessionGormRepository) FindByID(ctx context.Context, id string) (model.PaymentSession, error) {
	var s model.PaymentSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return model.PaymentSession{}, translateError(err)
	}
	return s, nil
}

func (r *PaymentSessionGormRepository) FindByReference(ctx context.Context, reference string) (model.PaymentSession, error) {
	var s model.PaymentSession
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&s).Error; err != nil {
		return model.PaymentSession{}, translateError(err)
	}
	return s, nil
}

func (r *PaymentSessionGormRepository) FindByReferenceForUpdate(ctx context.Context, reference string) (model.PaymentSession, error) {
	var s model.PaymentSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", reference).
		First(&s).Error
	if err != nil {
		return model.PaymentSession{}, translateError(err)
	}
	return s, nil
}

func (r *PaymentSessionGormRepository) FindLiveByOrderID(ctx context.Context, orderID string) (model.PaymentSession, bool, error) {
	var s model.PaymentSession
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, model.LiveSessionStatuses).
		Order("created_at desc").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PaymentSession{}, false, nil
	}
	if err != nil {
		return model.PaymentSession{}, false, translateError(err)
	}
	return s, true, nil
}

func (r *PaymentSessionGormRepository) ListByOrderID(ctx context.Context, orderID string) ([]model.PaymentSession, error) {
	var sessions []model.PaymentSession
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Find(&sessions).Error
	if err != nil {
		return []model.PaymentSession{}, translateError(err)
	}
	return sessions, nil
}

func (r *PaymentSessionGormRepository) ListStale(ctx context.Context, now time.Time, limit int) ([]model.PaymentSession, error) {
	if limit <= 0 {
		limit = 100
	}
	var sessions []model.PaymentSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", model.SessionStatusPending, now).
		Order("expires_at asc").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return []model.PaymentSession{}, translateError(err)
	}
	return sessions, nil
}

// 全カラムを書き戻す（id と created_at は除く）
func (r *PaymentSessionGormRepository) Update(ctx context.Context, s model.PaymentSession) error {
	res := r.db.WithContext(ctx).
		Model(&model.PaymentSession{ID: s.ID}).
		Select("*").
		Omit("ID", "CreatedAt").
		Updates(&s)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
