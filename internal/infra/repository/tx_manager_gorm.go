package repository

import (
	"context"
	"fmt"
	"time"

	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders          repo.OrderRepository
	orderItems      repo.OrderItemRepository
	inventory       repo.InventoryRepository
	products        repo.ProductRepository
	paymentSessions repo.PaymentSessionRepository
	webhookEvents   repo.WebhookEventRepository
	auditLogs       repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                   { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository           { return r.orderItems }
func (r *txReposGorm) Inventory() repo.InventoryRepository            { return r.inventory }
func (r *txReposGorm) Products() repo.ProductRepository               { return r.products }
func (r *txReposGorm) PaymentSessions() repo.PaymentSessionRepository { return r.paymentSessions }
func (r *txReposGorm) WebhookEvents() repo.WebhookEventRepository     { return r.webhookEvents }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository             { return r.auditLogs }

type TxManagerGorm struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// lockTimeout が 0 ならロック待ちはDBの既定のまま。
func NewTxManagerGorm(db *gorm.DB, lockTimeout time.Duration) *TxManagerGorm {
	return &TxManagerGorm{db: db, lockTimeout: lockTimeout}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tm.applyLockTimeout(tx); err != nil {
			return err
		}

		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:          NewOrderGormRepository(tx),
			orderItems:      NewOrderItemGormRepository(tx),
			inventory:       NewInventoryGormRepository(tx),
			products:        NewProductGormRepository(tx),
			paymentSessions: NewPaymentSessionGormRepository(tx),
			webhookEvents:   NewWebhookEventGormRepository(tx),
			auditLogs:       NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
	// fn の返したエラーはそのまま、commit 時のロック系エラーだけ寄せる
	return translateError(err)
}

// postgres だけ。tx の中だけで有効。
func (tm *TxManagerGorm) applyLockTimeout(tx *gorm.DB) error {
	if tm.lockTimeout <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", tm.lockTimeout.Milliseconds())
	if err := tx.Exec(stmt).Error; err != nil {
		return translateError(err)
	}
	return nil
}
