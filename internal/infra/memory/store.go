// Package memory はDBなしで動くリポジトリ実装。
// デモ起動（DB_DRIVER=memory）とテストで使う。
package memory

import (
	"context"
	"fmt"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
)

type state struct {
	orders        map[string]model.Order
	orderItems    map[string][]model.OrderItem
	products      map[int64]model.Product
	sessions      map[string]model.PaymentSession
	webhookEvents map[string]model.WebhookEvent
	auditLogs     []model.AuditLog
	users         map[string]model.User

	nextItemID    int64
	nextProductID int64
	nextAuditID   int64
}

func newState() state {
	return state{
		orders:        map[string]model.Order{},
		orderItems:    map[string][]model.OrderItem{},
		products:      map[int64]model.Product{},
		sessions:      map[string]model.PaymentSession{},
		webhookEvents: map[string]model.WebhookEvent{},
		users:         map[string]model.User{},
	}
}

// ロールバック用のコピー。値は構造体なのでmapの入れ替えで足りる。
func (s state) clone() state {
	c := s
	c.orders = make(map[string]model.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.orderItems = make(map[string][]model.OrderItem, len(s.orderItems))
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]model.OrderItem(nil), v...)
	}
	c.products = make(map[int64]model.Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.sessions = make(map[string]model.PaymentSession, len(s.sessions))
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	c.webhookEvents = make(map[string]model.WebhookEvent, len(s.webhookEvents))
	for k, v := range s.webhookEvents {
		c.webhookEvents[k] = v
	}
	c.auditLogs = append([]model.AuditLog(nil), s.auditLogs...)
	c.users = make(map[string]model.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// Store はトランザクションを1本ずつ直列に流す。
// ロック待ちは ctx の期限で打ち切り、repository.ErrLockTimeout を返す。
type Store struct {
	sem  chan struct{}
	data state
}

func NewStore() *Store {
	return &Store{
		sem:  make(chan struct{}, 1),
		data: newState(),
	}
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", repo.ErrLockTimeout, ctx.Err())
	}
}

func (s *Store) release() { <-s.sem }

// WithinTx は fn がエラーを返したら状態を開始前に戻す。
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	snapshot := s.data.clone()
	if err := fn(&txRepos{st: &s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// Ping はヘルスチェック用。ロックが取れれば生きている。
func (s *Store) Ping(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	s.release()
	return nil
}

type txRepos struct {
	st *state
}

func (r *txRepos) Orders() repo.OrderRepository                   { return &orderRepo{st: r.st} }
func (r *txRepos) OrderItems() repo.OrderItemRepository           { return &orderItemRepo{st: r.st} }
func (r *txRepos) Inventory() repo.InventoryRepository            { return &inventoryRepo{st: r.st} }
func (r *txRepos) Products() repo.ProductRepository               { return &productRepo{st: r.st} }
func (r *txRepos) PaymentSessions() repo.PaymentSessionRepository { return &sessionRepo{st: r.st} }
func (r *txRepos) WebhookEvents() repo.WebhookEventRepository     { return &webhookEventRepo{st: r.st} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository             { return &auditLogRepo{st: r.st} }

// paginate は page/limit から [from, to) を返す。
func paginate(n, page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = n
	}
	from := (page - 1) * limit
	if from > n {
		from = n
	}
	to := from + limit
	if to > n {
		to = n
	}
	return from, to
}
