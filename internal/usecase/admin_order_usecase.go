package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
)

type AdminOrderUsecase struct {
	base
	tx repo.TransactionManager
}

func NewAdminOrderUsecase(tx repo.TransactionManager, opts ...Option) *AdminOrderUsecase {
	return &AdminOrderUsecase{base: newBase(opts), tx: tx}
}

type AdminUpdateOrderStatusInput struct {
	Status string `json:"status"`
}

// 管理者が手で進められるステータス（入金系は決済の流れでしか動かさない）
var adminSettableStatuses = map[model.OrderStatus]bool{
	model.OrderStatusToShip:    true,
	model.OrderStatusShipped:   true,
	model.OrderStatusDelivered: true,
	model.OrderStatusCancelled: true,
}

type AuditLogOutput struct {
	ID           int64     `json:"id"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	EventID      string    `json:"event_id,omitempty"`
	BeforeJSON   string    `json:"before_json"`
	AfterJSON    string    `json:"after_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, validationError(map[string]string{"limit": "must be between 1 and 100"})
	}
	if f.Status != "" {
		st, err := model.ParseOrderStatus(f.Status)
		if err != nil {
			return OrderListOutput{}, validationError(map[string]string{"status": "unknown status"})
		}
		f.Status = string(st)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return OrderListOutput{}, validationError(map[string]string{"from": "must be before to"})
	}

	out := OrderListOutput{Items: []OrderOutput{}, Page: f.Page, Limit: f.Limit}
	err := inTx(ctx, u.tx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return dbError(err)
		}
		out.Total = total

		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return dbError(err)
			}
			out.Items = append(out.Items, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

// UpdateStatus は遷移表に沿って注文を進める。cancelled なら在庫戻しと決済セッションの失敗化もする。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, adminUserID string, orderID string, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if strings.TrimSpace(adminUserID) == "" {
		return OrderOutput{}, unauthorized()
	}
	next, err := model.ParseOrderStatus(in.Status)
	if err != nil || !adminSettableStatuses[next] {
		return OrderOutput{}, validationError(map[string]string{"status": "must be one of to_ship, shipped, delivered, cancelled"})
	}
	actor := AdminActor(adminUserID)

	var (
		out OrderOutput
		fx  afterCommit
	)
	err = inTx(ctx, u.tx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return dbError(err)
		}

		if next == model.OrderStatusCancelled {
			if err := cancelOrderInTx(ctx, &u.base, r, &fx, &o, actor); err != nil {
				return err
			}
		} else {
			// 未入金の注文は発送に進めない
			if next == model.OrderStatusToShip && o.Status == model.OrderStatusProcessing && o.PaidAt == nil {
				return illegalTransition(errPaymentNotConfirmed)
			}
			if _, err := u.transitionOrder(ctx, r, &fx, transitionRequest{
				order: &o,
				next:  next,
				actor: actor,
			}); err != nil {
				return err
			}
		}

		out = toOrderOutput(o, o.Items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	fx.run()
	return out, nil
}

func (u *AdminOrderUsecase) ListAuditLogs(ctx context.Context, f repo.AuditLogFilter) ([]AuditLogOutput, error) {
	if f.Limit < 0 || f.Limit > 200 {
		return nil, validationError(map[string]string{"limit": "must be between 1 and 200"})
	}
	if f.Offset < 0 {
		return nil, validationError(map[string]string{"offset": "must be >= 0"})
	}

	var logs []model.AuditLog
	err := inTx(ctx, u.tx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]AuditLogOutput, 0, len(logs))
	for _, l := range logs {
		out = append(out, AuditLogOutput{
			ID:           l.ID,
			Actor:        l.Actor,
			Action:       string(l.Action),
			ResourceType: string(l.ResourceType),
			ResourceID:   l.ResourceID,
			EventID:      l.EventID,
			BeforeJSON:   l.BeforeJSON,
			AfterJSON:    l.AfterJSON,
			CreatedAt:    l.CreatedAt,
		})
	}
	return out, nil
}

// 期間パラメータ（RFC3339）。空なら nil。
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
