package usecase

import (
	"context"
	"strings"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 入力検証はvalidatorに寄せる
type OrderValidator interface {
	// ValidateCreateOrder はフィールド名→メッセージを返す（問題なければ空）。
	ValidateCreateOrder(in CreateOrderInput) map[string]string
}

type OrderUsecase struct {
	base
	tx          repo.TransactionManager
	validator   OrderValidator
	shippingFee decimal.Decimal
}

func NewOrderUsecase(tx repo.TransactionManager, validator OrderValidator, shippingFee decimal.Decimal, opts ...Option) *OrderUsecase {
	return &OrderUsecase{
		base:        newBase(opts),
		tx:          tx,
		validator:   validator,
		shippingFee: shippingFee,
	}
}

// CreateOrder は在庫を確保して pending_payment の注文を作る。
// 在庫確保・注文・明細は1つのTxで、どれか失敗すれば全部なかったことになる。
func (u *OrderUsecase) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderOutput{}, unauthorized()
	}
	if fields := u.validator.ValidateCreateOrder(in); len(fields) > 0 {
		return OrderOutput{}, validationError(fields)
	}

	billing := in.ShippingAddress
	if in.BillingAddress != nil {
		billing = *in.BillingAddress
	}
	actor := CustomerActor(userID)

	var (
		out OrderOutput
		fx  afterCommit
	)
	err := inTx(ctx, u.tx, func(r repo.TxRepos) error {
		items, err := u.reserveStock(ctx, r, actor, in.Items)
		if err != nil {
			return err
		}

		order := model.NewOrder(userID, in.ShippingAddress, billing, strings.TrimSpace(in.Notes), items, u.shippingFee, u.clock())
		if err := r.Orders().Create(ctx, order); err != nil {
			return dbError(err)
		}
		if err := r.OrderItems().CreateBulk(ctx, order.ID, order.Items); err != nil {
			return dbError(err)
		}

		saved, err := r.OrderItems().ListByOrderID(ctx, order.ID)
		if err != nil {
			return dbError(err)
		}
		out = toOrderOutput(order, saved)

		fx.add(func() {
			u.metrics.OrdersCreated.Inc()
			u.logger.Info("order created",
				zap.String("order_id", order.ID),
				zap.String("order_number", order.OrderNumber),
				zap.String("actor", actor),
				zap.String("total", order.Total.StringFixed(2)),
				zap.Int("items", len(order.Items)),
			)
		})
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	fx.run()
	return out, nil
}

// GetOrder は持ち主だけが見られる。他人の注文は存在しない扱い。
func (u *OrderUsecase) GetOrder(ctx context.Context, userID string, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderOutput{}, unauthorized()
	}

	var out OrderOutput
	err := inTx(ctx, u.tx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}
		if !o.IsOwnedBy(userID) {
			return notFound()
		}

		sessions, err := r.PaymentSessions().ListByOrderID(ctx, o.ID)
		if err != nil {
			return dbError(err)
		}

		out = toOrderOutput(o, o.Items)
		out.PaymentSessions = toSessionOutputs(sessions, u.clock())
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) ListOrders(ctx context.Context, userID string, page, limit int) (OrderListOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderListOutput{}, unauthorized()
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	out := OrderListOutput{Items: []OrderOutput{}, Page: page, Limit: limit}
	err := inTx(ctx, u.tx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, limit)
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

// CancelOrder は pending_payment / processing の注文だけ取り消せる。
// 在庫を戻し、生きている決済セッションは failed(order_cancelled) にする。
func (u *OrderUsecase) CancelOrder(ctx context.Context, userID string, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderOutput{}, unauthorized()
	}
	actor := CustomerActor(userID)

	var (
		out OrderOutput
		fx  afterCommit
	)
	err := inTx(ctx, u.tx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return dbError(err)
		}
		if !o.IsOwnedBy(userID) {
			return notFound()
		}

		if err := cancelOrderInTx(ctx, &u.base, r, &fx, &o, actor); err != nil {
			return err
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

// cancelOrderInTx は顧客・管理者どちらのキャンセルでも同じ副作用を起こす。
func cancelOrderInTx(ctx context.Context, b *base, r repo.TxRepos, fx *afterCommit, o *model.Order, actor string) error {
	if _, err := b.transitionOrder(ctx, r, fx, transitionRequest{
		order: o,
		next:  model.OrderStatusCancelled,
		actor: actor,
	}); err != nil {
		return err
	}

	if err := b.restoreStock(ctx, r, actor, o.Items); err != nil {
		return err
	}

	live, found, err := r.PaymentSessions().FindLiveByOrderID(ctx, o.ID)
	if err != nil {
		return dbError(err)
	}
	if !found {
		return nil
	}
	before := live
	live.Status = model.SessionStatusFailed
	live.FailureReason = "order_cancelled"
	live.UpdatedAt = b.clock()
	if err := r.PaymentSessions().Update(ctx, live); err != nil {
		return dbError(err)
	}
	return b.recordSessionTransition(ctx, r, fx, before, live, actor, "")
}
