package usecase

import (
	"context"
	"errors"
	"net/http"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"go.uber.org/zap"
)

// transitionRequest は注文ステータス変更1回分。
type transitionRequest struct {
	order   *model.Order
	next    model.OrderStatus
	actor   string
	eventID string
	// 入金確定のとき paid_at を埋める
	paid bool
}

// transitionOrder は注文のステータス変更の唯一の入口。
// 遷移表にない変更は invalid_status_transition。変更があれば監査ログを書く。
func (b *base) transitionOrder(ctx context.Context, r repo.TxRepos, fx *afterCommit, req transitionRequest) (bool, error) {
	o := req.order
	from := o.Status
	hadPaidAt := o.PaidAt != nil
	now := b.clock()

	var (
		changed bool
		err     error
	)
	switch {
	case req.next == model.OrderStatusCancelled:
		changed, err = o.Cancel(now)
	case req.paid:
		changed, err = o.MarkAsPaidConfirmed(now)
	default:
		changed, err = o.TransitionTo(req.next, now)
	}
	if err != nil {
		if errors.Is(err, model.ErrIllegalTransition) && req.next == model.OrderStatusCancelled {
			return false, NewHTTPError(http.StatusConflict, CodeOrderNotCancellable, "order cannot be cancelled in its current status").WithCause(err)
		}
		return false, illegalTransition(err)
	}
	if !changed {
		// ステータスは同じで paid_at だけ埋まった（楽観的に processing 済みの注文の入金確定）
		if !hadPaidAt && o.PaidAt != nil {
			if err := r.Orders().UpdateStatus(ctx, *o, from); err != nil {
				return false, dbError(err)
			}
		}
		return false, nil
	}

	if err := r.Orders().UpdateStatus(ctx, *o, from); err != nil {
		return false, dbError(err)
	}
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		Actor:        req.actor,
		Action:       model.AuditActionOrderTransition,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   o.ID,
		EventID:      req.eventID,
		BeforeJSON:   toJSON(map[string]any{"status": from}),
		AfterJSON:    toJSON(map[string]any{"status": o.Status}),
		CreatedAt:    now,
	}); err != nil {
		return false, dbError(err)
	}

	orderID, to := o.ID, o.Status
	fx.add(func() {
		b.metrics.OrderTransitions.WithLabelValues(string(from), string(to)).Inc()
		b.logger.Info("order status changed",
			zap.String("order_id", orderID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("actor", req.actor),
			zap.String("event_id", req.eventID),
		)
	})
	return true, nil
}

// recordSessionTransition はセッションの状態変更を監査ログに残す。
func (b *base) recordSessionTransition(ctx context.Context, r repo.TxRepos, fx *afterCommit, before, after model.PaymentSession, actor, eventID string) error {
	now := b.clock()
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		Actor:        actor,
		Action:       model.AuditActionSessionTransition,
		ResourceType: model.AuditResourcePaymentSession,
		ResourceID:   after.ID,
		EventID:      eventID,
		BeforeJSON:   toJSON(sessionAuditView(before)),
		AfterJSON:    toJSON(sessionAuditView(after)),
		CreatedAt:    now,
	}); err != nil {
		return dbError(err)
	}

	fx.add(func() {
		b.logger.Info("payment session changed",
			zap.String("session_id", after.ID),
			zap.String("order_id", after.OrderID),
			zap.String("reference", after.Reference),
			zap.String("from", string(before.Status)),
			zap.String("to", string(after.Status)),
			zap.String("actor", actor),
			zap.String("event_id", eventID),
		)
	})
	return nil
}

func sessionAuditView(s model.PaymentSession) map[string]any {
	v := map[string]any{
		"status":        s.Status,
		"confirmations": s.Confirmations,
	}
	if s.TxID != "" {
		v["txid"] = s.TxID
	}
	if s.ReceivedAmount.Valid {
		v["received_amount"] = s.ReceivedAmount.Decimal.StringFixed(2)
	}
	if s.FailureReason != "" {
		v["failure_reason"] = s.FailureReason
	}
	return v
}
