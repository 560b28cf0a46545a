package usecase

import (
	"context"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
)

// expireSession は期限切れの pending セッションを expired にして、注文を再決済できる状態に戻す。
// ロック順は 注文 → セッション（他の処理と同じ）。ロック後に状態を見直し、
// 既に別の処理が変えていたら何もしない（expired=false）。
func (b *base) expireSession(ctx context.Context, r repo.TxRepos, fx *afterCommit, stale model.PaymentSession, trigger, actor string) (model.PaymentSession, model.Order, bool, error) {
	o, err := r.Orders().FindByIDForUpdate(ctx, stale.OrderID)
	if err != nil {
		return model.PaymentSession{}, model.Order{}, false, dbError(err)
	}
	s, err := r.PaymentSessions().FindByReferenceForUpdate(ctx, stale.Reference)
	if err != nil {
		return model.PaymentSession{}, model.Order{}, false, dbError(err)
	}

	now := b.clock()
	if !s.IsStale(now) {
		return s, o, false, nil
	}

	before := s
	s.Status = model.SessionStatusExpired
	s.UpdatedAt = now
	if err := r.PaymentSessions().Update(ctx, s); err != nil {
		return model.PaymentSession{}, model.Order{}, false, dbError(err)
	}
	if err := b.recordSessionTransition(ctx, r, fx, before, s, actor, ""); err != nil {
		return model.PaymentSession{}, model.Order{}, false, err
	}
	if err := b.revertOrderAfterSessionEnded(ctx, r, fx, &o, s, actor, ""); err != nil {
		return model.PaymentSession{}, model.Order{}, false, err
	}

	fx.add(func() { b.metrics.SessionsExpired.WithLabelValues(trigger).Inc() })
	return s, o, true, nil
}

// revertOrderAfterSessionEnded はセッションが失効/失敗したとき注文を pending_payment に戻す。
// 入金済み（paid_at あり）や、他に生きている/成功したセッションがあれば戻さない。
func (b *base) revertOrderAfterSessionEnded(ctx context.Context, r repo.TxRepos, fx *afterCommit, o *model.Order, ended model.PaymentSession, actor, eventID string) error {
	if o.Status != model.OrderStatusProcessing || o.PaidAt != nil {
		return nil
	}

	sessions, err := r.PaymentSessions().ListByOrderID(ctx, o.ID)
	if err != nil {
		return dbError(err)
	}
	for _, other := range sessions {
		if other.ID == ended.ID {
			continue
		}
		if other.IsLive() || other.Status.IsSuccess() {
			return nil
		}
	}

	_, err = b.transitionOrder(ctx, r, fx, transitionRequest{
		order:   o,
		next:    model.OrderStatusPendingPayment,
		actor:   actor,
		eventID: eventID,
	})
	return err
}
