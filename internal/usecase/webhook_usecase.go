package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/observability"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/payment"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"go.uber.org/zap"
)

// ProcessedEventCache はコミット済みイベントの早期重複判定用。正はDBのマーカー。
type ProcessedEventCache interface {
	Seen(ctx context.Context, provider, eventID string) (bool, error)
	Remember(ctx context.Context, provider, eventID string, ttl time.Duration) error
}

// WebhookResult はプロバイダへの応答内容。
type WebhookResult struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
	// 既に終端のセッションへの通知は受け取るだけ
	Ignored       bool   `json:"ignored,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	SessionStatus string `json:"session_status,omitempty"`
	OrderStatus   string `json:"order_status,omitempty"`
}

type WebhookUsecase struct {
	base
	tx     repo.TransactionManager
	signer *payment.Signer
	cache  ProcessedEventCache
}

func NewWebhookUsecase(tx repo.TransactionManager, signer *payment.Signer, cache ProcessedEventCache, opts ...Option) *WebhookUsecase {
	return &WebhookUsecase{
		base:   newBase(opts),
		tx:     tx,
		signer: signer,
		cache:  cache,
	}
}

// Ingest は署名を検証し、イベントを1回だけセッションと注文に反映する。
// マーカーの挿入・セッション更新・注文遷移は同じトランザクション。
func (u *WebhookUsecase) Ingest(ctx context.Context, kind model.PaymentKind, raw []byte, signature string) (WebhookResult, error) {
	provider := string(kind)

	if err := u.signer.Verify(raw, signature); err != nil {
		u.metrics.WebhookEvents.WithLabelValues(provider, observability.WebhookInvalidSignature).Inc()
		// 本文は出さない
		u.logger.Warn("webhook rejected: bad signature",
			zap.String("provider", provider),
			zap.Int("body_bytes", len(raw)),
			zap.Error(err),
		)
		return WebhookResult{}, NewHTTPError(http.StatusUnauthorized, CodeInvalidSignature, "invalid signature").WithCause(err)
	}

	ev, err := parseWebhookEvent(kind, raw)
	if err != nil {
		u.metrics.WebhookEvents.WithLabelValues(provider, observability.WebhookMalformed).Inc()
		u.logger.Warn("webhook rejected: malformed payload", zap.String("provider", provider), zap.Error(err))
		return WebhookResult{}, NewHTTPError(http.StatusBadRequest, CodeMalformedPayload, "malformed payload").WithCause(err)
	}

	log := u.logger.With(
		zap.String("provider", provider),
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.Type),
		zap.String("reference", ev.Reference),
	)

	if u.cache != nil {
		seen, err := u.cache.Seen(ctx, provider, ev.ID)
		if err != nil {
			log.Warn("processed event cache unavailable", zap.Error(err))
		} else if seen {
			u.metrics.WebhookEvents.WithLabelValues(provider, observability.WebhookDuplicate).Inc()
			log.Info("webhook duplicate (cache)")
			return WebhookResult{EventID: ev.ID, Duplicate: true}, nil
		}
	}

	res := WebhookResult{EventID: ev.ID}
	var fx afterCommit
	err = inTx(ctx, u.tx, func(r repo.TxRepos) error {
		res = WebhookResult{EventID: ev.ID}
		fx = nil
		return u.apply(ctx, r, &fx, ev, &res, log)
	})
	if err != nil {
		result := observability.WebhookError
		if he, ok := AsHTTPError(err); ok && he.Code == CodeNotFound {
			result = observability.WebhookNotFound
			log.Warn("webhook for unknown payment session")
		} else {
			log.Error("webhook processing failed", zap.Error(err))
		}
		u.metrics.WebhookEvents.WithLabelValues(provider, result).Inc()
		return WebhookResult{}, err
	}
	fx.run()

	if u.cache != nil {
		if err := u.cache.Remember(ctx, provider, ev.ID, model.WebhookMarkerTTL); err != nil {
			log.Warn("failed to cache processed event", zap.Error(err))
		}
	}
	if res.Duplicate {
		u.metrics.WebhookEvents.WithLabelValues(provider, observability.WebhookDuplicate).Inc()
		log.Info("webhook duplicate")
		return res, nil
	}
	u.metrics.WebhookEvents.WithLabelValues(provider, observability.WebhookProcessed).Inc()
	log.Info("webhook processed",
		zap.String("session_id", res.SessionID),
		zap.String("session_status", res.SessionStatus),
		zap.String("order_status", res.OrderStatus),
		zap.Bool("ignored", res.Ignored),
	)
	return res, nil
}

func (u *WebhookUsecase) apply(ctx context.Context, r repo.TxRepos, fx *afterCommit, ev webhookEvent, res *WebhookResult, log *zap.Logger) error {
	now := u.clock()

	// 処理前にマーカーを置く。同じイベントの同時配信は片方しか通らない。
	fresh, err := r.WebhookEvents().InsertMarker(ctx, model.WebhookEvent{
		EventID:     ev.ID,
		Provider:    string(ev.Kind),
		EventType:   ev.Type,
		Reference:   ev.Reference,
		ProcessedAt: now,
		ExpiresAt:   now.Add(model.WebhookMarkerTTL),
	}, now)
	if err != nil {
		return dbError(err)
	}
	if !fresh {
		res.Duplicate = true
		return nil
	}

	// ロック順は 注文 → セッション
	found, err := r.PaymentSessions().FindByReference(ctx, ev.Reference)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound().WithCause(err)
		}
		return dbError(err)
	}
	if found.Kind != ev.Kind {
		return notFound()
	}
	o, err := r.Orders().FindByIDForUpdate(ctx, found.OrderID)
	if err != nil {
		return dbError(err)
	}
	s, err := r.PaymentSessions().FindByReferenceForUpdate(ctx, ev.Reference)
	if err != nil {
		return dbError(err)
	}

	res.SessionID = s.ID
	res.OrderStatus = string(o.Status)
	if s.Status.IsTerminal() {
		res.Ignored = true
		res.SessionStatus = string(s.Status)
		return nil
	}

	actor := WebhookActor(s.Provider)
	before := s
	next, reason := reconcile(s, ev)

	if ev.Confirmations != nil {
		s.Confirmations = *ev.Confirmations
	}
	if ev.TxID != "" {
		s.TxID = ev.TxID
	}
	if ev.ReceivedAmount.Valid {
		s.ReceivedAmount = ev.ReceivedAmount
	}
	if reason != "" {
		s.FailureReason = reason
	}
	s.Status = next
	if next.IsSuccess() && s.ConfirmedAt == nil {
		s.ConfirmedAt = &now
	}
	if sessionChanged(before, s) {
		s.UpdatedAt = now
		if err := r.PaymentSessions().Update(ctx, s); err != nil {
			return dbError(err)
		}
	}
	if before.Status != s.Status {
		if err := u.recordSessionTransition(ctx, r, fx, before, s, actor, ev.ID); err != nil {
			return err
		}
	}

	switch {
	case s.Status.IsSuccess():
		if o.Status == model.OrderStatusPendingPayment || o.Status == model.OrderStatusProcessing {
			if _, err := u.transitionOrder(ctx, r, fx, transitionRequest{
				order:   &o,
				next:    model.OrderStatusProcessing,
				actor:   actor,
				eventID: ev.ID,
				paid:    true,
			}); err != nil {
				return err
			}
		} else {
			// キャンセル済みなどへの入金。人手で返金対応する。
			orderID, status := o.ID, o.Status
			fx.add(func() {
				log.Warn("payment confirmed for order that cannot accept it",
					zap.String("order_id", orderID),
					zap.String("order_status", string(status)),
					zap.String("session_id", s.ID),
				)
			})
		}
	case s.Status == model.SessionStatusExpired || s.Status == model.SessionStatusFailed:
		if err := u.revertOrderAfterSessionEnded(ctx, r, fx, &o, s, actor, ev.ID); err != nil {
			return err
		}
	}

	res.SessionStatus = string(s.Status)
	res.OrderStatus = string(o.Status)
	return nil
}

func sessionChanged(a, b model.PaymentSession) bool {
	return a.Status != b.Status ||
		a.Confirmations != b.Confirmations ||
		a.TxID != b.TxID ||
		a.FailureReason != b.FailureReason ||
		a.ReceivedAmount.Valid != b.ReceivedAmount.Valid ||
		(a.ReceivedAmount.Valid && !a.ReceivedAmount.Decimal.Equal(b.ReceivedAmount.Decimal)) ||
		(a.ConfirmedAt == nil) != (b.ConfirmedAt == nil)
}
