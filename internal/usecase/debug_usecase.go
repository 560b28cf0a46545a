package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/payment"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// DebugUsecase はデバッグビルドでだけルーティングされる。
type DebugUsecase struct {
	base
	tx      repo.TransactionManager
	gateway *payment.GatewaySimulator
	signer  *payment.Signer
	webhook *WebhookUsecase
}

func NewDebugUsecase(tx repo.TransactionManager, gateway *payment.GatewaySimulator, signer *payment.Signer, webhook *WebhookUsecase, opts ...Option) *DebugUsecase {
	return &DebugUsecase{
		base:    newBase(opts),
		tx:      tx,
		gateway: gateway,
		signer:  signer,
		webhook: webhook,
	}
}

// ForceCompleteTraditional はゲートウェイ上で支払いを完了させ、
// 署名付きの payment.completed を webhook と同じ経路で流す。
func (u *DebugUsecase) ForceCompleteTraditional(ctx context.Context, sessionID string) (WebhookResult, error) {
	var s model.PaymentSession
	if err := inTx(ctx, u.tx, func(r repo.TxRepos) error {
		var err error
		s, err = r.PaymentSessions().FindByID(ctx, sessionID)
		return err
	}); err != nil {
		return WebhookResult{}, err
	}
	if s.Kind != model.PaymentKindTraditional {
		return WebhookResult{}, notFound()
	}

	txID := "sim_" + ulid.Make().String()
	received := s.Amount
	st, err := u.gateway.Complete(s.Reference, txID)
	switch {
	case err == nil:
		if st.ReceivedAmount.Valid {
			received = st.ReceivedAmount.Decimal
		}
	case errors.Is(err, payment.ErrUnknownReference):
		// 再起動でシミュレータの記録が消えている。セッションの値で組み立てる。
		u.logger.Warn("gateway does not know reference, using session amount", zap.String("reference", s.Reference))
	default:
		return WebhookResult{}, providerError(err)
	}

	body, err := json.Marshal(map[string]any{
		"id":   "evt_" + ulid.Make().String(),
		"type": "payment.completed",
		"data": map[string]any{
			"object": map[string]any{
				"reference":       s.Reference,
				"status":          string(model.SessionStatusCompleted),
				"txid":            txID,
				"received_amount": received.StringFixed(2),
			},
		},
	})
	if err != nil {
		return WebhookResult{}, err
	}
	return u.webhook.Ingest(ctx, model.PaymentKindTraditional, body, u.signer.Sign(body))
}
