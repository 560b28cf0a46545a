package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/observability"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/payment"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 従来型ゲートウェイの決済通貨
const GatewayCurrency = "USD"

type PaymentUsecase struct {
	base
	tx             repo.TransactionManager
	providers      map[model.PaymentKind]payment.Provider
	cryptoCurrency string
}

func NewPaymentUsecase(tx repo.TransactionManager, crypto, gateway payment.Provider, cryptoCurrency string, opts ...Option) *PaymentUsecase {
	return &PaymentUsecase{
		base: newBase(opts),
		tx:   tx,
		providers: map[model.PaymentKind]payment.Provider{
			model.PaymentKindCrypto:      crypto,
			model.PaymentKindTraditional: gateway,
		},
		cryptoCurrency: cryptoCurrency,
	}
}

func (u *PaymentUsecase) currencyFor(kind model.PaymentKind) string {
	if kind == model.PaymentKindCrypto {
		return u.cryptoCurrency
	}
	return GatewayCurrency
}

func (u *PaymentUsecase) CreateCryptoInvoice(ctx context.Context, userID, orderID string) (PaymentSessionOutput, error) {
	return u.createSession(ctx, userID, orderID, model.PaymentKindCrypto)
}

func (u *PaymentUsecase) CreateTraditionalSession(ctx context.Context, userID, orderID string) (PaymentSessionOutput, error) {
	return u.createSession(ctx, userID, orderID, model.PaymentKindTraditional)
}

// createSession は注文に決済セッションを1件作り、注文を processing に進める。
// 注文行をロックしてから「生きているセッションがないか」を確認するので、
// 同じ注文への同時作成は片方だけが通る（postgres は部分ユニークインデックスでも弾く）。
func (u *PaymentUsecase) createSession(ctx context.Context, userID, orderID string, kind model.PaymentKind) (PaymentSessionOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return PaymentSessionOutput{}, unauthorized()
	}
	provider, ok := u.providers[kind]
	if !ok || provider == nil {
		return PaymentSessionOutput{}, providerError(errors.New("payment provider not configured"))
	}
	actor := CustomerActor(userID)

	var (
		out PaymentSessionOutput
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

		// 生きているセッションの確認を先にする（既存の請求を名指しで返すため）
		live, found, err := r.PaymentSessions().FindLiveByOrderID(ctx, o.ID)
		if err != nil {
			return dbError(err)
		}
		if found {
			return sessionAlreadyActive(live)
		}
		if o.IsPaid() {
			return NewHTTPError(http.StatusConflict, CodeOrderAlreadyPaid, "order is already paid")
		}
		if o.Status != model.OrderStatusPendingPayment {
			return illegalTransition(model.ErrIllegalTransition)
		}

		inv, err := provider.CreateInvoice(ctx, o.ID, o.Total, u.currencyFor(kind))
		if err != nil {
			return providerError(err)
		}

		now := u.clock()
		s := model.PaymentSession{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			Kind:       kind,
			Provider:   provider.Name(),
			Reference:  inv.Reference,
			Amount:     o.Total,
			Currency:   u.currencyFor(kind),
			Status:     model.SessionStatusPending,
			PayAddress: inv.PayAddress,
			PaymentURL: inv.PaymentURL,
			ExpiresAt:  now.Add(kind.TTL()),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if kind == model.PaymentKindCrypto {
			s.RequiredConfirmations = model.RequiredCryptoConfirmations
		}
		if err := r.PaymentSessions().Create(ctx, s); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				// ロックの外から入った同時作成（部分ユニークインデックス違反）
				if live, found, ferr := r.PaymentSessions().FindLiveByOrderID(ctx, o.ID); ferr == nil && found {
					return sessionAlreadyActive(live)
				}
			}
			return dbError(err)
		}
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        actor,
			Action:       model.AuditActionSessionCreated,
			ResourceType: model.AuditResourcePaymentSession,
			ResourceID:   s.ID,
			AfterJSON:    toJSON(sessionAuditView(s)),
			CreatedAt:    now,
		}); err != nil {
			return dbError(err)
		}

		// 入金前でも processing に進める（支払い手続き中であることを顧客に見せる）
		if _, err := u.transitionOrder(ctx, r, &fx, transitionRequest{
			order: &o,
			next:  model.OrderStatusProcessing,
			actor: actor,
		}); err != nil {
			return err
		}

		out = toSessionOutput(s, now)
		out.OrderStatus = string(o.Status)

		fx.add(func() {
			u.metrics.PaymentSessionsCreated.WithLabelValues(string(kind)).Inc()
			u.logger.Info("payment session created",
				zap.String("session_id", s.ID),
				zap.String("order_id", s.OrderID),
				zap.String("kind", string(kind)),
				zap.String("reference", s.Reference),
				zap.Time("expires_at", s.ExpiresAt),
			)
		})
		return nil
	})
	if err != nil {
		return PaymentSessionOutput{}, err
	}
	fx.run()
	return out, nil
}

func sessionAlreadyActive(live model.PaymentSession) *HTTPError {
	e := NewHTTPError(http.StatusConflict, CodeSessionAlreadyActive, "an active payment session already exists: "+live.ID)
	e.Errors = map[string]string{
		"session_id": live.ID,
		"reference":  live.Reference,
		"status":     string(live.Status),
	}
	return e
}

// GetSessionStatus は現在の状態を返す。期限切れの pending はここで expired にする。
func (u *PaymentUsecase) GetSessionStatus(ctx context.Context, userID, orderID, sessionID string, kind model.PaymentKind) (PaymentSessionOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return PaymentSessionOutput{}, unauthorized()
	}

	var (
		out PaymentSessionOutput
		fx  afterCommit
	)
	err := inTx(ctx, u.tx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}
		if !o.IsOwnedBy(userID) {
			return notFound()
		}
		s, err := r.PaymentSessions().FindByID(ctx, sessionID)
		if err != nil {
			return dbError(err)
		}
		if s.OrderID != o.ID || s.Kind != kind {
			return notFound()
		}

		if s.IsStale(u.clock()) {
			s, o, _, err = u.expireSession(ctx, r, &fx, s, observability.ExpiryTriggerRead, CustomerActor(userID))
			if err != nil {
				return err
			}
		}

		out = toSessionOutput(s, u.clock())
		out.OrderStatus = string(o.Status)
		return nil
	})
	if err != nil {
		return PaymentSessionOutput{}, err
	}
	fx.run()
	return out, nil
}
