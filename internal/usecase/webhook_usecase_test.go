package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/payment"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) ingest(kind model.PaymentKind, body []byte) (usecase.WebhookResult, error) {
	return e.webhooks.Ingest(context.Background(), kind, body, e.signer.Sign(body))
}

// pendingInvoice は1点注文に暗号資産請求を作ったところまで進める。
func (e *env) pendingInvoice(t *testing.T, kind model.PaymentKind) (usecase.OrderOutput, usecase.PaymentSessionOutput) {
	t.Helper()
	p := e.seedProduct(t, "P-"+newUserID()[:8], "100.00", 10, true)
	user := newUserID()
	o := e.placeOrder(t, user, usecase.CreateOrderItemInput{ProductID: p.ID, Quantity: 1})

	var (
		s   usecase.PaymentSessionOutput
		err error
	)
	if kind == model.PaymentKindCrypto {
		s, err = e.payments.CreateCryptoInvoice(context.Background(), user, o.ID)
	} else {
		s, err = e.payments.CreateTraditionalSession(context.Background(), user, o.ID)
	}
	require.NoError(t, err)
	return o, s
}

// hasMarker はマーカーの有無を調べる。入れてみてロールバックするので状態は残らない。
func (e *env) hasMarker(t *testing.T, kind model.PaymentKind, eventID string) bool {
	t.Helper()
	errRollback := errors.New("rollback")
	var fresh bool
	now := e.clock.Now()
	err := e.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		fresh, err = r.WebhookEvents().InsertMarker(context.Background(), model.WebhookEvent{
			Provider:    string(kind),
			EventID:     eventID,
			ProcessedAt: now,
			ExpiresAt:   now.Add(model.WebhookMarkerTTL),
		}, now)
		if err != nil {
			return err
		}
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)
	return !fresh
}

func sessionTransitions(t *testing.T, e *env, sessionID string) []model.AuditLog {
	t.Helper()
	return e.auditLogs(t, repo.AuditLogFilter{
		Action:     ptr(model.AuditActionSessionTransition),
		ResourceID: ptr(sessionID),
	})
}

func TestWebhook_ConfirmedIsAppliedOnce(t *testing.T) {
	for name, processed := range map[string]usecase.ProcessedEventCache{
		"without cache": nil,
		"with cache":    newMemoryCache(),
	} {
		t.Run(name, func(t *testing.T) {
			e := newEnvWithCache(t, processed)
			o, inv := e.pendingInvoice(t, model.PaymentKindCrypto)

			body := webhookBody(t, "evt_1", "invoice.confirmed", map[string]any{
				"reference":       inv.Reference,
				"status":          "confirmed",
				"confirmations":   6,
				"txid":            "0xabc",
				"received_amount": inv.Amount,
			})

			res, err := e.ingest(model.PaymentKindCrypto, body)
			require.NoError(t, err)
			assert.False(t, res.Duplicate)
			assert.Equal(t, string(model.SessionStatusConfirmed), res.SessionStatus)
			assert.Equal(t, string(model.OrderStatusProcessing), res.OrderStatus)

			s := e.session(t, inv.ID)
			assert.Equal(t, model.SessionStatusConfirmed, s.Status)
			assert.Equal(t, 6, s.Confirmations)
			assert.Equal(t, "0xabc", s.TxID)
			assert.NotNil(t, s.ConfirmedAt)

			ord := e.order(t, o.ID)
			assert.True(t, ord.IsPaid())
			require.NotNil(t, ord.PaidAt)
			paidAt := *ord.PaidAt

			// 再送は何も変えない
			res, err = e.ingest(model.PaymentKindCrypto, body)
			require.NoError(t, err)
			assert.True(t, res.Duplicate)
			assert.Equal(t, paidAt, *e.order(t, o.ID).PaidAt)

			logs := sessionTransitions(t, e, inv.ID)
			require.Len(t, logs, 1)
			assert.Equal(t, "evt_1", logs[0].EventID)
			assert.Equal(t, usecase.WebhookActor(payment.CryptoProviderName), logs[0].Actor)
		})
	}
}

func TestWebhook_InsufficientConfirmationsStaysPending(t *testing.T) {
	e := newEnv(t)
	o, inv := e.pendingInvoice(t, model.PaymentKindCrypto)

	res, err := e.ingest(model.PaymentKindCrypto, webhookBody(t, "evt_c2", "invoice.confirmed", map[string]any{
		"reference":     inv.Reference,
		"confirmations": 2,
	}))
	require.NoError(t, err)
	assert.Equal(t, string(model.SessionStatusPending), res.SessionStatus)

	s := e.session(t, inv.ID)
	assert.Equal(t, 2, s.Confirmations)
	assert.Nil(t, s.ConfirmedAt)
	// 決済作成時点で processing。入金確定まで paid_at は入らない
	ord := e.order(t, o.ID)
	assert.Equal(t, model.OrderStatusProcessing, ord.Status)
	assert.Nil(t, ord.PaidAt)
	// 状態は変わっていないので遷移ログもない
	assert.Empty(t, sessionTransitions(t, e, inv.ID))

	// 後続の確認で確定する
	res, err = e.ingest(model.PaymentKindCrypto, webhookBody(t, "evt_c6", "invoice.confirmed", map[string]any{
		"reference":     inv.Reference,
		"confirmations": 6,
	}))
	require.NoError(t, err)
	assert.Equal(t, string(model.SessionStatusConfirmed), res.SessionStatus)
	assert.NotNil(t, e.order(t, o.ID).PaidAt)
}

func TestWebhook_CryptoUnderpaymentIsPartial(t *testing.T) {
	e := newEnv(t)
	o, inv := e.pendingInvoice(t, model.PaymentKindCrypto)

	res, err := e.ingest(model.PaymentKindCrypto, webhookBody(t, "evt_p", "invoice.confirmed", map[string]any{
		"reference":       inv.Reference,
		"confirmations":   8,
		"received_amount": "10.00",
	}))
	require.NoError(t, err)
	assert.Equal(t, string(model.SessionStatusPartial), res.SessionStatus)
	assert.Equal(t, model.SessionStatusPartial, e.session(t, inv.ID).Status)
	ord := e.order(t, o.ID)
	assert.Equal(t, model.OrderStatusProcessing, ord.Status)
	assert.Nil(t, ord.PaidAt)

	// partial も生きているので2本目は作れない
	_, err = e.payments.CreateCryptoInvoice(context.Background(), *o.UserID, o.ID)
	requireHTTPError(t, err, http.StatusConflict, usecase.CodeSessionAlreadyActive)
}

func TestWebhook_TraditionalAmountMismatchFailsAndRevertsOrder(t *testing.T) {
	e := newEnv(t)
	o, s := e.pendingInvoice(t, model.PaymentKindTraditional)

	res, err := e.ingest(model.PaymentKindTraditional, webhookBody(t, "evt_t", "payment.completed", map[string]any{
		"reference":       s.Reference,
		"received_amount": "1.00",
	}))
	require.NoError(t, err)
	assert.Equal(t, string(model.SessionStatusFailed), res.SessionStatus)
	assert.Equal(t, string(model.OrderStatusPendingPayment), res.OrderStatus)

	got := e.session(t, s.ID)
	assert.Equal(t, "amount_mismatch", got.FailureReason)
	assert.Equal(t, model.OrderStatusPendingPayment, e.order(t, o.ID).Status)
}

func TestWebhook_TraditionalCompleted(t *testing.T) {
	e := newEnv(t)
	o, s := e.pendingInvoice(t, model.PaymentKindTraditional)

	res, err := e.ingest(model.PaymentKindTraditional, webhookBody(t, "evt_ok", "payment.completed", map[string]any{
		"reference": s.Reference,
		"status":    "completed",
		"txid":      "ch_1",
	}))
	require.NoError(t, err)
	assert.Equal(t, string(model.SessionStatusCompleted), res.SessionStatus)
	assert.True(t, e.order(t, o.ID).IsPaid())
}

func TestWebhook_InvalidSignatureChangesNothing(t *testing.T) {
	e := newEnv(t)
	o, inv := e.pendingInvoice(t, model.PaymentKindCrypto)
	body := webhookBody(t, "evt_bad", "invoice.confirmed", map[string]any{
		"reference":     inv.Reference,
		"confirmations": 6,
	})

	_, err := e.webhooks.Ingest(context.Background(), model.PaymentKindCrypto, body, "deadbeef")
	requireHTTPError(t, err, http.StatusUnauthorized, usecase.CodeInvalidSignature)
	_, err = e.webhooks.Ingest(context.Background(), model.PaymentKindCrypto, body, "")
	requireHTTPError(t, err, http.StatusUnauthorized, usecase.CodeInvalidSignature)

	s := e.session(t, inv.ID)
	assert.Equal(t, model.SessionStatusPending, s.Status)
	assert.Zero(t, s.Confirmations)
	ord := e.order(t, o.ID)
	assert.Equal(t, model.OrderStatusProcessing, ord.Status)
	assert.Nil(t, ord.PaidAt)
	assert.Empty(t, sessionTransitions(t, e, inv.ID))
	assert.Empty(t, e.auditLogs(t, repo.AuditLogFilter{EventID: ptr("evt_bad")}))
	assert.False(t, e.hasMarker(t, model.PaymentKindCrypto, "evt_bad"))

	// 同じ id の正しい配信は重複扱いにならない
	res, err := e.ingest(model.PaymentKindCrypto, body)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, string(model.SessionStatusConfirmed), res.SessionStatus)
	assert.True(t, e.hasMarker(t, model.PaymentKindCrypto, "evt_bad"))
}

func TestWebhook_EventIDsAreScopedPerProvider(t *testing.T) {
	for name, processed := range map[string]usecase.ProcessedEventCache{
		"without cache": nil,
		"with cache":    newMemoryCache(),
	} {
		t.Run(name, func(t *testing.T) {
			e := newEnvWithCache(t, processed)
			_, inv := e.pendingInvoice(t, model.PaymentKindCrypto)
			o, pay := e.pendingInvoice(t, model.PaymentKindTraditional)

			res, err := e.ingest(model.PaymentKindCrypto, webhookBody(t, "evt_shared", "invoice.confirmed", map[string]any{
				"reference":     inv.Reference,
				"confirmations": 6,
			}))
			require.NoError(t, err)
			assert.False(t, res.Duplicate)

			// 別プロバイダが同じIDを採番しても重複扱いしない
			res, err = e.ingest(model.PaymentKindTraditional, webhookBody(t, "evt_shared", "payment.completed", map[string]any{
				"reference": pay.Reference,
			}))
			require.NoError(t, err)
			assert.False(t, res.Duplicate)
			assert.Equal(t, string(model.SessionStatusCompleted), res.SessionStatus)
			assert.NotNil(t, e.order(t, o.ID).PaidAt)
		})
	}
}

func TestWebhook_MalformedPayload(t *testing.T) {
	e := newEnv(t)
	_, inv := e.pendingInvoice(t, model.PaymentKindCrypto)

	cases := map[string][]byte{
		"not json":          []byte("{"),
		"missing id":        webhookBody(t, "", "invoice.confirmed", map[string]any{"reference": inv.Reference}),
		"unknown type":      webhookBody(t, "evt", "invoice.refunded", map[string]any{"reference": inv.Reference}),
		"other kind type":   webhookBody(t, "evt", "payment.completed", map[string]any{"reference": inv.Reference}),
		"missing reference": webhookBody(t, "evt", "invoice.confirmed", map[string]any{}),
		"status mismatch":   webhookBody(t, "evt", "invoice.confirmed", map[string]any{"reference": inv.Reference, "status": "failed"}),
		"negative confs":    webhookBody(t, "evt", "invoice.confirmed", map[string]any{"reference": inv.Reference, "confirmations": -1}),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.ingest(model.PaymentKindCrypto, body)
			requireHTTPError(t, err, http.StatusBadRequest, usecase.CodeMalformedPayload)
		})
	}
	assert.Equal(t, model.SessionStatusPending, e.session(t, inv.ID).Status)
}

func TestWebhook_UnknownReferenceIsNotFoundAndNotMarked(t *testing.T) {
	e := newEnv(t)
	_, inv := e.pendingInvoice(t, model.PaymentKindCrypto)

	body := webhookBody(t, "evt_x", "invoice.confirmed", map[string]any{"reference": "inv_missing"})
	_, err := e.ingest(model.PaymentKindCrypto, body)
	requireHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)

	// マーカーは巻き戻っているので、再送は重複にならない
	_, err = e.ingest(model.PaymentKindCrypto, body)
	requireHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)

	// 種別違いのエンドポイントに来た参照も見つからない扱い
	_, err = e.ingest(model.PaymentKindTraditional, webhookBody(t, "evt_y", "payment.completed", map[string]any{"reference": inv.Reference}))
	requireHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)
}

func TestWebhook_TerminalSessionIsIgnored(t *testing.T) {
	e := newEnv(t)
	o, inv := e.pendingInvoice(t, model.PaymentKindCrypto)

	_, err := e.ingest(model.PaymentKindCrypto, webhookBody(t, "evt_fail", "invoice.failed", map[string]any{
		"reference":      inv.Reference,
		"failure_reason": "rejected",
	}))
	require.NoError(t, err)
	assert.Equal(t, "rejected", e.session(t, inv.ID).FailureReason)
	assert.Equal(t, model.OrderStatusPendingPayment, e.order(t, o.ID).Status)

	res, err := e.ingest(model.PaymentKindCrypto, webhookBody(t, "evt_late", "invoice.confirmed", map[string]any{
		"reference":     inv.Reference,
		"confirmations": 6,
	}))
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.Equal(t, string(model.SessionStatusFailed), res.SessionStatus)
	assert.False(t, e.order(t, o.ID).IsPaid())
}

func TestWebhook_PaymentForCancelledOrderDoesNotReopenIt(t *testing.T) {
	e := newEnv(t)
	o, inv := e.pendingInvoice(t, model.PaymentKindCrypto)

	// キャンセル前にプロバイダ側の状態だけ進んでいても、
	// セッションは failed になるので後続の確定は無視される
	_, err := e.orders.CancelOrder(context.Background(), *o.UserID, o.ID)
	require.NoError(t, err)

	res, err := e.ingest(model.PaymentKindCrypto, webhookBody(t, "evt_after_cancel", "invoice.confirmed", map[string]any{
		"reference":     inv.Reference,
		"confirmations": 6,
	}))
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.Equal(t, model.OrderStatusCancelled, e.order(t, o.ID).Status)
}
