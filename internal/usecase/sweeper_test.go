package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepOnce_ExpiresStaleSessions(t *testing.T) {
	e := newEnv(t)
	o, s := e.pendingInvoice(t, model.PaymentKindTraditional)
	_, fresh := e.pendingInvoice(t, model.PaymentKindCrypto)

	e.clock.Advance(16 * time.Minute)
	report, err := e.sweeper.SweepOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Expired)
	require.Len(t, report.Sessions, 1)
	assert.Equal(t, s.ID, report.Sessions[0].SessionID)
	assert.Equal(t, usecase.SweepOutcomeExpired, report.Sessions[0].Outcome)

	assert.Equal(t, model.SessionStatusExpired, e.session(t, s.ID).Status)
	assert.Equal(t, model.OrderStatusPendingPayment, e.order(t, o.ID).Status)
	// 30分の暗号資産請求はまだ生きている
	assert.Equal(t, model.SessionStatusPending, e.session(t, fresh.ID).Status)

	logs := sessionTransitions(t, e, s.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, usecase.SweeperActor, logs[0].Actor)

	// 2回目は対象なし
	report, err = e.sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Examined)
}

func TestSweepOnce_LeavesPartialInvoiceToProvider(t *testing.T) {
	e := newEnv(t)
	o, inv := e.pendingInvoice(t, model.PaymentKindCrypto)
	_, err := e.ingest(model.PaymentKindCrypto, webhookBody(t, "evt_part", "invoice.partial", map[string]any{
		"reference":       inv.Reference,
		"confirmations":   3,
		"received_amount": "10.00",
	}))
	require.NoError(t, err)

	e.clock.Advance(2 * time.Hour)
	report, err := e.sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Examined)
	assert.Equal(t, model.SessionStatusPartial, e.session(t, inv.ID).Status)

	// 読み取り時の失効もしない
	st, err := e.payments.GetSessionStatus(context.Background(), *o.UserID, o.ID, inv.ID, model.PaymentKindCrypto)
	require.NoError(t, err)
	assert.Equal(t, string(model.SessionStatusPartial), st.Status)

	// プロバイダの invoice.expired で終わり、注文は再決済できる
	res, err := e.ingest(model.PaymentKindCrypto, webhookBody(t, "evt_exp", "invoice.expired", map[string]any{
		"reference": inv.Reference,
	}))
	require.NoError(t, err)
	assert.Equal(t, string(model.SessionStatusExpired), res.SessionStatus)
	assert.Equal(t, string(model.OrderStatusPendingPayment), res.OrderStatus)

	_, err = e.payments.CreateCryptoInvoice(context.Background(), *o.UserID, o.ID)
	require.NoError(t, err)
}

func TestSweepOnce_SkipsSessionPaidAtProvider(t *testing.T) {
	e := newEnv(t)
	o, s := e.pendingInvoice(t, model.PaymentKindTraditional)
	_, err := e.gateway.Complete(s.Reference, "ch_late")
	require.NoError(t, err)

	e.clock.Advance(20 * time.Minute)
	report, err := e.sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, usecase.SweepOutcomeSkippedPaid, report.Sessions[0].Outcome)
	assert.Equal(t, model.SessionStatusPending, e.session(t, s.ID).Status)

	// 遅れて届いた webhook で確定する
	res, err := e.ingest(model.PaymentKindTraditional, webhookBody(t, "evt_late", "payment.completed", map[string]any{
		"reference": s.Reference,
	}))
	require.NoError(t, err)
	assert.Equal(t, string(model.SessionStatusCompleted), res.SessionStatus)
	assert.True(t, e.order(t, o.ID).IsPaid())
}

func TestSweepOnce_PrunesExpiredMarkers(t *testing.T) {
	e := newEnv(t)
	_, inv := e.pendingInvoice(t, model.PaymentKindCrypto)
	body := webhookBody(t, "evt_old", "invoice.pending", map[string]any{
		"reference":     inv.Reference,
		"confirmations": 1,
	})
	_, err := e.ingest(model.PaymentKindCrypto, body)
	require.NoError(t, err)

	e.clock.Advance(model.WebhookMarkerTTL + time.Minute)
	report, err := e.sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.MarkersPruned)
}

func TestSweeperRun_StopsWithContext(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.sweeper.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
