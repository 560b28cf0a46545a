package usecase_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/infra/cache"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/infra/memory"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/payment"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// env はメモリストア上に組み立てた usecase 一式。
type env struct {
	store   *memory.Store
	clock   *testClock
	signer  *payment.Signer
	crypto  *payment.CryptoSimulator
	gateway *payment.GatewaySimulator

	orders   *usecase.OrderUsecase
	payments *usecase.PaymentUsecase
	webhooks *usecase.WebhookUsecase
	admin    *usecase.AdminOrderUsecase
	sweeper  *usecase.ExpirySweeper
	debug    *usecase.DebugUsecase
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithCache(t, nil)
}

func newEnvWithCache(t *testing.T, processed usecase.ProcessedEventCache) *env {
	t.Helper()
	e := &env{
		store:   memory.NewStore(),
		clock:   &testClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)},
		signer:  payment.NewSigner(webhookSecret),
		crypto:  payment.NewCryptoSimulator("http://pay.test"),
		gateway: payment.NewGatewaySimulator("http://pay.test"),
	}
	e.crypto.SetClock(e.clock.Now)
	e.gateway.SetClock(e.clock.Now)

	opts := []usecase.Option{usecase.WithClock(e.clock.Now)}
	e.orders = usecase.NewOrderUsecase(e.store, validator.NewOrderValidator(), decimal.RequireFromString("10.00"), opts...)
	e.payments = usecase.NewPaymentUsecase(e.store, e.crypto, e.gateway, "USDT", opts...)
	e.webhooks = usecase.NewWebhookUsecase(e.store, e.signer, processed, opts...)
	e.admin = usecase.NewAdminOrderUsecase(e.store, opts...)
	e.sweeper = usecase.NewExpirySweeper(e.store, []payment.Provider{e.crypto, e.gateway}, opts...)
	e.debug = usecase.NewDebugUsecase(e.store, e.gateway, e.signer, e.webhooks, opts...)
	return e
}

func newMemoryCache() usecase.ProcessedEventCache {
	return cache.NewMemoryProcessedEvents()
}

func (e *env) seedProduct(t *testing.T, sku, price string, stock int64, tracked bool) model.Product {
	t.Helper()
	var p model.Product
	err := e.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		p, err = r.Products().Create(context.Background(), model.Product{
			Name:           sku,
			SKU:            sku,
			Price:          decimal.RequireFromString(price),
			StockQty:       stock,
			TrackInventory: tracked,
			IsActive:       true,
		})
		return err
	})
	require.NoError(t, err)
	return p
}

func (e *env) product(t *testing.T, id int64) model.Product {
	t.Helper()
	var p model.Product
	err := e.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		p, err = r.Products().FindByID(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return p
}

func (e *env) session(t *testing.T, id string) model.PaymentSession {
	t.Helper()
	var s model.PaymentSession
	err := e.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		s, err = r.PaymentSessions().FindByID(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return s
}

func (e *env) order(t *testing.T, id string) model.Order {
	t.Helper()
	var o model.Order
	err := e.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		o, err = r.Orders().FindByID(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return o
}

func (e *env) auditLogs(t *testing.T, f repo.AuditLogFilter) []model.AuditLog {
	t.Helper()
	var logs []model.AuditLog
	err := e.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(context.Background(), f)
		return err
	})
	require.NoError(t, err)
	return logs
}

func address() model.AddressSnapshot {
	return model.AddressSnapshot{
		Name:       "Hanako Yamada",
		Line1:      "1-1 Marunouchi",
		City:       "Tokyo",
		PostalCode: "100-0005",
		Country:    "JP",
	}
}

func newUserID() string { return uuid.NewString() }

func (e *env) placeOrder(t *testing.T, userID string, items ...usecase.CreateOrderItemInput) usecase.OrderOutput {
	t.Helper()
	out, err := e.orders.CreateOrder(context.Background(), userID, usecase.CreateOrderInput{
		Items:           items,
		ShippingAddress: address(),
	})
	require.NoError(t, err)
	return out
}

// webhookBody は配信されるイベントのJSONを作る。
func webhookBody(t *testing.T, id, typ string, object map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":   id,
		"type": typ,
		"data": map[string]any{"object": object},
	})
	require.NoError(t, err)
	return b
}

func requireHTTPError(t *testing.T, err error, status int, code usecase.ErrorCode) *usecase.HTTPError {
	t.Helper()
	require.Error(t, err)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "expected *HTTPError, got %T: %v", err, err)
	require.Equal(t, status, he.Status, he.Error())
	require.Equal(t, code, he.Code, he.Error())
	return he
}
