package usecase_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder_TotalsAndReservation(t *testing.T) {
	e := newEnv(t)
	big := e.seedProduct(t, "BIG", "100.00", 10, true)
	small := e.seedProduct(t, "SMALL", "50.00", 5, true)
	user := newUserID()

	out := e.placeOrder(t, user,
		usecase.CreateOrderItemInput{ProductID: big.ID, Quantity: 2},
		usecase.CreateOrderItemInput{ProductID: small.ID, Quantity: 1},
	)

	assert.Equal(t, "250.00", out.Subtotal)
	assert.Equal(t, "10.00", out.Shipping)
	assert.Equal(t, "46.80", out.Tax)
	assert.Equal(t, "306.80", out.Total)
	assert.Equal(t, string(model.OrderStatusPendingPayment), out.Status)
	assert.False(t, out.IsPaid)
	assert.True(t, out.CanBeCancelled)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "200.00", out.Items[0].TotalPrice)
	assert.Regexp(t, `^ORD-`, out.OrderNumber)

	assert.EqualValues(t, 8, e.product(t, big.ID).StockQty)
	assert.EqualValues(t, 4, e.product(t, small.ID).StockQty)
}

func TestCreateOrder_InsufficientStockRollsBackEverything(t *testing.T) {
	e := newEnv(t)
	a := e.seedProduct(t, "A", "10.00", 5, true)
	b := e.seedProduct(t, "B", "10.00", 1, true)

	_, err := e.orders.CreateOrder(context.Background(), newUserID(), usecase.CreateOrderInput{
		Items: []usecase.CreateOrderItemInput{
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 2},
		},
		ShippingAddress: address(),
	})
	he := requireHTTPError(t, err, http.StatusConflict, usecase.CodeInsufficientStock)
	assert.Contains(t, he.Errors, "product_2")

	// 1行目の減算も残らない
	assert.EqualValues(t, 5, e.product(t, a.ID).StockQty)
	assert.EqualValues(t, 1, e.product(t, b.ID).StockQty)
}

func TestCreateOrder_SameProductOnTwoLinesUsesSummedQuantity(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "P", "10.00", 3, true)

	_, err := e.orders.CreateOrder(context.Background(), newUserID(), usecase.CreateOrderInput{
		Items: []usecase.CreateOrderItemInput{
			{ProductID: p.ID, Quantity: 2},
			{ProductID: p.ID, Quantity: 2},
		},
		ShippingAddress: address(),
	})
	requireHTTPError(t, err, http.StatusConflict, usecase.CodeInsufficientStock)
	assert.EqualValues(t, 3, e.product(t, p.ID).StockQty)
}

func TestCreateOrder_UntrackedProductIsUnconstrained(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "GIFT", "25.00", 0, false)

	out := e.placeOrder(t, newUserID(), usecase.CreateOrderItemInput{ProductID: p.ID, Quantity: 40})
	assert.Equal(t, "1000.00", out.Subtotal)
	assert.EqualValues(t, 0, e.product(t, p.ID).StockQty)
}

func TestCreateOrder_Validation(t *testing.T) {
	e := newEnv(t)

	_, err := e.orders.CreateOrder(context.Background(), newUserID(), usecase.CreateOrderInput{
		Items: []usecase.CreateOrderItemInput{{ProductID: 1, Quantity: -1}},
	})
	he := requireHTTPError(t, err, http.StatusUnprocessableEntity, usecase.CodeValidationFailed)
	assert.Contains(t, he.Errors, "items[0].quantity")

	_, err = e.orders.CreateOrder(context.Background(), newUserID(), usecase.CreateOrderInput{
		Items:           []usecase.CreateOrderItemInput{{ProductID: 999, Quantity: 1}},
		ShippingAddress: address(),
	})
	he = requireHTTPError(t, err, http.StatusUnprocessableEntity, usecase.CodeValidationFailed)
	assert.Contains(t, he.Errors, "items[0].product_id")

	_, err = e.orders.CreateOrder(context.Background(), "", usecase.CreateOrderInput{})
	requireHTTPError(t, err, http.StatusUnauthorized, usecase.CodeUnauthorized)
}

// メモリストアはトランザクションを直列に流すので、ここで見ているのは予約の全件判定まで。
// DB の行ロックは gorm_repository_test.go の SQL 形だけ。
func TestCreateOrder_NoOversellUnderConcurrency(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "HOT", "10.00", 5, true)

	const buyers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		conflict int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.orders.CreateOrder(context.Background(), newUserID(), usecase.CreateOrderInput{
				Items:           []usecase.CreateOrderItemInput{{ProductID: p.ID, Quantity: 1}},
				ShippingAddress: address(),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if he, isHTTP := usecase.AsHTTPError(err); isHTTP && he.Code == usecase.CodeInsufficientStock {
				conflict++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, buyers-5, conflict)
	assert.EqualValues(t, 0, e.product(t, p.ID).StockQty)
}

func TestGetOrder_OnlyOwner(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "P", "10.00", 5, true)
	owner := newUserID()
	o := e.placeOrder(t, owner, usecase.CreateOrderItemInput{ProductID: p.ID, Quantity: 1})

	got, err := e.orders.GetOrder(context.Background(), owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	// 他人の注文と存在しない注文は同じ 404
	_, err = e.orders.GetOrder(context.Background(), newUserID(), o.ID)
	requireHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)
	_, err = e.orders.GetOrder(context.Background(), owner, "missing")
	requireHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)
}

func TestListOrders(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "P", "10.00", 10, true)
	user := newUserID()
	for i := 0; i < 3; i++ {
		e.placeOrder(t, user, usecase.CreateOrderItemInput{ProductID: p.ID, Quantity: 1})
		e.clock.Advance(1)
	}
	e.placeOrder(t, newUserID(), usecase.CreateOrderItemInput{ProductID: p.ID, Quantity: 1})

	out, err := e.orders.ListOrders(context.Background(), user, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, out.Total)
	assert.Len(t, out.Items, 2)
	assert.True(t, !out.Items[0].CreatedAt.Before(out.Items[1].CreatedAt))
}

func TestCancelOrder_RestocksAndFailsLiveSession(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "P", "10.00", 5, true)
	user := newUserID()
	o := e.placeOrder(t, user, usecase.CreateOrderItemInput{ProductID: p.ID, Quantity: 3})
	inv, err := e.payments.CreateCryptoInvoice(context.Background(), user, o.ID)
	require.NoError(t, err)

	out, err := e.orders.CancelOrder(context.Background(), user, o.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderStatusCancelled), out.Status)
	assert.NotNil(t, out.CancelledAt)
	assert.EqualValues(t, 5, e.product(t, p.ID).StockQty)

	s := e.session(t, inv.ID)
	assert.Equal(t, model.SessionStatusFailed, s.Status)
	assert.Equal(t, "order_cancelled", s.FailureReason)

	restored := e.auditLogs(t, repo.AuditLogFilter{Action: ptr(model.AuditActionStockRestored)})
	assert.Len(t, restored, 1)

	// 2回目は取り消せない（在庫も二重に戻らない）
	_, err = e.orders.CancelOrder(context.Background(), user, o.ID)
	requireHTTPError(t, err, http.StatusConflict, usecase.CodeOrderNotCancellable)
	assert.EqualValues(t, 5, e.product(t, p.ID).StockQty)
}

func ptr[T any](v T) *T { return &v }
