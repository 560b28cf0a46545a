package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s *Store, stock int64) model.Product {
	t.Helper()
	var p model.Product
	err := s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		p, err = r.Products().Create(context.Background(), model.Product{
			Name:           "Mug",
			SKU:            "MUG-1",
			Price:          decimal.RequireFromString("12.50"),
			StockQty:       stock,
			TrackInventory: true,
			IsActive:       true,
		})
		return err
	})
	require.NoError(t, err)
	return p
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	s := NewStore()
	p := seedProduct(t, s, 5)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_ = s.WithinTx(ctx, func(r repo.TxRepos) error {
		got, err := r.Products().FindByID(ctx, p.ID)
		require.NoError(t, err)
		// 減算は巻き戻っている
		assert.Equal(t, int64(5), got.StockQty)
		return nil
	})
}

func TestWithinTx_LockWaitHonoursContext(t *testing.T) {
	s := NewStore()
	started := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = s.WithinTx(context.Background(), func(r repo.TxRepos) error {
			close(started)
			<-done
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithinTx(ctx, func(r repo.TxRepos) error { return nil })
	close(done)

	assert.ErrorIs(t, err, repo.ErrLockTimeout)
}

func TestSessions_OneLivePerOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		first := model.PaymentSession{ID: "s1", OrderID: "o1", Reference: "inv_1", Status: model.SessionStatusPending, CreatedAt: now}
		require.NoError(t, r.PaymentSessions().Create(ctx, first))

		second := model.PaymentSession{ID: "s2", OrderID: "o1", Reference: "inv_2", Status: model.SessionStatusPending, CreatedAt: now}
		assert.ErrorIs(t, r.PaymentSessions().Create(ctx, second), repo.ErrConflict)

		first.Status = model.SessionStatusExpired
		require.NoError(t, r.PaymentSessions().Update(ctx, first))
		assert.NoError(t, r.PaymentSessions().Create(ctx, second))

		live, found, err := r.PaymentSessions().FindLiveByOrderID(ctx, "o1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "s2", live.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestWebhookMarker_ExpiredIsReplaced(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := model.WebhookEvent{Provider: "crypto", EventID: "evt_1", ProcessedAt: now, ExpiresAt: now.Add(model.WebhookMarkerTTL)}

	_ = s.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, _ := r.WebhookEvents().InsertMarker(ctx, ev, now)
		assert.True(t, ok)

		ok, _ = r.WebhookEvents().InsertMarker(ctx, ev, now.Add(time.Hour))
		assert.False(t, ok)

		// 別プロバイダの同じIDは別のマーカー
		other := ev
		other.Provider = "traditional"
		ok, _ = r.WebhookEvents().InsertMarker(ctx, other, now.Add(time.Hour))
		assert.True(t, ok)

		later := now.Add(25 * time.Hour)
		ok, _ = r.WebhookEvents().InsertMarker(ctx, model.WebhookEvent{Provider: "crypto", EventID: "evt_1", ProcessedAt: later, ExpiresAt: later.Add(model.WebhookMarkerTTL)}, later)
		assert.True(t, ok)

		n, _ := r.WebhookEvents().DeleteExpired(ctx, later.Add(48*time.Hour))
		assert.Equal(t, int64(2), n)
		return nil
	})
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	s := NewStore()
	users := NewUserRepository(s)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, model.User{ID: "u1", Email: "a@example.com"}))
	assert.ErrorIs(t, users.Create(ctx, model.User{ID: "u2", Email: "a@example.com"}), repo.ErrConflict)

	got, err := users.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = users.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
