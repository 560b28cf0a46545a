package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/observability"
	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"go.uber.org/zap"
)

// 監査ログの actor
const SweeperActor = "system:sweeper"

func CustomerActor(userID string) string  { return "customer:" + userID }
func AdminActor(userID string) string     { return "admin:" + userID }
func WebhookActor(provider string) string { return "webhook:" + provider }

// base は各 usecase 共通の依存（ロガー・指標・時計）。
type base struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

type Option func(*base)

func WithLogger(l *zap.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(b *base) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithClock は現在時刻を差し替える（テスト用）。
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

func newBase(opts []Option) base {
	b := base{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.metrics == nil {
		b.metrics = observability.NopMetrics()
	}
	return b
}

func (b *base) clock() time.Time {
	return b.now().UTC()
}

// inTx は fn をトランザクションで実行する。ロック待ちの打ち切りなどもHTTPエラーにして返す。
func inTx(ctx context.Context, tx repo.TransactionManager, fn func(r repo.TxRepos) error) error {
	if err := tx.WithinTx(ctx, fn); err != nil {
		return dbError(err)
	}
	return nil
}

// afterCommit はコミット後にだけ実行する処理（ログ・指標・キャッシュ）。
// ロールバックしたら実行しない。
type afterCommit []func()

func (a *afterCommit) add(fn func()) { *a = append(*a, fn) }

func (a afterCommit) run() {
	for _, fn := range a {
		fn()
	}
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
