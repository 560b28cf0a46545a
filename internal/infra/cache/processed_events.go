// Package cache は処理済み webhook イベントのキャッシュ。
// 正はDBのマーカーで、ここはコミット後の重複配信を早く返すためだけに使う。
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/config"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

type ProcessedEvents interface {
	Seen(ctx context.Context, provider, eventID string) (bool, error)
	Remember(ctx context.Context, provider, eventID string, ttl time.Duration) error
}

const keyPrefix = "webhook:processed:"

// webhook:processed:<provider>:<event_id>
func redisKey(provider, eventID string) string {
	return keyPrefix + model.WebhookEventKey(provider, eventID)
}

// NewRedisClient は接続して疎通を確認する。
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

type RedisProcessedEvents struct {
	rdb *redis.Client
}

func NewRedisProcessedEvents(rdb *redis.Client) *RedisProcessedEvents {
	return &RedisProcessedEvents{rdb: rdb}
}

func (c *RedisProcessedEvents) Seen(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, redisKey(provider, eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisProcessedEvents) Remember(ctx context.Context, provider, eventID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, redisKey(provider, eventID), "1", ttl).Err()
}

// MemoryProcessedEvents は redis なしの単体起動とテスト用。
type MemoryProcessedEvents struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

func NewMemoryProcessedEvents() *MemoryProcessedEvents {
	return &MemoryProcessedEvents{ids: map[string]time.Time{}, now: time.Now}
}

func (c *MemoryProcessedEvents) Seen(_ context.Context, provider, eventID string) (bool, error) {
	key := model.WebhookEventKey(provider, eventID)
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.ids[key]
	if !ok {
		return false, nil
	}
	if !c.now().Before(exp) {
		delete(c.ids, key)
		return false, nil
	}
	return true, nil
}

func (c *MemoryProcessedEvents) Remember(_ context.Context, provider, eventID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[model.WebhookEventKey(provider, eventID)] = c.now().Add(ttl)
	return nil
}
