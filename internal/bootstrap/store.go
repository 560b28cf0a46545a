// Package bootstrap は cmd 側で共有する組み立て処理。
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/config"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/infra/cache"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/infra/db"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/infra/memory"
	infraRepo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/infra/repository"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Store は選んだドライバの永続化一式。
type Store struct {
	Tx     repository.TransactionManager
	Users  repository.UserRepository
	Pinger Pinger
	Close  func() error
}

// OpenStore は DB_DRIVER に応じて gorm（postgres/mysql）かメモリの実装を返す。
func OpenStore(cfg config.Config, logger *zap.Logger) (Store, error) {
	if cfg.DB.Driver == config.DriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		st := memory.NewStore()
		return Store{
			Tx:     st,
			Users:  memory.NewUserRepository(st),
			Pinger: st,
			Close:  func() error { return nil },
		}, nil
	}

	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return Store{}, fmt.Errorf("connect %s: %w", cfg.DB.Driver, err)
	}
	if cfg.DB.AutoMigrate {
		if err := db.Migrate(gdb); err != nil {
			return Store{}, fmt.Errorf("auto migrate: %w", err)
		}
		logger.Info("auto migrate done")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return Store{}, err
	}
	return Store{
		Tx:     infraRepo.NewTxManagerGorm(gdb, cfg.DB.LockTimeout),
		Users:  infraRepo.NewUserGormRepository(gdb),
		Pinger: db.NewPinger(gdb),
		Close:  sqlDB.Close,
	}, nil
}

// OpenProcessedEvents は REDIS_ADDR があれば redis、なければメモリ。
func OpenProcessedEvents(ctx context.Context, cfg config.Config, logger *zap.Logger) (usecase.ProcessedEventCache, func() error, error) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemoryProcessedEvents(), func() error { return nil }, nil
	}
	rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("processed event cache: redis", zap.String("addr", cfg.Redis.Addr))
	return cache.NewRedisProcessedEvents(rdb), rdb.Close, nil
}

// デモ用の商品
var demoCatalog = []model.Product{
	{Name: "Dream Pack Classic", SKU: "DP-CLASSIC", Price: decimal.RequireFromString("100.00"), StockQty: 10, TrackInventory: true, IsActive: true},
	{Name: "Dream Pack Mini", SKU: "DP-MINI", Price: decimal.RequireFromString("50.00"), StockQty: 25, TrackInventory: true, IsActive: true},
	{Name: "Gift Card", SKU: "GIFT-CARD", Price: decimal.RequireFromString("25.00"), TrackInventory: false, IsActive: true},
}

// SeedDemoCatalog はデモ商品を投入する。SKU が既にあればスキップ。
func SeedDemoCatalog(ctx context.Context, tx repository.TransactionManager, logger *zap.Logger) error {
	for _, p := range demoCatalog {
		err := tx.WithinTx(ctx, func(r repository.TxRepos) error {
			created, err := r.Products().Create(ctx, p)
			if err != nil {
				return err
			}
			logger.Info("demo product seeded", zap.Int64("product_id", created.ID), zap.String("sku", created.SKU))
			return nil
		})
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("seed %s: %w", p.SKU, err)
		}
	}
	return nil
}
