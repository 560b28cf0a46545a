package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/config"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(postgresDSN(cfg))
	case config.DriverMySQL:
		dialector = mysql.Open(mysqlDSN(cfg))
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// 一意制約違反を gorm.ErrDuplicatedKey に揃える
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return gdb, nil
}

func postgresDSN(cfg config.DBConfig) string {
	// DATABASE_URL があれば最優先で使う
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
}

func mysqlDSN(cfg config.DBConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name,
	)
}

// Models はAutoMigrate対象。
func Models() []any {
	return []any{
		&model.User{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentSession{},
		&model.WebhookEvent{},
		&model.AuditLog{},
	}
}

// activeSessionIndexSQL は注文ごとに生きているセッションを1件に制限する部分一意インデックス。
// postgres のみ。mysql では注文行の FOR UPDATE ロックだけで直列化する。
const activeSessionIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_sessions_active_order
ON payment_sessions (order_id) WHERE status IN ('pending', 'partial')`

// Migrate は開発用。本番は cmd/migrate（golang-migrate）を使う。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return err
	}
	return createActiveSessionIndex(gdb)
}

func createActiveSessionIndex(gdb *gorm.DB) error {
	if gdb.Dialector.Name() != "postgres" {
		return nil
	}
	return gdb.Exec(activeSessionIndexSQL).Error
}

// Pinger はヘルスチェック用。
type Pinger struct {
	db *gorm.DB
}

func NewPinger(gdb *gorm.DB) *Pinger {
	return &Pinger{db: gdb}
}

func (p *Pinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
