package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod
	Debug bool   // debugビルドでのみ有効

	DB    DBConfig
	Redis RedisConfig

	JWTSecret     string // JWT署名シークレット
	WebhookSecret string // webhook署名（HMAC-SHA256）の共有シークレット

	ShippingFee    decimal.Decimal // 送料（一律）
	CryptoCurrency string          // 請求通貨（為替換算はしない）
	GatewayBaseURL string          // 疑似ゲートウェイのリダイレクト先

	RequestTimeout time.Duration
	SweepInterval  time.Duration // 0なら定期スイープしない

	OrderRateLimit float64 // ユーザーごとの注文作成 req/s
	OrderRateBurst int

	LogLevel string

	// 起動時に用意する管理者（空なら作らない）
	AdminEmail    string
	AdminPassword string
	// デモ用の商品を投入する（memory ドライバ向け）
	SeedDemoCatalog bool
}

type DBConfig struct {
	Driver      string // postgres / mysql / memory
	URL         string // DATABASE_URL（あれば最優先）
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	LockTimeout time.Duration
	AutoMigrate bool
}

type RedisConfig struct {
	Addr     string // 空なら使わない
	Password string
	DB       int
}

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// Loadは環境変数（.envはmainでgodotenvが読み込み済み）
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	fee, err := decimal.NewFromString(strings.TrimSpace(v.GetString("SHIPPING_FEE")))
	if err != nil {
		return Config{}, fmt.Errorf("SHIPPING_FEE must be decimal: %w", err)
	}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER")))
	cfg := Config{
		Port:  v.GetString("PORT"),
		GoEnv: v.GetString("GO_ENV"),
		Debug: v.GetBool("APP_DEBUG"),

		DB: DBConfig{
			Driver:      driver,
			URL:         v.GetString("DATABASE_URL"),
			Host:        v.GetString(dbKey(driver, "HOST")),
			Port:        v.GetString(dbKey(driver, "PORT")),
			User:        v.GetString(dbKey(driver, "USER")),
			Password:    v.GetString(dbKey(driver, "PASSWORD")),
			Name:        v.GetString(dbKey(driver, "DB")),
			SSLMode:     v.GetString("POSTGRES_SSLMODE"),
			LockTimeout: v.GetDuration("DB_LOCK_TIMEOUT"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},

		JWTSecret:     v.GetString("JWT_SECRET"),
		WebhookSecret: v.GetString("WEBHOOK_SECRET"),

		ShippingFee:    fee,
		CryptoCurrency: strings.ToUpper(v.GetString("CRYPTO_CURRENCY")),
		GatewayBaseURL: strings.TrimRight(v.GetString("GATEWAY_BASE_URL"), "/"),

		RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		SweepInterval:  v.GetDuration("SWEEP_INTERVAL"),

		OrderRateLimit: v.GetFloat64("ORDER_RATE_LIMIT"),
		OrderRateBurst: v.GetInt("ORDER_RATE_BURST"),

		LogLevel: v.GetString("LOG_LEVEL"),

		AdminEmail:      v.GetString("ADMIN_EMAIL"),
		AdminPassword:   v.GetString("ADMIN_PASSWORD"),
		SeedDemoCatalog: v.GetBool("SEED_DEMO_CATALOG"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "dev")
	v.SetDefault("APP_DEBUG", false)
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_DB", "app")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("MYSQL_HOST", "127.0.0.1")
	v.SetDefault("MYSQL_PORT", "3306")
	v.SetDefault("MYSQL_USER", "app")
	v.SetDefault("MYSQL_DB", "app")
	v.SetDefault("DB_LOCK_TIMEOUT", "5s")
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SHIPPING_FEE", "10.00")
	v.SetDefault("CRYPTO_CURRENCY", "USDT")
	v.SetDefault("GATEWAY_BASE_URL", "http://localhost:8080/simulate/gateway")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("ORDER_RATE_LIMIT", 2.0)
	v.SetDefault("ORDER_RATE_BURST", 5)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SEED_DEMO_CATALOG", false)
}

func dbKey(driver, suffix string) string {
	if driver == DriverMySQL {
		return "MYSQL_" + suffix
	}
	return "POSTGRES_" + suffix
}

func (c Config) validate() error {
	//必須チェック
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required")
	}
	switch c.DB.Driver {
	case DriverPostgres, DriverMySQL:
		if c.DB.URL == "" && c.DB.Password == "" {
			return fmt.Errorf("%s is required", dbKey(c.DB.Driver, "PASSWORD"))
		}
	case DriverMemory:
	default:
		return fmt.Errorf("DB_DRIVER must be postgres, mysql or memory: %q", c.DB.Driver)
	}
	if c.ShippingFee.IsNegative() {
		return fmt.Errorf("SHIPPING_FEE must not be negative")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
