package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/bootstrap"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/buildinfo"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/config"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/handler"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/middleware"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/observability"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/payment"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/server"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/validator"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//.envは任意（なければ環境変数だけ）
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	debug := buildinfo.DebugEnabled(cfg.Debug)
	if cfg.Debug && !buildinfo.Debug {
		logger.Warn("APP_DEBUG is ignored in non-debug builds")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	//DB接続
	store, err := bootstrap.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	processed, closeCache, err := bootstrap.OpenProcessedEvents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeCache() }()

	if cfg.SeedDemoCatalog {
		if err := bootstrap.SeedDemoCatalog(ctx, store.Tx, logger); err != nil {
			return err
		}
	}

	//決済プロバイダ（シミュレータ）
	crypto := payment.NewCryptoSimulator(cfg.GatewayBaseURL)
	gateway := payment.NewGatewaySimulator(cfg.GatewayBaseURL)
	signer := payment.NewSigner(cfg.WebhookSecret)

	//Usecase生成
	opts := []usecase.Option{usecase.WithLogger(logger), usecase.WithMetrics(metrics)}
	authUC := usecase.NewAuthUsecase(store.Users, validator.NewAuthValidator(), cfg.JWTSecret, opts...)
	orderUC := usecase.NewOrderUsecase(store.Tx, validator.NewOrderValidator(), cfg.ShippingFee, opts...)
	paymentUC := usecase.NewPaymentUsecase(store.Tx, crypto, gateway, cfg.CryptoCurrency, opts...)
	webhookUC := usecase.NewWebhookUsecase(store.Tx, signer, processed, opts...)
	adminUC := usecase.NewAdminOrderUsecase(store.Tx, opts...)
	sweeper := usecase.NewExpirySweeper(store.Tx, []payment.Provider{crypto, gateway}, opts...)

	if cfg.AdminEmail != "" {
		if err := authUC.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}

	//Handler生成
	handlers := server.Handlers{
		JWTSecret:      cfg.JWTSecret,
		Users:          store.Users,
		OrderLimiter:   middleware.NewKeyedRateLimiter(rate.Limit(cfg.OrderRateLimit), cfg.OrderRateBurst),
		WebhookLimiter: middleware.NewKeyedRateLimiter(rate.Limit(50), 100),
		AuthLimiter:    middleware.NewKeyedRateLimiter(rate.Limit(1), 5),
		Health:         handler.NewHealthHandler(store.Pinger),
		Auth:           handler.NewAuthHandler(authUC),
		Order:          handler.NewOrderHandler(orderUC),
		Payment:        handler.NewPaymentHandler(paymentUC),
		Webhook:        handler.NewWebhookHandler(webhookUC),
		Admin:          handler.NewAdminOrderHandler(adminUC),
	}
	if debug {
		logger.Warn("debug endpoints enabled")
		handlers.Debug = handler.NewDebugHandler(usecase.NewDebugUsecase(store.Tx, gateway, signer, webhookUC, opts...))
	}

	e := server.New(server.Options{
		Logger:         logger,
		Metrics:        metrics,
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
		Debug:          debug,
	}, handlers)

	//期限切れセッションの定期スイープ
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx, cfg.SweepInterval)
	}()

	err = server.Run(ctx, e, ":"+cfg.Port, logger)
	stop()
	<-sweepDone
	if err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
