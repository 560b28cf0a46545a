package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/handler"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/middleware"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/observability"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// Options は echo 全体に掛ける設定。
type Options struct {
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	// エラー応答に内部の原因を含める（デバッグビルドのみ）
	Debug bool
}

// New は共通ミドルウェアとルートを登録した echo を返す。
func New(opts Options, h Handlers) *echo.Echo {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NopMetrics()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(opts.Logger, opts.Debug)

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(opts.Logger))
	e.Use(middleware.Metrics(opts.Metrics))
	e.Use(middleware.RequestTimeout(opts.RequestTimeout))

	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	RegisterRoutes(e, h)
	return e
}

// Run は ctx が終わるまでサーバーを動かし、終わったら処理中のリクエストを待って止める。
func Run(ctx context.Context, e *echo.Echo, addr string, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
