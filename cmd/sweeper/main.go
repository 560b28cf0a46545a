package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/bootstrap"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/config"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/observability"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

// 期限切れ決済セッションを1回だけ掃除して結果を表で出す（cron 用）。
func main() {
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	if err := run(*timeout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(timeout time.Duration) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DB.Driver == config.DriverMemory {
		return errors.New("sweeper needs a database (DB_DRIVER=postgres|mysql)")
	}
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	store, err := bootstrap.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// シミュレータの状態はAPIプロセスの中にしかないので、ここではプロバイダ照会をしない
	sweeper := usecase.NewExpirySweeper(store.Tx, nil, usecase.WithLogger(logger))
	report, err := sweeper.SweepOnce(ctx)
	if err != nil {
		return err
	}
	return render(os.Stdout, report)
}

func render(w io.Writer, report usecase.SweepReport) error {
	table := tablewriter.NewWriter(w)
	table.Header("SESSION", "ORDER", "KIND", "REFERENCE", "OUTCOME")
	for _, s := range report.Sessions {
		outcome := s.Outcome
		if s.Err != nil {
			outcome += ": " + s.Err.Error()
		}
		if err := table.Append([]string{s.SessionID, s.OrderID, string(s.Kind), s.Reference, outcome}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "examined=%d expired=%d skipped=%d failed=%d markers_pruned=%d\n",
		report.Examined, report.Expired, report.Skipped, report.Failed, report.MarkersPruned)
	return err
}
