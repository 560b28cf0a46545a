package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/config"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/observability"
	"github.com/Kimbarona/dream-pack-store-be-sub000/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// usage: migrate [-steps N] up|down|version|force V
func main() {
	steps := flag.Int("steps", 0, "number of migrations to apply (0 = all)")
	flag.Parse()

	if err := run(flag.Arg(0), flag.Arg(1), *steps); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd, arg string, steps int) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DB.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations are written for postgres; use DB_AUTO_MIGRATE for %s", cfg.DB.Driver)
	}
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, postgresURL(cfg.DB))
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	switch cmd {
	case "", "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps <= 0 {
			steps = 1
		}
		err = m.Steps(-steps)
	case "force":
		var v int
		if _, serr := fmt.Sscanf(arg, "%d", &v); serr != nil {
			return fmt.Errorf("force needs a version: %w", serr)
		}
		err = m.Force(v)
	case "version":
	default:
		return fmt.Errorf("unknown command %q (up|down|version|force)", cmd)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return verr
	}
	logger.Info("migration done",
		zap.String("command", cmd),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// golang-migrate は URL 形式の DSN が必要
func postgresURL(cfg config.DBConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + cfg.Port,
		Path:   "/" + cfg.Name,
	}
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
