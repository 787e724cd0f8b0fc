package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	webconfig "github.com/NordCoder/CropSense/internal/config/web"
	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := webconfig.Load(webconfig.Path())
	if err != nil {
		panic(err)
	}
	logger, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	// goose maps "postgres" onto the pgx stdlib driver and "sqlite" onto modernc
	db, err := goose.OpenDBWithDriver(cfg.DB.Driver, cfg.DB.URL)
	if err != nil {
		logger.Fatal("open db", zap.String("driver", cfg.DB.Driver), zap.Error(err))
	}
	defer db.Close()

	n, err := migrations.Up(ctx, db, cfg.DB.Driver)
	if err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("migrations: up OK", zap.String("driver", cfg.DB.Driver), zap.Int("applied", n))
}
