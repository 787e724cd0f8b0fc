package main

import (
	"context"
	"fmt"

	webconfig "github.com/NordCoder/CropSense/internal/config/web"
	"github.com/NordCoder/CropSense/internal/domain/notification"
	"github.com/NordCoder/CropSense/internal/domain/outbox"
	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"github.com/NordCoder/CropSense/internal/domain/user"
	pg "github.com/NordCoder/CropSense/internal/repository/postgres"
	"github.com/NordCoder/CropSense/internal/repository/sqlite"
	"github.com/NordCoder/CropSense/internal/services/web/diagnosis"
	"go.uber.org/zap"
)

// repos is the persistence layer for whichever driver is configured.
type repos struct {
	users         user.Repo
	predictions   prediction.Repo
	notifications notification.Repo
	outbox        outbox.Repository
	tx            diagnosis.Transactor

	ping    func(context.Context) error
	migrate func(context.Context) (int, error)
	close   func()
}

func initDB(ctx context.Context, cfg *webconfig.Config, logger *zap.Logger) (*repos, error) {
	var r *repos
	switch cfg.DB.Driver {
	case webconfig.DriverSQLite:
		db, err := sqlite.New(ctx, sqlite.Config{DSN: cfg.DB.URL, QueryTimeout: cfg.DB.QueryTimeout})
		if err != nil {
			return nil, err
		}
		r = &repos{
			users:         sqlite.NewUserRepo(db),
			predictions:   sqlite.NewPredictionRepo(db),
			notifications: sqlite.NewNotificationRepo(db),
			outbox:        sqlite.NewOutboxRepo(db),
			tx:            sqlite.NewTransactor(db, logger),
			ping:          db.Ping,
			migrate:       db.Migrate,
			close:         db.Close,
		}
	default:
		db, err := pg.New(ctx, cfg.DB.AsPostgres())
		if err != nil {
			return nil, err
		}
		r = &repos{
			users:         pg.NewUserRepo(db),
			predictions:   pg.NewPredictionRepo(db),
			notifications: pg.NewNotificationRepo(db),
			outbox:        pg.NewOutboxRepo(db),
			tx:            pg.NewTransactor(db, logger),
			ping:          db.Ping,
			migrate:       db.Migrate,
			close:         db.Close,
		}
	}

	if err := r.ping(ctx); err != nil {
		r.close()
		return nil, fmt.Errorf("ping %s: %w", cfg.DB.Driver, err)
	}
	if cfg.DB.AutoMigrate {
		n, err := r.migrate(ctx)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", zap.Int("count", n))
	}
	logger.Info("database ready", zap.String("driver", cfg.DB.Driver))
	return r, nil
}
