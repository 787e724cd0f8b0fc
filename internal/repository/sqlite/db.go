// Package sqlite stores users, predictions, notifications and the outbox in an
// embedded SQLite database. Single-node deployments and tests use it in place
// of Postgres; it implements the same domain ports.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/CropSense/migrations"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN          string
	QueryTimeout time.Duration
}

type DB struct {
	X            *sqlx.DB
	QueryTimeout time.Duration
}

// New opens the database with a single connection, so writers never contend
// and an in-memory database survives for the life of the pool.
func New(ctx context.Context, cfg Config) (*DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	x, err := sqlx.Open("sqlite", withParam(dsn, "_time_format=sqlite"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	x.SetMaxOpenConns(1)
	x.SetConnMaxLifetime(0)
	x.SetConnMaxIdleTime(0)

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := x.ExecContext(hctx, pragma); err != nil {
			_ = x.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &DB{X: x, QueryTimeout: cfg.QueryTimeout}, nil
}

func (db *DB) Close() { _ = db.X.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.X.PingContext(ctx) }

func (db *DB) Migrate(ctx context.Context) (int, error) {
	return migrations.Up(ctx, db.X.DB, "sqlite")
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}

func withParam(dsn, param string) string {
	key, _, _ := strings.Cut(param, "=")
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}
